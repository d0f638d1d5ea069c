package authn

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/domain"
)

// LocalUserHeader carries a JSON encoded domain.User when local login is enabled.
const LocalUserHeader = "X-Local-User"

type actorKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(domain.Actor)
	return actor, ok
}

// Authenticator resolves the actor for an incoming request.
type Authenticator struct {
	issuer     *Issuer
	localLogin bool
	logger     *zap.Logger
}

func NewAuthenticator(issuer *Issuer, localLogin bool, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{issuer: issuer, localLogin: localLogin, logger: logger}
}

// Authenticate prefers a bearer token and falls back to the local user
// header when local login is enabled.
func (a *Authenticator) Authenticate(r *http.Request) (domain.Actor, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || a.issuer == nil {
			return domain.Actor{}, ErrInvalidToken
		}
		actor, err := a.issuer.Parse(strings.TrimSpace(parts[1]))
		if err != nil {
			a.logger.Debug("bearer token rejected", zap.Error(err))
			return domain.Actor{}, err
		}
		return actor, nil
	}

	if a.localLogin {
		if raw := r.Header.Get(LocalUserHeader); raw != "" {
			var user domain.User
			if err := json.Unmarshal([]byte(raw), &user); err != nil || !user.Role.Valid() {
				return domain.Actor{}, ErrInvalidToken
			}
			return domain.Actor{User: user}, nil
		}
	}
	return domain.Actor{}, ErrUnauthenticated
}
