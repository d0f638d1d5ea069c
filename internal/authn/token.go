// Package authn resolves the calling actor from bearer tokens or, in local
// development, from a JSON user header.
package authn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/config"
	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/domain"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrInvalidToken    = errors.New("invalid or expired token")
)

// Claims carries the user snapshot and, for machine clients, the OAuth grants.
type Claims struct {
	User   domain.User         `json:"user"`
	Client *domain.OAuthClient `json:"client,omitempty"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 tokens.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(cfg *config.AuthConfig) (*Issuer, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	ttl := cfg.APIKeyTTL
	if ttl <= 0 {
		ttl = 90 * 24 * time.Hour
	}
	return &Issuer{secret: []byte(cfg.JWTSecret), issuer: cfg.Issuer, ttl: ttl, now: time.Now}, nil
}

// IssueAPIKey signs a user token valid for the configured TTL.
func (i *Issuer) IssueAPIKey(_ context.Context, user domain.User) (domain.APIKey, error) {
	token, expiresAt, err := i.sign(Claims{User: user}, user.ID)
	if err != nil {
		return domain.APIKey{}, err
	}
	return domain.APIKey{Key: token, ExpiresAt: expiresAt}, nil
}

// IssueClientToken signs a token for an OAuth client acting as delegate.
func (i *Issuer) IssueClientToken(client domain.OAuthClient, delegate domain.User) (string, time.Time, error) {
	return i.sign(Claims{User: delegate, Client: &client}, client.ClientID)
}

func (i *Issuer) sign(claims Claims, subject string) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(i.ttl)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    i.issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, expiresAt.UTC(), nil
}

// Parse verifies a token and returns the actor it names.
func (i *Issuer) Parse(tokenString string) (domain.Actor, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return domain.Actor{}, ErrInvalidToken
	}
	if i.issuer != "" && !claims.VerifyIssuer(i.issuer, true) {
		return domain.Actor{}, ErrInvalidToken
	}
	if !claims.User.Role.Valid() {
		return domain.Actor{}, ErrInvalidToken
	}
	return domain.Actor{User: claims.User, OAuthClient: claims.Client}, nil
}
