package authn

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/config"
	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/domain"
)

var cmsUser = domain.User{ID: "u-1", Email: "zuko@cms.hhs.gov", Role: domain.RoleCMSUser}

func newIssuer(t *testing.T) *Issuer {
	t.Helper()
	i, err := NewIssuer(&config.AuthConfig{JWTSecret: "test-secret", Issuer: "mcreview", APIKeyTTL: 24 * time.Hour})
	require.NoError(t, err)
	return i
}

func TestNewIssuer_RequiresSecret(t *testing.T) {
	_, err := NewIssuer(&config.AuthConfig{})
	assert.Error(t, err)
}

func TestIssueAPIKey_RoundTrip(t *testing.T) {
	i := newIssuer(t)
	key, err := i.IssueAPIKey(context.Background(), cmsUser)
	require.NoError(t, err)
	assert.NotEmpty(t, key.Key)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), key.ExpiresAt, time.Minute)

	actor, err := i.Parse(key.Key)
	require.NoError(t, err)
	assert.Equal(t, cmsUser, actor.User)
	assert.False(t, actor.IsOAuthClient())
}

func TestIssueAPIKey_DefaultTTL(t *testing.T) {
	i, err := NewIssuer(&config.AuthConfig{JWTSecret: "s"})
	require.NoError(t, err)
	key, err := i.IssueAPIKey(context.Background(), cmsUser)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(90*24*time.Hour), key.ExpiresAt, time.Minute)
}

func TestParse_Rejects(t *testing.T) {
	i := newIssuer(t)

	expired := newIssuer(t)
	expired.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	old, err := expired.IssueAPIKey(context.Background(), cmsUser)
	require.NoError(t, err)

	other, err := NewIssuer(&config.AuthConfig{JWTSecret: "other-secret", Issuer: "mcreview"})
	require.NoError(t, err)
	forged, err := other.IssueAPIKey(context.Background(), cmsUser)
	require.NoError(t, err)

	foreign, err := NewIssuer(&config.AuthConfig{JWTSecret: "test-secret", Issuer: "someone-else"})
	require.NoError(t, err)
	wrongIssuer, err := foreign.IssueAPIKey(context.Background(), cmsUser)
	require.NoError(t, err)

	noRole, err := i.IssueAPIKey(context.Background(), domain.User{ID: "u-2"})
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":       old.Key,
		"bad signature": forged.Key,
		"wrong issuer":  wrongIssuer.Key,
		"unknown role":  noRole.Key,
		"garbage":       "not.a.token",
	} {
		_, err := i.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken, name)
	}
}

func TestIssueClientToken(t *testing.T) {
	i := newIssuer(t)
	token, _, err := i.IssueClientToken(domain.OAuthClient{ClientID: "client-1", Grants: []string{domain.GrantReadRates}}, cmsUser)
	require.NoError(t, err)

	actor, err := i.Parse(token)
	require.NoError(t, err)
	require.True(t, actor.IsOAuthClient())
	assert.Equal(t, "client-1", actor.OAuthClient.ClientID)
	assert.True(t, actor.OAuthClient.HasGrant(domain.GrantReadRates))
	assert.False(t, actor.OAuthClient.HasGrant(domain.GrantReadContracts))
}

func TestAuthenticator(t *testing.T) {
	i := newIssuer(t)
	key, err := i.IssueAPIKey(context.Background(), cmsUser)
	require.NoError(t, err)

	local := NewAuthenticator(i, true, zap.NewNop())
	strict := NewAuthenticator(i, false, zap.NewNop())
	stateUser := `{"id":"u-9","email":"aang@mn.gov","role":"STATE_USER","stateCode":"MN"}`

	tests := []struct {
		name    string
		auth    *Authenticator
		headers map[string]string
		wantErr error
		wantID  string
	}{
		{name: "bearer", auth: strict, headers: map[string]string{"Authorization": "Bearer " + key.Key}, wantID: "u-1"},
		{name: "bearer wins over local", auth: local, headers: map[string]string{"Authorization": "Bearer " + key.Key, LocalUserHeader: stateUser}, wantID: "u-1"},
		{name: "bad scheme", auth: strict, headers: map[string]string{"Authorization": "Basic abc"}, wantErr: ErrInvalidToken},
		{name: "missing", auth: strict, wantErr: ErrUnauthenticated},
		{name: "local user", auth: local, headers: map[string]string{LocalUserHeader: stateUser}, wantID: "u-9"},
		{name: "local disabled", auth: strict, headers: map[string]string{LocalUserHeader: stateUser}, wantErr: ErrUnauthenticated},
		{name: "local bad role", auth: local, headers: map[string]string{LocalUserHeader: `{"id":"x","role":"PIRATE"}`}, wantErr: ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/graphql", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			actor, err := tt.auth.Authenticate(req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, actor.User.ID)
		})
	}
}

func TestActorContext(t *testing.T) {
	_, ok := ActorFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithActor(context.Background(), domain.Actor{User: cmsUser})
	actor, ok := ActorFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u-1", actor.User.ID)
}
