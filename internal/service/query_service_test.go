package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/domain"
)

func oauthActor(grants ...string) domain.Actor {
	return domain.Actor{User: cmsUser.User, OAuthClient: &domain.OAuthClient{ClientID: "partner", Grants: grants}}
}

func TestFetchContract_Authorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft := f.draftContract(t, mn)
	submitted := f.submitted(t, "rate")

	c, err := f.svc.FetchContract(ctx, mn, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, draft.ID, c.ID)

	_, err = f.svc.FetchContract(ctx, stateUser("FL"), submitted.ID)
	e := requireCode(t, err, domain.CodeForbidden)
	assert.Equal(t, "user not authorized to fetch data from a different state", e.Message)

	for _, actor := range []domain.Actor{cmsUser, helpdesk, admin} {
		_, err = f.svc.FetchContract(ctx, actor, draft.ID)
		requireCode(t, err, domain.CodeForbidden)
		c, err = f.svc.FetchContract(ctx, actor, submitted.ID)
		require.NoError(t, err)
		assert.Equal(t, submitted.ID, c.ID)
	}

	_, err = f.svc.FetchContract(ctx, oauthActor(domain.GrantReadContracts), submitted.ID)
	require.NoError(t, err)
	_, err = f.svc.FetchContract(ctx, oauthActor(domain.GrantReadRates), submitted.ID)
	requireCode(t, err, domain.CodeForbidden)

	_, err = f.svc.FetchContract(ctx, mn, "missing")
	requireCode(t, err, domain.CodeNotFound)
	_, err = f.svc.FetchContract(ctx, mn, "")
	requireCode(t, err, domain.CodeBadUserInput)
}

func TestFetchRate_Authorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.submitted(t, "rate")
	rateID := c.PackageSubmissions[0].Rates[0].RateID

	r, err := f.svc.FetchRate(ctx, oauthActor(domain.GrantReadRates), rateID)
	require.NoError(t, err)
	assert.Equal(t, rateID, r.ID)

	_, err = f.svc.FetchRate(ctx, oauthActor(domain.GrantReadContracts), rateID)
	requireCode(t, err, domain.CodeForbidden)

	_, err = f.svc.FetchRate(ctx, stateUser("FL"), rateID)
	requireCode(t, err, domain.CodeForbidden)

	draft := f.draftContract(t, mn, "draft rate")
	_, err = f.svc.FetchRate(ctx, cmsUser, draft.DraftRateIDs[0])
	requireCode(t, err, domain.CodeForbidden)
}

func TestIndexContracts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft := f.draftContract(t, mn)
	submitted := f.submitted(t, "rate")
	fl := f.draftContract(t, stateUser("FL"))

	mine, err := f.svc.IndexContracts(ctx, mn)
	require.NoError(t, err)
	assert.Equal(t, []string{draft.ID, submitted.ID}, contractIDs(mine))

	all, err := f.svc.IndexContracts(ctx, cmsUser)
	require.NoError(t, err)
	assert.Equal(t, []string{submitted.ID}, contractIDs(all))

	flOnly, err := f.svc.IndexContracts(ctx, stateUser("FL"))
	require.NoError(t, err)
	assert.Equal(t, []string{fl.ID}, contractIDs(flOnly))

	_, err = f.svc.IndexContracts(ctx, oauthActor())
	requireCode(t, err, domain.CodeForbidden)
}

func contractIDs(cs []*domain.Contract) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func TestIndexRates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.submitted(t, "one", "two")
	draft := f.draftContract(t, mn, "draft")
	one, two := c.PackageSubmissions[0].Rates[0].RateID, c.PackageSubmissions[0].Rates[1].RateID

	rates, err := f.svc.IndexRates(ctx, cmsUser, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{one, two}, rateIDs(rates))

	rates, err = f.svc.IndexRates(ctx, mn, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{one, two, draft.DraftRateIDs[0]}, rateIDs(rates))

	rates, err = f.svc.IndexRates(ctx, oauthActor(domain.GrantReadRates), []string{two})
	require.NoError(t, err)
	assert.Equal(t, []string{two}, rateIDs(rates))
}

type fakeIssuer struct {
	err error
}

func (i fakeIssuer) IssueAPIKey(_ context.Context, u domain.User) (domain.APIKey, error) {
	if i.err != nil {
		return domain.APIKey{}, i.err
	}
	return domain.APIKey{Key: "key-for-" + u.ID, ExpiresAt: testStart.Add(90 * 24 * time.Hour)}, nil
}

func TestCreateAPIKey(t *testing.T) {
	f := newFixture(t, WithKeyIssuer(fakeIssuer{}))
	ctx := context.Background()

	key, err := f.svc.CreateAPIKey(ctx, cmsUser)
	require.NoError(t, err)
	assert.Equal(t, "key-for-cms-1", key.Key)

	_, err = f.svc.CreateAPIKey(ctx, admin)
	require.NoError(t, err)

	_, err = f.svc.CreateAPIKey(ctx, mn)
	requireCode(t, err, domain.CodeForbidden)
	_, err = f.svc.CreateAPIKey(ctx, oauthActor(domain.GrantReadContracts))
	requireCode(t, err, domain.CodeForbidden)

	broken := newFixture(t, WithKeyIssuer(fakeIssuer{err: errors.New("signing failed")}))
	_, err = broken.svc.CreateAPIKey(ctx, cmsUser)
	requireCode(t, err, domain.CodeInternal)

	unconfigured := newFixture(t)
	_, err = unconfigured.svc.CreateAPIKey(ctx, cmsUser)
	requireCode(t, err, domain.CodeInternal)
}

func TestCurrentUser(t *testing.T) {
	f := newFixture(t)
	u, err := f.svc.CurrentUser(context.Background(), mn)
	require.NoError(t, err)
	assert.Equal(t, "MN", u.StateCode)

	_, err = f.svc.CurrentUser(context.Background(), domain.Actor{})
	requireCode(t, err, domain.CodeForbidden)
}

func TestContractsForRate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.submitted(t, "rate")
	rateID := a.PackageSubmissions[0].Rates[0].RateID
	b := f.submittedLinking(t, rateID)

	cs, err := f.svc.ContractsForRate(ctx, f.rate(t, rateID))
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID, b.ID}, contractIDs(cs))

	_, err = f.svc.WithdrawRate(ctx, cmsUser, WithdrawRateInput{RateID: rateID})
	require.NoError(t, err)
	from, err := f.svc.WithdrawnFromContracts(ctx, f.rate(t, rateID))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, contractIDs(from))
	require.NoError(t, f.svc.Ping(ctx))
}
