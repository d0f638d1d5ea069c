package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/domain"
)

func TestUnlockRate_FeatureFlag(t *testing.T) {
	f := newFixture(t)
	a := f.submitted(t, "rate")
	rateID := a.PackageSubmissions[0].Rates[0].RateID

	_, err := f.svc.UnlockRate(context.Background(), cmsUser, UnlockRateInput{RateID: rateID})
	e := requireCode(t, err, domain.CodeForbidden)
	assert.Equal(t, domain.CauseFeatureDisabled, e.Cause)

	_, err = f.svc.SubmitRate(context.Background(), mn, SubmitRateInput{RateID: rateID})
	e = requireCode(t, err, domain.CodeForbidden)
	assert.Equal(t, domain.CauseFeatureDisabled, e.Cause)
}

func TestUnlockAndSubmitRate_PropagatesToCarriers(t *testing.T) {
	f := newFixture(t)
	f.flags[FlagRateEditUnlock] = true
	ctx := context.Background()
	a := f.submitted(t, "rate")
	rateID := a.PackageSubmissions[0].Rates[0].RateID
	b := f.submittedLinking(t, rateID)

	_, err := f.svc.UnlockRate(ctx, mn, UnlockRateInput{RateID: rateID})
	requireCode(t, err, domain.CodeForbidden)

	r, err := f.svc.UnlockRate(ctx, cmsUser, UnlockRateInput{RateID: rateID, UnlockedReason: "fix certification"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnlocked, r.ConsolidatedStatus())
	assert.Equal(t, "fix certification", r.DraftRevision().UnlockInfo.UpdatedReason)

	_, err = f.svc.UnlockRate(ctx, cmsUser, UnlockRateInput{RateID: rateID})
	e := requireCode(t, err, domain.CodeBadUserInput)
	assert.Equal(t, domain.CauseInvalidRateStatus, e.Cause)

	_, err = f.svc.SubmitRate(ctx, cmsUser, SubmitRateInput{RateID: rateID})
	requireCode(t, err, domain.CodeForbidden)

	bad := domain.RateFormData{RateType: domain.RateTypeNew}
	_, err = f.svc.SubmitRate(ctx, mn, SubmitRateInput{RateID: rateID, FormData: &bad})
	e = requireCode(t, err, domain.CodeBadUserInput)
	assert.Equal(t, domain.CauseMissingFields, e.Cause)

	fd := rateForm("rate v2")
	r, err = f.svc.SubmitRate(ctx, mn, SubmitRateInput{RateID: rateID, SubmittedReason: "fixed", FormData: &fd})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusResubmitted, r.ConsolidatedStatus())
	assert.Equal(t, "rate v2", r.Name())

	for _, id := range []string{a.ID, b.ID} {
		c := f.contract(t, id)
		assert.Equal(t, domain.CauseRateSubmission, c.LatestPackage().Cause)
		assert.Equal(t, r.LatestSubmittedRevision().ID, c.LatestPackage().Rates[0].RateRevisionID)
	}
	event := f.notifier.events[len(f.notifier.events)-1]
	assert.Equal(t, domain.EventRateSubmitted, event.Type)
	assert.Equal(t, []string{a.ID, b.ID}, event.RelatedContractIDs)

	_, err = f.svc.SubmitRate(ctx, mn, SubmitRateInput{RateID: rateID})
	e = requireCode(t, err, domain.CodeBadUserInput)
	assert.Contains(t, e.Message, "must be UNLOCKED")
}

func TestOverrideRateData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.submitted(t, "rate")
	rateID := a.PackageSubmissions[0].Rates[0].RateID
	original := *f.rate(t, rateID).InitiallySubmittedAt()

	today := f.clock.Now()
	future := today.AddDate(0, 0, 1)
	past := today.AddDate(-1, 0, 0)

	_, err := f.svc.OverrideRateData(ctx, cmsUser, OverrideRateDataInput{RateID: rateID, Description: "x", InitiallySubmittedAt: &past})
	requireCode(t, err, domain.CodeForbidden)

	_, err = f.svc.OverrideRateData(ctx, admin, OverrideRateDataInput{RateID: rateID, Description: "  ", InitiallySubmittedAt: &past})
	e := requireCode(t, err, domain.CodeBadUserInput)
	assert.Equal(t, "description", e.ArgumentName)

	_, err = f.svc.OverrideRateData(ctx, admin, OverrideRateDataInput{RateID: rateID, Description: "future", InitiallySubmittedAt: &future})
	requireCode(t, err, domain.CodeBadUserInput)
	assert.Equal(t, original, *f.rate(t, rateID).InitiallySubmittedAt())

	r, err := f.svc.OverrideRateData(ctx, admin, OverrideRateDataInput{RateID: rateID, Description: "today", InitiallySubmittedAt: &today})
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01", r.InitiallySubmittedAt().Format("2006-01-02"))

	r, err = f.svc.OverrideRateData(ctx, admin, OverrideRateDataInput{RateID: rateID, Description: "backdate", InitiallySubmittedAt: &past})
	require.NoError(t, err)
	assert.Equal(t, "2023-05-01", r.InitiallySubmittedAt().Format("2006-01-02"))

	// an override without a date keeps the previous one
	r, err = f.svc.OverrideRateData(ctx, admin, OverrideRateDataInput{RateID: rateID, Description: "note only"})
	require.NoError(t, err)
	require.Len(t, r.Overrides, 3)
	assert.Equal(t, "2023-05-01", r.InitiallySubmittedAt().Format("2006-01-02"))

	_, err = f.svc.OverrideRateData(ctx, admin, OverrideRateDataInput{RateID: "missing", Description: "x"})
	requireCode(t, err, domain.CodeNotFound)
}
