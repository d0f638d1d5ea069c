package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/domain"
	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/repository"
)

func (s *WorkflowService) requireFlag(ctx context.Context, flag, op string) error {
	if s.flagEnabled(ctx, flag) {
		return nil
	}
	return domain.Forbidden("%s is not available: feature flag %s is disabled", op, flag).
		WithCause(domain.CauseFeatureDisabled)
}

// UnlockRateInput reopens a submitted rate independently of its contracts.
type UnlockRateInput struct {
	RateID         string
	UnlockedReason string
}

func (s *WorkflowService) UnlockRate(ctx context.Context, actor domain.Actor, in UnlockRateInput) (*domain.Rate, error) {
	if err := s.requireFlag(ctx, FlagRateEditUnlock, "unlockRate"); err != nil {
		return nil, err
	}
	if err := requireCMSUser(actor, "unlock rate"); err != nil {
		return nil, err
	}
	var events []domain.Event
	err := s.mutate(ctx, "unlock rate", func(tx repository.Tx) error {
		r, err := loadRate(ctx, tx, in.RateID)
		if err != nil {
			return err
		}
		if !r.ConsolidatedStatus().IsSubmitted() {
			return invalidRateStatus("unlock", r, domain.StatusSubmitted, domain.StatusResubmitted)
		}
		info := domain.UpdateInfo{UpdatedAt: s.clock(), UpdatedBy: actor.User.UpdatedBy(), UpdatedReason: in.UnlockedReason}
		if err := s.unlockRateRevision(ctx, tx, r, info); err != nil {
			return err
		}
		events = append(events, rateEvent(domain.EventRateUnlocked, r, info, domain.StatusUnlocked))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events)
	return loadRate(ctx, s.store, in.RateID)
}

// SubmitRateInput resubmits an unlocked rate. FormData, when set, replaces
// the draft form data first.
type SubmitRateInput struct {
	RateID          string
	SubmittedReason string
	FormData        *domain.RateFormData
}

func (s *WorkflowService) SubmitRate(ctx context.Context, actor domain.Actor, in SubmitRateInput) (*domain.Rate, error) {
	if err := s.requireFlag(ctx, FlagRateEditUnlock, "submitRate"); err != nil {
		return nil, err
	}
	if err := requireStateUser(actor, ""); err != nil {
		return nil, err
	}
	var events []domain.Event
	err := s.mutate(ctx, "submit rate", func(tx repository.Tx) error {
		r, err := loadRate(ctx, tx, in.RateID)
		if err != nil {
			return err
		}
		if err := requireStateUser(actor, r.StateCode); err != nil {
			return err
		}
		draft := r.DraftRevision()
		if r.Status() != domain.StatusUnlocked || draft == nil {
			return invalidRateStatus("submit", r, domain.StatusUnlocked)
		}
		rev := *draft
		if in.FormData != nil {
			rev.FormData = in.FormData.Clone()
		}
		if err := rev.FormData.ValidateForSubmit(); err != nil {
			return err
		}

		now := s.clock()
		info := domain.UpdateInfo{UpdatedAt: now, UpdatedBy: actor.User.UpdatedBy(), UpdatedReason: in.SubmittedReason}
		submit := info
		rev.UpdatedAt = now
		rev.SubmitInfo = &submit
		if err := tx.UpdateRateRevision(ctx, &rev); err != nil {
			return err
		}
		if err := tx.TouchRate(ctx, r.ID, now); err != nil {
			return err
		}
		related, err := s.propagateRateRevisions(ctx, tx, "", map[string]string{r.ID: rev.ID}, info)
		if err != nil {
			return err
		}
		evt := rateEvent(domain.EventRateSubmitted, r, info, domain.StatusResubmitted)
		evt.RelatedContractIDs = related
		events = append(events, evt)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events)
	return loadRate(ctx, s.store, in.RateID)
}

// OverrideRateDataInput corrects derived rate data. Nil overrides leave the
// derived value in place.
type OverrideRateDataInput struct {
	RateID               string
	Description          string
	InitiallySubmittedAt *time.Time
}

func (s *WorkflowService) OverrideRateData(ctx context.Context, actor domain.Actor, in OverrideRateDataInput) (*domain.Rate, error) {
	if err := rejectOAuth(actor); err != nil {
		return nil, err
	}
	if !actor.User.IsAdmin() {
		return nil, domain.Forbidden("user not authorized to override rate data")
	}
	if strings.TrimSpace(in.Description) == "" {
		return nil, domain.BadUserInput("description is required").WithArgument("description")
	}
	err := s.mutate(ctx, "override rate data", func(tx repository.Tx) error {
		r, err := loadRate(ctx, tx, in.RateID)
		if err != nil {
			return err
		}
		now := s.clock()
		o := &domain.RateOverride{
			ID:          s.newID(),
			RateID:      r.ID,
			CreatedAt:   now,
			UpdatedBy:   actor.User.UpdatedBy(),
			Description: in.Description,
		}
		if in.InitiallySubmittedAt != nil {
			if isFutureDate(*in.InitiallySubmittedAt, now) {
				return domain.BadUserInput("initiallySubmittedAt cannot be a future date").WithArgument("overrides.initiallySubmittedAt")
			}
			d := dateOf(*in.InitiallySubmittedAt)
			o.InitiallySubmittedAt = &d
		}
		if err := tx.InsertRateOverride(ctx, o); err != nil {
			return err
		}
		return tx.TouchRate(ctx, r.ID, now)
	})
	if err != nil {
		return nil, err
	}
	s.log(ctx).Info("rate data overridden", zap.String("rate_id", in.RateID), zap.String("admin", actor.User.Email))
	return loadRate(ctx, s.store, in.RateID)
}
