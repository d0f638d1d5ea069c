package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/domain"
	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/repository"
)

// WithdrawContractInput withdraws a submitted contract from review.
type WithdrawContractInput struct {
	ContractID    string
	UpdatedReason string
}

func (s *WorkflowService) WithdrawContract(ctx context.Context, actor domain.Actor, in WithdrawContractInput) (*domain.Contract, error) {
	if err := requireCMSUser(actor, "withdraw contract"); err != nil {
		return nil, err
	}
	var events []domain.Event
	err := s.mutate(ctx, "withdraw contract", func(tx repository.Tx) error {
		c, err := loadContract(ctx, tx, in.ContractID)
		if err != nil {
			return err
		}
		if !c.ConsolidatedStatus().IsSubmitted() {
			return invalidContractStatus("withdraw", c, domain.StatusSubmitted, domain.StatusResubmitted)
		}

		now := s.clock()
		info := domain.UpdateInfo{UpdatedAt: now, UpdatedBy: actor.User.UpdatedBy(), UpdatedReason: in.UpdatedReason}

		// Plan first so rate state checks run before any write.
		type rateStep struct {
			rate    *domain.Rate
			pr      domain.PackageRate
			carrier string
		}
		var steps []rateStep
		var unlocked []string
		if pkg := c.LatestPackage(); pkg != nil {
			for _, pr := range pkg.Rates {
				r, err := loadRate(ctx, tx, pr.RateID)
				if err != nil {
					return err
				}
				if r.IsWithdrawn() {
					continue
				}
				carriers, err := activeCarriers(ctx, tx, r.ID, c.ID)
				if err != nil {
					return err
				}
				step := rateStep{rate: r, pr: pr}
				if len(carriers) > 0 {
					if r.ParentContractID != c.ID {
						continue
					}
					step.carrier = carriers[0]
				}
				if r.Status() == domain.StatusUnlocked {
					unlocked = append(unlocked, r.ID)
					continue
				}
				steps = append(steps, step)
			}
		}
		if len(unlocked) > 0 {
			return domain.BadUserInput("Cannot withdraw contract %s: rates are unlocked and must be resubmitted first: %s",
				c.ID, strings.Join(sortedUnique(unlocked), ", ")).WithCause(domain.CauseInvalidRateStatus)
		}

		var withdrawn []domain.PackageRate
		reparented := map[string]string{}
		for _, step := range steps {
			r := step.rate
			if step.carrier != "" {
				if err := tx.UpdateRateParent(ctx, r.ID, step.carrier); err != nil {
					return err
				}
				rev, err := s.copyRateRevision(ctx, tx, r, info)
				if err != nil {
					return err
				}
				reparented[r.ID] = rev.ID
				s.log(ctx).Info("rate reparented on contract withdrawal",
					zap.String("rate_id", r.ID), zap.String("from", c.ID), zap.String("to", step.carrier))
				continue
			}
			if err := s.insertRateAction(ctx, tx, r.ID, c.ID, domain.ActionWithdraw, info); err != nil {
				return err
			}
			withdrawn = append(withdrawn, step.pr)
			events = append(events, rateEvent(domain.EventRateWithdrawn, r, info, domain.StatusWithdrawn))
		}

		latest := c.LatestSubmittedRevision()
		submit := info
		rev := &domain.ContractRevision{
			ID:         s.newID(),
			ContractID: c.ID,
			CreatedAt:  now,
			UpdatedAt:  now,
			SubmitInfo: &submit,
			FormData:   latest.FormData.Clone(),
		}
		if err := tx.InsertContractRevision(ctx, rev); err != nil {
			return err
		}
		if err := s.appendPackage(ctx, tx, c, domain.CauseContractWithdrawn, rev.ID, withdrawn, info); err != nil {
			return err
		}
		if err := s.insertContractAction(ctx, tx, c.ID, domain.ActionWithdraw, info, nil); err != nil {
			return err
		}
		related, err := s.propagateRateRevisions(ctx, tx, c.ID, reparented, info)
		if err != nil {
			return err
		}

		evt := contractEvent(domain.EventContractWithdrawn, c, info, domain.StatusWithdrawn)
		evt.RelatedContractIDs = related
		events = append([]domain.Event{evt}, events...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events)
	return loadContract(ctx, s.store, in.ContractID)
}

// activeCarriers lists contracts other than exceptID that are not withdrawn
// and whose latest package carries the rate, oldest first.
func activeCarriers(ctx context.Context, tx repository.Reader, rateID, exceptID string) ([]string, error) {
	ids, err := tx.ContractIDsForRate(ctx, rateID)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, id := range ids {
		if id == exceptID {
			continue
		}
		c, err := loadContract(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		if c.ConsolidatedStatus() == domain.StatusWithdrawn || !c.SubmittingWith(rateID) {
			continue
		}
		out = append(out, c.ID)
	}
	return out, nil
}

// UndoWithdrawContractInput returns a withdrawn contract to review.
type UndoWithdrawContractInput struct {
	ContractID    string
	UpdatedReason string
}

func (s *WorkflowService) UndoWithdrawContract(ctx context.Context, actor domain.Actor, in UndoWithdrawContractInput) (*domain.Contract, error) {
	if err := requireCMSUser(actor, "undo withdraw contract"); err != nil {
		return nil, err
	}
	var events []domain.Event
	err := s.mutate(ctx, "undo withdraw contract", func(tx repository.Tx) error {
		c, err := loadContract(ctx, tx, in.ContractID)
		if err != nil {
			return err
		}
		if c.ConsolidatedStatus() != domain.StatusWithdrawn {
			return invalidContractStatus("undo withdraw of", c, domain.StatusWithdrawn)
		}
		wIdx := withdrawalPackageIndex(c)
		if wIdx < 0 {
			return domain.BadUserInput("contract %s has no withdrawal submission to undo", c.ID).
				WithCause(domain.CauseInvalidPackageStatus)
		}
		wPkg := c.PackageSubmissions[wIdx]

		var restore []*domain.Rate
		var blocked []string
		for _, id := range wPkg.RateIDs() {
			r, err := loadRate(ctx, tx, id)
			if err != nil {
				return err
			}
			if r.WithdrawnBy() != c.ID {
				continue
			}
			ids, err := tx.ContractIDsForRate(ctx, r.ID)
			if err != nil {
				return err
			}
			for _, other := range ids {
				if other == c.ID {
					continue
				}
				oc, err := loadContract(ctx, tx, other)
				if err != nil {
					return err
				}
				if oc.ConsolidatedStatus() == domain.StatusApproved {
					blocked = append(blocked, oc.ID)
				}
			}
			restore = append(restore, r)
		}
		if len(blocked) > 0 {
			return domain.BadUserInput("Cannot undo withdraw of contract %s: associated contracts are not in a restorable status: %s",
				c.ID, strings.Join(sortedUnique(blocked), ", ")).WithCause(domain.CauseInvalidPackageStatus)
		}

		now := s.clock()
		info := domain.UpdateInfo{UpdatedAt: now, UpdatedBy: actor.User.UpdatedBy(), UpdatedReason: in.UpdatedReason}

		restored := map[string]string{}
		for _, r := range restore {
			if err := s.insertRateAction(ctx, tx, r.ID, c.ID, domain.ActionUnderReview, info); err != nil {
				return err
			}
			rev, err := s.copyRateRevision(ctx, tx, r, info)
			if err != nil {
				return err
			}
			restored[r.ID] = rev.ID
			events = append(events, rateEvent(domain.EventRateRestored, r, info, domain.StatusResubmitted))
		}

		form := formBeforeWithdrawal(c, wPkg.ContractRevisionID)
		submit := info
		rev := &domain.ContractRevision{
			ID:         s.newID(),
			ContractID: c.ID,
			CreatedAt:  now,
			UpdatedAt:  now,
			SubmitInfo: &submit,
			FormData:   form.Clone(),
		}
		if err := tx.InsertContractRevision(ctx, rev); err != nil {
			return err
		}

		var rates []domain.PackageRate
		if wIdx > 0 {
			for _, pr := range c.PackageSubmissions[wIdx-1].Rates {
				if revID, ok := restored[pr.RateID]; ok {
					rates = append(rates, domain.PackageRate{RateID: pr.RateID, RateRevisionID: revID})
					continue
				}
				r, err := loadRate(ctx, tx, pr.RateID)
				if err != nil {
					return err
				}
				latest := r.LatestSubmittedRevision()
				if r.IsWithdrawn() || latest == nil {
					continue
				}
				rates = append(rates, domain.PackageRate{RateID: r.ID, RateRevisionID: latest.ID})
			}
		}
		if err := s.appendPackage(ctx, tx, c, domain.CauseContractRestored, rev.ID, rates, info); err != nil {
			return err
		}
		if err := s.insertContractAction(ctx, tx, c.ID, domain.ActionUnderReview, info, nil); err != nil {
			return err
		}
		events = append([]domain.Event{contractEvent(domain.EventContractRestored, c, info, domain.StatusResubmitted)}, events...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events)
	return loadContract(ctx, s.store, in.ContractID)
}

func withdrawalPackageIndex(c *domain.Contract) int {
	for i := len(c.PackageSubmissions) - 1; i >= 0; i-- {
		if c.PackageSubmissions[i].Cause == domain.CauseContractWithdrawn {
			return i
		}
	}
	return -1
}

// formBeforeWithdrawal returns the form data of the revision preceding the
// withdrawal revision.
func formBeforeWithdrawal(c *domain.Contract, withdrawalRevID string) domain.ContractFormData {
	for i, rev := range c.Revisions {
		if rev.ID == withdrawalRevID && i > 0 {
			return c.Revisions[i-1].FormData
		}
	}
	return c.LatestSubmittedRevision().FormData
}

// WithdrawRateInput withdraws a single rate from every contract submitting it.
type WithdrawRateInput struct {
	RateID        string
	UpdatedReason string
}

func (s *WorkflowService) WithdrawRate(ctx context.Context, actor domain.Actor, in WithdrawRateInput) (*domain.Rate, error) {
	if err := requireCMSUser(actor, "withdraw rate"); err != nil {
		return nil, err
	}
	var events []domain.Event
	err := s.mutate(ctx, "withdraw rate", func(tx repository.Tx) error {
		r, err := loadRate(ctx, tx, in.RateID)
		if err != nil {
			return err
		}
		if !r.ConsolidatedStatus().IsSubmitted() {
			return invalidRateStatus("withdraw", r, domain.StatusSubmitted, domain.StatusResubmitted)
		}

		ids, err := tx.ContractIDsForRate(ctx, r.ID)
		if err != nil {
			return err
		}
		var targets []*domain.Contract
		var blocked []string
		for _, id := range ids {
			c, err := loadContract(ctx, tx, id)
			if err != nil {
				return err
			}
			if !c.SubmittingWith(r.ID) {
				continue
			}
			switch c.ConsolidatedStatus() {
			case domain.StatusApproved:
				blocked = append(blocked, c.ID)
			case domain.StatusSubmitted, domain.StatusResubmitted, domain.StatusUnlocked:
				targets = append(targets, c)
			}
		}
		if len(blocked) > 0 {
			return domain.BadUserInput("Cannot withdraw rate %s: it is submitted on approved contracts: %s",
				r.ID, strings.Join(sortedUnique(blocked), ", ")).WithCause(domain.CauseInvalidPackageStatus)
		}

		now := s.clock()
		info := domain.UpdateInfo{UpdatedAt: now, UpdatedBy: actor.User.UpdatedBy(), UpdatedReason: in.UpdatedReason}

		related := make([]string, 0, len(targets))
		for _, c := range targets {
			pkg := c.LatestPackage()
			rates := make([]domain.PackageRate, 0, len(pkg.Rates))
			for _, pr := range pkg.Rates {
				if pr.RateID != r.ID {
					rates = append(rates, pr)
				}
			}
			if err := s.appendPackage(ctx, tx, c, domain.CauseRateWithdrawn, pkg.ContractRevisionID, rates, info); err != nil {
				return err
			}
			if err := tx.InsertRateWithdrawal(ctx, &domain.RateWithdrawal{RateID: r.ID, ContractID: c.ID, WithdrawnAt: now}); err != nil {
				return err
			}
			if c.LinksDraftRate(r.ID) {
				if err := tx.SetDraftRates(ctx, c.ID, without(c.DraftRateIDs, r.ID)); err != nil {
					return err
				}
			}
			related = append(related, c.ID)
		}
		if err := s.insertRateAction(ctx, tx, r.ID, "", domain.ActionWithdraw, info); err != nil {
			return err
		}
		evt := rateEvent(domain.EventRateWithdrawn, r, info, domain.StatusWithdrawn)
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

func without(ids []string, drop string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}

// UndoWithdrawRateInput restores a rate withdrawn by WithdrawRate.
type UndoWithdrawRateInput struct {
	RateID        string
	UpdatedReason string
}

func (s *WorkflowService) UndoWithdrawRate(ctx context.Context, actor domain.Actor, in UndoWithdrawRateInput) (*domain.Rate, error) {
	if err := requireCMSUser(actor, "undo withdraw rate"); err != nil {
		return nil, err
	}
	var events []domain.Event
	err := s.mutate(ctx, "undo withdraw rate", func(tx repository.Tx) error {
		r, err := loadRate(ctx, tx, in.RateID)
		if err != nil {
			return err
		}
		if !r.IsWithdrawn() {
			return invalidRateStatus("undo withdraw of", r, domain.StatusWithdrawn)
		}
		if by := r.WithdrawnBy(); by != "" {
			return domain.BadUserInput("rate %s was withdrawn with contract %s; undo the contract withdrawal instead", r.ID, by).
				WithCause(domain.CauseInvalidRateStatus)
		}

		contracts, err := loadContracts(ctx, tx, r.WithdrawnFromContractIDs())
		if err != nil {
			return err
		}
		var invalid []string
		for _, c := range contracts {
			if !c.ConsolidatedStatus().IsSubmitted() {
				invalid = append(invalid, c.ID)
			}
		}
		if len(invalid) > 0 {
			return domain.BadUserInput("Cannot undo withdraw of rate %s: contracts must be SUBMITTED or RESUBMITTED: %s",
				r.ID, strings.Join(invalid, ", ")).WithCause(domain.CauseInvalidPackageStatus)
		}

		now := s.clock()
		info := domain.UpdateInfo{UpdatedAt: now, UpdatedBy: actor.User.UpdatedBy(), UpdatedReason: in.UpdatedReason}
		if err := s.insertRateAction(ctx, tx, r.ID, "", domain.ActionUnderReview, info); err != nil {
			return err
		}
		rev, err := s.copyRateRevision(ctx, tx, r, info)
		if err != nil {
			return err
		}

		related := make([]string, 0, len(contracts))
		for _, c := range contracts {
			pkg := c.LatestPackage()
			rates := append([]domain.PackageRate(nil), pkg.Rates...)
			if !pkg.HasRate(r.ID) {
				rates = append(rates, domain.PackageRate{RateID: r.ID, RateRevisionID: rev.ID})
			}
			if err := s.appendPackage(ctx, tx, c, domain.CauseRateRestored, pkg.ContractRevisionID, rates, info); err != nil {
				return err
			}
			related = append(related, c.ID)
		}
		if err := tx.RestoreRateWithdrawals(ctx, r.ID, now); err != nil {
			return err
		}
		evt := rateEvent(domain.EventRateRestored, r, info, domain.StatusResubmitted)
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
