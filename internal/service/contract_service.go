package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/domain"
	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/repository"
)

// CreateContractInput starts a new contract draft in the caller's state.
type CreateContractInput struct {
	FormData domain.ContractFormData
}

func (s *WorkflowService) CreateContract(ctx context.Context, actor domain.Actor, in CreateContractInput) (*domain.Contract, error) {
	if err := requireStateUser(actor, ""); err != nil {
		return nil, err
	}
	stateCode := actor.User.StateCode
	if stateCode == "" {
		return nil, domain.Forbidden("state user has no state assigned")
	}

	var contractID string
	err := s.mutate(ctx, "create contract", func(tx repository.Tx) error {
		now := s.clock()
		n, err := tx.NextStateNumber(ctx, stateCode)
		if err != nil {
			return err
		}
		c := &domain.Contract{ID: s.newID(), StateCode: stateCode, StateNumber: n, CreatedAt: now, UpdatedAt: now}
		if err := tx.InsertContract(ctx, c); err != nil {
			return err
		}
		contractID = c.ID
		return tx.InsertContractRevision(ctx, &domain.ContractRevision{
			ID:         s.newID(),
			ContractID: c.ID,
			CreatedAt:  now,
			UpdatedAt:  now,
			FormData:   in.FormData.Clone(),
		})
	})
	if err != nil {
		return nil, err
	}
	s.log(ctx).Info("contract created", zap.String("contract_id", contractID), zap.String("state_code", stateCode))
	return loadContract(ctx, s.store, contractID)
}

// UpdateContractDraftRevisionInput replaces the form data of the draft revision.
type UpdateContractDraftRevisionInput struct {
	ContractID        string
	LastSeenUpdatedAt time.Time
	FormData          domain.ContractFormData
}

func (s *WorkflowService) UpdateContractDraftRevision(ctx context.Context, actor domain.Actor, in UpdateContractDraftRevisionInput) (*domain.Contract, error) {
	err := s.mutate(ctx, "update contract draft revision", func(tx repository.Tx) error {
		c, draft, err := s.editableContract(ctx, tx, actor, in.ContractID, "update", in.LastSeenUpdatedAt)
		if err != nil {
			return err
		}
		now := s.clock()
		rev := *draft
		rev.FormData = in.FormData.Clone()
		rev.UpdatedAt = now
		if err := tx.UpdateContractRevision(ctx, &rev); err != nil {
			return err
		}
		return tx.TouchContract(ctx, c.ID, now)
	})
	if err != nil {
		return nil, err
	}
	return loadContract(ctx, s.store, in.ContractID)
}

// editableContract loads a contract for a draft edit: state user of the
// contract's state, DRAFT or UNLOCKED, and a fresh lastSeenUpdatedAt.
func (s *WorkflowService) editableContract(ctx context.Context, tx repository.Tx, actor domain.Actor, contractID, op string, lastSeen time.Time) (*domain.Contract, *domain.ContractRevision, error) {
	if err := requireStateUser(actor, ""); err != nil {
		return nil, nil, err
	}
	c, err := loadContract(ctx, tx, contractID)
	if err != nil {
		return nil, nil, err
	}
	if err := requireStateUser(actor, c.StateCode); err != nil {
		return nil, nil, err
	}
	draft := c.DraftRevision()
	if draft == nil {
		return nil, nil, invalidContractStatus(op, c, domain.StatusDraft, domain.StatusUnlocked)
	}
	if err := checkLastSeen(draft.UpdatedAt, lastSeen); err != nil {
		return nil, nil, err
	}
	return c, draft, nil
}

// RateUpdateType says how an entry of UpdateDraftContractRatesInput applies.
type RateUpdateType string

const (
	RateUpdateCreate RateUpdateType = "CREATE"
	RateUpdateUpdate RateUpdateType = "UPDATE"
	RateUpdateLink   RateUpdateType = "LINK"
)

// RateUpdate is one entry of the desired draft rate list.
type RateUpdate struct {
	Type     RateUpdateType
	RateID   string
	FormData *domain.RateFormData
}

// UpdateDraftContractRatesInput sets the full ordered list of draft rates.
// Rates currently linked but absent from the list are unlinked.
type UpdateDraftContractRatesInput struct {
	ContractID        string
	LastSeenUpdatedAt time.Time
	UpdatedRates      []RateUpdate
}

func (s *WorkflowService) UpdateDraftContractRates(ctx context.Context, actor domain.Actor, in UpdateDraftContractRatesInput) (*domain.Contract, error) {
	err := s.mutate(ctx, "update draft contract rates", func(tx repository.Tx) error {
		c, draft, err := s.editableContract(ctx, tx, actor, in.ContractID, "update rates on", in.LastSeenUpdatedAt)
		if err != nil {
			return err
		}
		if err := validateRateUpdates(in.UpdatedRates); err != nil {
			return err
		}

		now := s.clock()
		linked := make([]string, 0, len(in.UpdatedRates))
		for _, u := range in.UpdatedRates {
			var rateID string
			switch u.Type {
			case RateUpdateCreate:
				rateID, err = s.createChildRate(ctx, tx, c, *u.FormData, now)
			case RateUpdateUpdate:
				rateID, err = s.updateChildRate(ctx, tx, c, u.RateID, *u.FormData, now)
			case RateUpdateLink:
				rateID, err = s.linkRate(ctx, tx, c, u.RateID)
			}
			if err != nil {
				return err
			}
			linked = append(linked, rateID)
		}

		if err := tx.SetDraftRates(ctx, c.ID, linked); err != nil {
			return err
		}
		rev := *draft
		rev.UpdatedAt = now
		if err := tx.UpdateContractRevision(ctx, &rev); err != nil {
			return err
		}
		return tx.TouchContract(ctx, c.ID, now)
	})
	if err != nil {
		return nil, err
	}
	return loadContract(ctx, s.store, in.ContractID)
}

func validateRateUpdates(updates []RateUpdate) error {
	seen := map[string]bool{}
	for i, u := range updates {
		switch u.Type {
		case RateUpdateCreate:
			if u.RateID != "" {
				return domain.BadUserInput("updatedRates[%d]: CREATE must not carry a rateID", i).WithArgument("updatedRates")
			}
			if u.FormData == nil {
				return domain.BadUserInput("updatedRates[%d]: CREATE requires formData", i).WithArgument("updatedRates")
			}
		case RateUpdateUpdate:
			if u.RateID == "" || u.FormData == nil {
				return domain.BadUserInput("updatedRates[%d]: UPDATE requires rateID and formData", i).WithArgument("updatedRates")
			}
		case RateUpdateLink:
			if u.RateID == "" {
				return domain.BadUserInput("updatedRates[%d]: LINK requires rateID", i).WithArgument("updatedRates")
			}
			if u.FormData != nil {
				return domain.BadUserInput("updatedRates[%d]: LINK must not carry formData", i).WithArgument("updatedRates")
			}
		default:
			return domain.BadUserInput("updatedRates[%d]: unknown type %q", i, u.Type).WithArgument("updatedRates")
		}
		if u.RateID != "" {
			if seen[u.RateID] {
				return domain.BadUserInput("updatedRates: rate %s appears more than once", u.RateID).WithArgument("updatedRates")
			}
			seen[u.RateID] = true
		}
	}
	return nil
}

func (s *WorkflowService) createChildRate(ctx context.Context, tx repository.Tx, c *domain.Contract, fd domain.RateFormData, now time.Time) (string, error) {
	n, err := tx.NextStateNumber(ctx, rateNumberKey(c.StateCode))
	if err != nil {
		return "", err
	}
	r := &domain.Rate{
		ID:               s.newID(),
		StateCode:        c.StateCode,
		StateNumber:      n,
		ParentContractID: c.ID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := tx.InsertRate(ctx, r); err != nil {
		return "", err
	}
	err = tx.InsertRateRevision(ctx, &domain.RateRevision{
		ID:        s.newID(),
		RateID:    r.ID,
		CreatedAt: now,
		UpdatedAt: now,
		FormData:  fd.Clone(),
	})
	return r.ID, err
}

func (s *WorkflowService) updateChildRate(ctx context.Context, tx repository.Tx, c *domain.Contract, rateID string, fd domain.RateFormData, now time.Time) (string, error) {
	r, err := loadRate(ctx, tx, rateID)
	if err != nil {
		return "", err
	}
	if r.ParentContractID != c.ID {
		return "", domain.BadUserInput("cannot update rate %s: it is not a child rate of contract %s", rateID, c.ID).WithArgument("updatedRates")
	}
	draft := r.DraftRevision()
	if draft == nil {
		return "", invalidRateStatus("update", r, domain.StatusDraft, domain.StatusUnlocked)
	}
	rev := *draft
	rev.FormData = fd.Clone()
	rev.UpdatedAt = now
	if err := tx.UpdateRateRevision(ctx, &rev); err != nil {
		return "", err
	}
	return r.ID, tx.TouchRate(ctx, r.ID, now)
}

func (s *WorkflowService) linkRate(ctx context.Context, tx repository.Tx, c *domain.Contract, rateID string) (string, error) {
	r, err := loadRate(ctx, tx, rateID)
	if err != nil {
		return "", err
	}
	if r.StateCode != c.StateCode {
		return "", domain.BadUserInput("cannot link rate %s from state %s to a %s contract", rateID, r.StateCode, c.StateCode).WithArgument("updatedRates")
	}
	if r.IsWithdrawn() {
		return "", domain.BadUserInput("cannot link withdrawn rate %s", rateID).WithArgument("updatedRates")
	}
	if r.ParentContractID != c.ID && r.LatestSubmittedRevision() == nil {
		return "", domain.BadUserInput("cannot link rate %s: it is a draft rate of another contract", rateID).WithArgument("updatedRates")
	}
	return r.ID, nil
}

func rateNumberKey(stateCode string) string {
	return stateCode + ":RATE"
}

// SubmitContractInput submits the contract draft and its child rate drafts.
type SubmitContractInput struct {
	ContractID      string
	SubmittedReason string
}

func (s *WorkflowService) SubmitContract(ctx context.Context, actor domain.Actor, in SubmitContractInput) (*domain.Contract, error) {
	if err := requireStateUser(actor, ""); err != nil {
		return nil, err
	}
	var events []domain.Event
	err := s.mutate(ctx, "submit contract", func(tx repository.Tx) error {
		c, err := loadContract(ctx, tx, in.ContractID)
		if err != nil {
			return err
		}
		if err := requireStateUser(actor, c.StateCode); err != nil {
			return err
		}
		draft := c.DraftRevision()
		if draft == nil {
			return invalidContractStatus("submit", c, domain.StatusDraft, domain.StatusUnlocked)
		}

		rates := make([]*domain.Rate, 0, len(c.DraftRateIDs))
		var withdrawn []string
		for _, id := range c.DraftRateIDs {
			r, err := loadRate(ctx, tx, id)
			if err != nil {
				return err
			}
			if r.IsWithdrawn() {
				withdrawn = append(withdrawn, r.ID)
			}
			rates = append(rates, r)
		}
		if len(withdrawn) > 0 {
			return domain.BadUserInput("Attempted to submit a contract with withdrawn rates: %s", strings.Join(withdrawn, ", ")).
				WithCause(domain.CauseInvalidRateStatus)
		}
		if err := checkSubmissionType(draft.FormData, len(rates)); err != nil {
			return err
		}
		if err := draft.FormData.ValidateForSubmit(); err != nil {
			return err
		}

		now := s.clock()
		info := domain.UpdateInfo{UpdatedAt: now, UpdatedBy: actor.User.UpdatedBy(), UpdatedReason: in.SubmittedReason}

		pkgRates := make([]domain.PackageRate, 0, len(rates))
		resubmitted := map[string]string{}
		for _, r := range rates {
			revID, wasResubmit, err := s.submitLinkedRate(ctx, tx, c, r, info)
			if err != nil {
				return err
			}
			if wasResubmit {
				resubmitted[r.ID] = revID
			}
			pkgRates = append(pkgRates, domain.PackageRate{RateID: r.ID, RateRevisionID: revID})
		}

		rev := *draft
		rev.UpdatedAt = now
		rev.SubmitInfo = &info
		if err := tx.UpdateContractRevision(ctx, &rev); err != nil {
			return err
		}
		if err := s.appendPackage(ctx, tx, c, domain.CauseContractSubmission, rev.ID, pkgRates, info); err != nil {
			return err
		}
		if err := tx.SetDraftRates(ctx, c.ID, nil); err != nil {
			return err
		}
		related, err := s.propagateRateRevisions(ctx, tx, c.ID, resubmitted, info)
		if err != nil {
			return err
		}

		status := domain.StatusSubmitted
		if c.LatestSubmittedRevision() != nil {
			status = domain.StatusResubmitted
		}
		evt := contractEvent(domain.EventContractSubmitted, c, info, status)
		evt.RelatedContractIDs = related
		events = append(events, evt)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events)
	return loadContract(ctx, s.store, in.ContractID)
}

func checkSubmissionType(fd domain.ContractFormData, rateCount int) error {
	switch fd.SubmissionType {
	case domain.SubmissionTypeContractOnly:
		if rateCount > 0 {
			return domain.BadUserInput("CONTRACT_ONLY submissions cannot include rates").WithArgument("submissionType")
		}
	case domain.SubmissionTypeContractAndRates:
		if rateCount == 0 {
			return domain.BadUserInput("CONTRACT_AND_RATES submissions must include at least one rate").WithArgument("submissionType")
		}
	}
	return nil
}

// submitLinkedRate returns the rate revision to place in the package. Child
// rate drafts are submitted; linked rates contribute their latest submitted
// revision.
func (s *WorkflowService) submitLinkedRate(ctx context.Context, tx repository.Tx, c *domain.Contract, r *domain.Rate, info domain.UpdateInfo) (string, bool, error) {
	draft := r.DraftRevision()
	if draft == nil || r.ParentContractID != c.ID {
		latest := r.LatestSubmittedRevision()
		if latest == nil {
			return "", false, domain.BadUserInput("rate %s has no submitted revision to include", r.ID).WithCause(domain.CauseInvalidRateStatus)
		}
		return latest.ID, false, nil
	}

	if err := draft.FormData.ValidateForSubmit(); err != nil {
		return "", false, err
	}
	wasSubmitted := r.LatestSubmittedRevision() != nil
	submit := info
	rev := *draft
	rev.UpdatedAt = info.UpdatedAt
	rev.SubmitInfo = &submit
	if err := tx.UpdateRateRevision(ctx, &rev); err != nil {
		return "", false, err
	}
	if err := tx.TouchRate(ctx, r.ID, info.UpdatedAt); err != nil {
		return "", false, err
	}
	return rev.ID, wasSubmitted, nil
}

// UnlockContractInput reopens a submitted contract for edits.
type UnlockContractInput struct {
	ContractID     string
	UnlockedReason string
}

func (s *WorkflowService) UnlockContract(ctx context.Context, actor domain.Actor, in UnlockContractInput) (*domain.Contract, error) {
	if err := requireCMSUser(actor, "unlock contract"); err != nil {
		return nil, err
	}
	var events []domain.Event
	err := s.mutate(ctx, "unlock contract", func(tx repository.Tx) error {
		c, err := loadContract(ctx, tx, in.ContractID)
		if err != nil {
			return err
		}
		switch c.ConsolidatedStatus() {
		case domain.StatusSubmitted, domain.StatusResubmitted, domain.StatusApproved:
		default:
			return invalidContractStatus("unlock", c, domain.StatusSubmitted, domain.StatusResubmitted, domain.StatusApproved)
		}

		now := s.clock()
		info := domain.UpdateInfo{UpdatedAt: now, UpdatedBy: actor.User.UpdatedBy(), UpdatedReason: in.UnlockedReason}
		latest := c.LatestSubmittedRevision()
		if err := tx.InsertContractRevision(ctx, &domain.ContractRevision{
			ID:         s.newID(),
			ContractID: c.ID,
			CreatedAt:  now,
			UpdatedAt:  now,
			UnlockInfo: &info,
			FormData:   latest.FormData.Clone(),
		}); err != nil {
			return err
		}

		var draftRates []string
		if pkg := c.LatestPackage(); pkg != nil {
			for _, pr := range pkg.Rates {
				draftRates = append(draftRates, pr.RateID)
				r, err := loadRate(ctx, tx, pr.RateID)
				if err != nil {
					return err
				}
				if r.ParentContractID != c.ID || r.DraftRevision() != nil {
					continue
				}
				if err := s.unlockRateRevision(ctx, tx, r, info); err != nil {
					return err
				}
			}
		}
		if err := tx.SetDraftRates(ctx, c.ID, draftRates); err != nil {
			return err
		}
		if c.ReviewStatus() == domain.ReviewStatusApproved {
			if err := s.insertContractAction(ctx, tx, c.ID, domain.ActionUnderReview, info, nil); err != nil {
				return err
			}
		}
		if err := tx.TouchContract(ctx, c.ID, now); err != nil {
			return err
		}
		events = append(events, contractEvent(domain.EventContractUnlocked, c, info, domain.StatusUnlocked))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events)
	return loadContract(ctx, s.store, in.ContractID)
}

// unlockRateRevision appends a draft copy of the latest submitted revision.
func (s *WorkflowService) unlockRateRevision(ctx context.Context, tx repository.Tx, r *domain.Rate, info domain.UpdateInfo) error {
	latest := r.LatestSubmittedRevision()
	if latest == nil {
		return invalidRateStatus("unlock", r, domain.StatusSubmitted, domain.StatusResubmitted)
	}
	unlock := info
	if err := tx.InsertRateRevision(ctx, &domain.RateRevision{
		ID:         s.newID(),
		RateID:     r.ID,
		CreatedAt:  info.UpdatedAt,
		UpdatedAt:  info.UpdatedAt,
		UnlockInfo: &unlock,
		FormData:   latest.FormData.Clone(),
	}); err != nil {
		return err
	}
	return tx.TouchRate(ctx, r.ID, info.UpdatedAt)
}

// ApproveContractInput records CMS approval.
type ApproveContractInput struct {
	ContractID                  string
	DateApprovalReleasedToState time.Time
	UpdatedReason               string
}

func (s *WorkflowService) ApproveContract(ctx context.Context, actor domain.Actor, in ApproveContractInput) (*domain.Contract, error) {
	if err := rejectOAuth(actor); err != nil {
		return nil, err
	}
	if !actor.User.IsCMSApprover() {
		return nil, domain.Forbidden("user not authorized to approve contract")
	}
	var events []domain.Event
	err := s.mutate(ctx, "approve contract", func(tx repository.Tx) error {
		c, err := loadContract(ctx, tx, in.ContractID)
		if err != nil {
			return err
		}
		if !c.ConsolidatedStatus().IsSubmitted() {
			return invalidContractStatus("approve", c, domain.StatusSubmitted, domain.StatusResubmitted)
		}
		now := s.clock()
		if in.DateApprovalReleasedToState.IsZero() {
			return domain.BadUserInput("dateApprovalReleasedToState is required").WithArgument("dateApprovalReleasedToState")
		}
		if isFutureDate(in.DateApprovalReleasedToState, now) {
			return domain.BadUserInput("dateApprovalReleasedToState cannot be in the future").WithArgument("dateApprovalReleasedToState")
		}
		released := dateOf(in.DateApprovalReleasedToState)
		info := domain.UpdateInfo{UpdatedAt: now, UpdatedBy: actor.User.UpdatedBy(), UpdatedReason: in.UpdatedReason}
		if err := s.insertContractAction(ctx, tx, c.ID, domain.ActionMarkAsApproved, info, &released); err != nil {
			return err
		}
		if err := tx.TouchContract(ctx, c.ID, now); err != nil {
			return err
		}
		events = append(events, contractEvent(domain.EventContractApproved, c, info, domain.StatusApproved))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events)
	return loadContract(ctx, s.store, in.ContractID)
}
