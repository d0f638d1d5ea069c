package domain

import (
	"fmt"
	"time"
)

type RateRevision struct {
	ID         string       `json:"id"`
	RateID     string       `json:"rateID"`
	CreatedAt  time.Time    `json:"createdAt"`
	UpdatedAt  time.Time    `json:"updatedAt"`
	SubmitInfo *UpdateInfo  `json:"submitInfo,omitempty"`
	UnlockInfo *UpdateInfo  `json:"unlockInfo,omitempty"`
	FormData   RateFormData `json:"formData"`
}

// RateAction is a review status action on a rate. ContractID is set when the
// action was a side effect of withdrawing or restoring that contract.
type RateAction struct {
	ID            string     `json:"id"`
	RateID        string     `json:"rateID"`
	ActionType    ActionType `json:"actionType"`
	ContractID    string     `json:"contractID,omitempty"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	UpdatedBy     UpdatedBy  `json:"updatedBy"`
	UpdatedReason string     `json:"updatedReason"`
}

// RateWithdrawal records that withdrawRate removed the rate from a contract's
// package. RestoredAt closes the row on undo.
type RateWithdrawal struct {
	RateID      string     `json:"rateID"`
	ContractID  string     `json:"contractID"`
	WithdrawnAt time.Time  `json:"withdrawnAt"`
	RestoredAt  *time.Time `json:"restoredAt,omitempty"`
}

// RateOverride replaces derived rate fields. Nil fields do not override.
type RateOverride struct {
	ID                   string     `json:"id"`
	RateID               string     `json:"rateID"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedBy            UpdatedBy  `json:"updatedBy"`
	Description          string     `json:"description"`
	InitiallySubmittedAt *time.Time `json:"initiallySubmittedAt,omitempty"`
}

// Rate is the assembled rate aggregate. Slices are ordered oldest first.
type Rate struct {
	ID               string           `json:"id"`
	StateCode        string           `json:"stateCode"`
	StateNumber      int              `json:"stateNumber"`
	ParentContractID string           `json:"parentContractID"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
	Revisions        []RateRevision   `json:"revisions"`
	ReviewActions    []RateAction     `json:"reviewStatusActions"`
	Withdrawals      []RateWithdrawal `json:"withdrawals"`
	Overrides        []RateOverride   `json:"overrides"`
}

func (r *Rate) LatestRevision() *RateRevision {
	if len(r.Revisions) == 0 {
		return nil
	}
	return &r.Revisions[len(r.Revisions)-1]
}

func (r *Rate) DraftRevision() *RateRevision {
	latest := r.LatestRevision()
	if latest == nil || latest.SubmitInfo != nil {
		return nil
	}
	return latest
}

func (r *Rate) LatestSubmittedRevision() *RateRevision {
	for i := len(r.Revisions) - 1; i >= 0; i-- {
		if r.Revisions[i].SubmitInfo != nil {
			return &r.Revisions[i]
		}
	}
	return nil
}

func (r *Rate) RevisionByID(id string) *RateRevision {
	for i := range r.Revisions {
		if r.Revisions[i].ID == id {
			return &r.Revisions[i]
		}
	}
	return nil
}

func (r *Rate) Status() Status {
	latest := r.LatestRevision()
	if latest == nil {
		return StatusDraft
	}
	if latest.SubmitInfo == nil {
		if latest.UnlockInfo != nil {
			return StatusUnlocked
		}
		return StatusDraft
	}
	n := 0
	for _, rev := range r.Revisions {
		if rev.SubmitInfo != nil {
			n++
		}
	}
	if n > 1 {
		return StatusResubmitted
	}
	return StatusSubmitted
}

func (r *Rate) LatestAction() *RateAction {
	if len(r.ReviewActions) == 0 {
		return nil
	}
	return &r.ReviewActions[len(r.ReviewActions)-1]
}

func (r *Rate) ReviewStatus() ReviewStatus {
	a := r.LatestAction()
	if a == nil {
		return ReviewStatusUnderReview
	}
	return reviewStatusFor(a.ActionType)
}

func (r *Rate) ConsolidatedStatus() Status {
	return consolidate(r.Status(), r.ReviewStatus())
}

func (r *Rate) IsWithdrawn() bool {
	return r.ConsolidatedStatus() == StatusWithdrawn
}

// WithdrawnBy returns the contract whose withdrawal withdrew this rate, when
// the rate is currently withdrawn as a side effect.
func (r *Rate) WithdrawnBy() string {
	if !r.IsWithdrawn() {
		return ""
	}
	return r.LatestAction().ContractID
}

// ActiveWithdrawals returns withdrawal rows that have not been restored.
func (r *Rate) ActiveWithdrawals() []RateWithdrawal {
	var out []RateWithdrawal
	for _, w := range r.Withdrawals {
		if w.RestoredAt == nil {
			out = append(out, w)
		}
	}
	return out
}

// WithdrawnFromContractIDs lists contracts the rate is currently withdrawn from.
func (r *Rate) WithdrawnFromContractIDs() []string {
	var ids []string
	for _, w := range r.ActiveWithdrawals() {
		ids = append(ids, w.ContractID)
	}
	return ids
}

// InitiallySubmittedAt honours overrides: the most recent non-nil override wins.
func (r *Rate) InitiallySubmittedAt() *time.Time {
	for i := len(r.Overrides) - 1; i >= 0; i-- {
		if v := r.Overrides[i].InitiallySubmittedAt; v != nil {
			t := *v
			return &t
		}
	}
	for _, rev := range r.Revisions {
		if rev.SubmitInfo != nil {
			t := rev.SubmitInfo.UpdatedAt
			return &t
		}
	}
	return nil
}

// Name is the certification name, falling back to a generated one.
func (r *Rate) Name() string {
	if rev := r.LatestRevision(); rev != nil && rev.FormData.RateCertificationName != "" {
		return rev.FormData.RateCertificationName
	}
	return fmt.Sprintf("RATE-%s-%04d", r.StateCode, r.StateNumber)
}
