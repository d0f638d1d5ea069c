package domain

import (
	"fmt"
	"time"
)

// ContractRevision is an immutable snapshot of contract form data.
// Only the draft revision (SubmitInfo == nil) may change.
type ContractRevision struct {
	ID         string           `json:"id"`
	ContractID string           `json:"contractID"`
	CreatedAt  time.Time        `json:"createdAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
	SubmitInfo *UpdateInfo      `json:"submitInfo,omitempty"`
	UnlockInfo *UpdateInfo      `json:"unlockInfo,omitempty"`
	FormData   ContractFormData `json:"formData"`
}

// PackageRate is one rate revision captured by a package submission.
type PackageRate struct {
	RateID         string `json:"rateID"`
	RateRevisionID string `json:"rateRevisionID"`
}

// PackageSubmission is an append-only snapshot of a contract revision and
// the rate revisions in effect when it was taken.
type PackageSubmission struct {
	ID                 string          `json:"id"`
	ContractID         string          `json:"contractID"`
	Cause              SubmissionCause `json:"cause"`
	SubmitInfo         UpdateInfo      `json:"submitInfo"`
	ContractRevisionID string          `json:"contractRevisionID"`
	Rates              []PackageRate   `json:"rates"`
	CreatedAt          time.Time       `json:"createdAt"`
}

func (p PackageSubmission) HasRate(rateID string) bool {
	for _, r := range p.Rates {
		if r.RateID == rateID {
			return true
		}
	}
	return false
}

func (p PackageSubmission) RateIDs() []string {
	ids := make([]string, 0, len(p.Rates))
	for _, r := range p.Rates {
		ids = append(ids, r.RateID)
	}
	return ids
}

// ContractAction is a review status action on a contract.
type ContractAction struct {
	ID                          string     `json:"id"`
	ContractID                  string     `json:"contractID"`
	ActionType                  ActionType `json:"actionType"`
	UpdatedAt                   time.Time  `json:"updatedAt"`
	UpdatedBy                   UpdatedBy  `json:"updatedBy"`
	UpdatedReason               string     `json:"updatedReason"`
	DateApprovalReleasedToState *time.Time `json:"dateApprovalReleasedToState,omitempty"`
}

// Contract is the assembled contract aggregate. Slices are ordered oldest first.
type Contract struct {
	ID                 string              `json:"id"`
	StateCode          string              `json:"stateCode"`
	StateNumber        int                 `json:"stateNumber"`
	CreatedAt          time.Time           `json:"createdAt"`
	UpdatedAt          time.Time           `json:"updatedAt"`
	Revisions          []ContractRevision  `json:"revisions"`
	PackageSubmissions []PackageSubmission `json:"packageSubmissions"`
	DraftRateIDs       []string            `json:"draftRateIDs"`
	ReviewActions      []ContractAction    `json:"reviewStatusActions"`
}

func (c *Contract) LatestRevision() *ContractRevision {
	if len(c.Revisions) == 0 {
		return nil
	}
	return &c.Revisions[len(c.Revisions)-1]
}

// DraftRevision returns the editable revision, or nil when the contract is submitted.
func (c *Contract) DraftRevision() *ContractRevision {
	latest := c.LatestRevision()
	if latest == nil || latest.SubmitInfo != nil {
		return nil
	}
	return latest
}

func (c *Contract) LatestSubmittedRevision() *ContractRevision {
	for i := len(c.Revisions) - 1; i >= 0; i-- {
		if c.Revisions[i].SubmitInfo != nil {
			return &c.Revisions[i]
		}
	}
	return nil
}

func (c *Contract) RevisionByID(id string) *ContractRevision {
	for i := range c.Revisions {
		if c.Revisions[i].ID == id {
			return &c.Revisions[i]
		}
	}
	return nil
}

func (c *Contract) submittedCount() int {
	n := 0
	for _, r := range c.Revisions {
		if r.SubmitInfo != nil {
			n++
		}
	}
	return n
}

func (c *Contract) Status() Status {
	latest := c.LatestRevision()
	if latest == nil {
		return StatusDraft
	}
	if latest.SubmitInfo == nil {
		if latest.UnlockInfo != nil {
			return StatusUnlocked
		}
		return StatusDraft
	}
	if c.submittedCount() > 1 {
		return StatusResubmitted
	}
	return StatusSubmitted
}

func (c *Contract) LatestAction() *ContractAction {
	if len(c.ReviewActions) == 0 {
		return nil
	}
	return &c.ReviewActions[len(c.ReviewActions)-1]
}

func (c *Contract) ReviewStatus() ReviewStatus {
	a := c.LatestAction()
	if a == nil {
		return ReviewStatusUnderReview
	}
	return reviewStatusFor(a.ActionType)
}

func (c *Contract) ConsolidatedStatus() Status {
	return consolidate(c.Status(), c.ReviewStatus())
}

func (c *Contract) LatestPackage() *PackageSubmission {
	if len(c.PackageSubmissions) == 0 {
		return nil
	}
	return &c.PackageSubmissions[len(c.PackageSubmissions)-1]
}

// InitiallySubmittedAt is the submit time of the first submitted revision.
func (c *Contract) InitiallySubmittedAt() *time.Time {
	for _, r := range c.Revisions {
		if r.SubmitInfo != nil {
			t := r.SubmitInfo.UpdatedAt
			return &t
		}
	}
	return nil
}

// LastSeenUpdatedAt is the timestamp clients echo back for optimistic
// concurrency: the draft revision's UpdatedAt, or the latest revision's.
func (c *Contract) LastSeenUpdatedAt() time.Time {
	if d := c.DraftRevision(); d != nil {
		return d.UpdatedAt
	}
	if l := c.LatestRevision(); l != nil {
		return l.UpdatedAt
	}
	return c.UpdatedAt
}

func (c *Contract) LinksDraftRate(rateID string) bool {
	for _, id := range c.DraftRateIDs {
		if id == rateID {
			return true
		}
	}
	return false
}

// SubmittingWith reports whether the latest package carries rateID.
func (c *Contract) SubmittingWith(rateID string) bool {
	p := c.LatestPackage()
	return p != nil && p.HasRate(rateID)
}

// Name is the package display name, e.g. MCR-MN-0004.
func (c *Contract) Name() string {
	return fmt.Sprintf("MCR-%s-%04d", c.StateCode, c.StateNumber)
}
