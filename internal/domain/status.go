package domain

// Status is the lifecycle status of a contract or rate.
// Status() only ever yields DRAFT, SUBMITTED, UNLOCKED or RESUBMITTED;
// APPROVED and WITHDRAWN come from the review status and appear in
// ConsolidatedStatus().
type Status string

const (
	StatusDraft       Status = "DRAFT"
	StatusSubmitted   Status = "SUBMITTED"
	StatusUnlocked    Status = "UNLOCKED"
	StatusResubmitted Status = "RESUBMITTED"
	StatusApproved    Status = "APPROVED"
	StatusWithdrawn   Status = "WITHDRAWN"
)

// AllStatuses lists every status in display order.
var AllStatuses = []Status{
	StatusDraft, StatusSubmitted, StatusUnlocked, StatusResubmitted, StatusApproved, StatusWithdrawn,
}

// IsSubmitted reports whether s is SUBMITTED or RESUBMITTED.
func (s Status) IsSubmitted() bool {
	return s == StatusSubmitted || s == StatusResubmitted
}

// IsEditable reports whether a draft revision exists (DRAFT or UNLOCKED).
func (s Status) IsEditable() bool {
	return s == StatusDraft || s == StatusUnlocked
}

// ReviewStatus is the CMS review outcome recorded by review status actions.
type ReviewStatus string

const (
	ReviewStatusUnderReview ReviewStatus = "UNDER_REVIEW"
	ReviewStatusApproved    ReviewStatus = "APPROVED"
	ReviewStatusWithdrawn   ReviewStatus = "WITHDRAWN"
)

// ActionType is the kind of a review status action.
type ActionType string

const (
	ActionUnderReview    ActionType = "UNDER_REVIEW"
	ActionMarkAsApproved ActionType = "MARK_AS_APPROVED"
	ActionWithdraw       ActionType = "WITHDRAW"
)

func reviewStatusFor(a ActionType) ReviewStatus {
	switch a {
	case ActionWithdraw:
		return ReviewStatusWithdrawn
	case ActionMarkAsApproved:
		return ReviewStatusApproved
	default:
		return ReviewStatusUnderReview
	}
}

// consolidate merges lifecycle and review status into the display status.
func consolidate(status Status, review ReviewStatus) Status {
	if status.IsEditable() {
		return status
	}
	switch review {
	case ReviewStatusWithdrawn:
		return StatusWithdrawn
	case ReviewStatusApproved:
		return StatusApproved
	}
	return status
}

// SubmissionCause tags why a package submission was appended.
type SubmissionCause string

const (
	CauseContractSubmission SubmissionCause = "CONTRACT_SUBMISSION"
	CauseRateSubmission     SubmissionCause = "RATE_SUBMISSION"
	CauseRateWithdrawn      SubmissionCause = "RATE_WITHDRAWN"
	CauseRateRestored       SubmissionCause = "RATE_RESTORED"
	CauseContractWithdrawn  SubmissionCause = "CONTRACT_WITHDRAWN"
	CauseContractRestored   SubmissionCause = "CONTRACT_RESTORED"
)
