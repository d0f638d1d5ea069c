package domain

import "time"

// EventType names a committed workflow change.
type EventType string

const (
	EventContractSubmitted EventType = "contract.submitted"
	EventContractUnlocked  EventType = "contract.unlocked"
	EventContractApproved  EventType = "contract.approved"
	EventContractWithdrawn EventType = "contract.withdrawn"
	EventContractRestored  EventType = "contract.restored"
	EventRateSubmitted     EventType = "rate.submitted"
	EventRateUnlocked      EventType = "rate.unlocked"
	EventRateWithdrawn     EventType = "rate.withdrawn"
	EventRateRestored      EventType = "rate.restored"
)

// Event is published after a mutation commits.
type Event struct {
	Type       EventType `json:"type"`
	ContractID string    `json:"contractID,omitempty"`
	RateID     string    `json:"rateID,omitempty"`
	StateCode  string    `json:"stateCode"`
	// Name is the human readable package or rate name used in emails.
	Name      string    `json:"name,omitempty"`
	Status    Status    `json:"status"`
	Reason    string    `json:"reason"`
	UpdatedBy UpdatedBy `json:"updatedBy"`
	At        time.Time `json:"at"`
	// RelatedContractIDs lists contracts touched as a side effect.
	RelatedContractIDs []string `json:"relatedContractIDs,omitempty"`
}
