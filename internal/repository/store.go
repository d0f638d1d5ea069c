package repository

import (
	"context"
	"time"

	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/domain"
)

// Reader loads assembled contract and rate aggregates.
type Reader interface {
	// GetContract returns domain.ErrNotFound (wrapped) when the contract does not exist.
	GetContract(ctx context.Context, id string) (*domain.Contract, error)
	GetRate(ctx context.Context, id string) (*domain.Rate, error)

	// ListContracts lists contracts ordered by creation time. An empty
	// stateCode lists every state.
	ListContracts(ctx context.Context, stateCode string) ([]*domain.Contract, error)
	ListRates(ctx context.Context, stateCode string) ([]*domain.Rate, error)

	// ContractIDsForRate returns every contract associated with the rate:
	// its parent, contracts linking it in their draft, contracts whose
	// package submissions carried it and contracts it was withdrawn from.
	// Ordered by contract creation time.
	ContractIDsForRate(ctx context.Context, rateID string) ([]string, error)

	// WithdrawnRateIDs lists rates with an open withdrawal row for the contract.
	WithdrawnRateIDs(ctx context.Context, contractID string) ([]string, error)
}

// Tx is the write surface available inside Store.WithTx.
type Tx interface {
	Reader

	// NextStateNumber allocates the next per-state sequence number.
	NextStateNumber(ctx context.Context, stateCode string) (int, error)

	InsertContract(ctx context.Context, c *domain.Contract) error
	InsertContractRevision(ctx context.Context, rev *domain.ContractRevision) error
	// UpdateContractRevision rewrites form data, submit/unlock info and updated_at.
	UpdateContractRevision(ctx context.Context, rev *domain.ContractRevision) error
	TouchContract(ctx context.Context, id string, at time.Time) error

	InsertRate(ctx context.Context, r *domain.Rate) error
	InsertRateRevision(ctx context.Context, rev *domain.RateRevision) error
	UpdateRateRevision(ctx context.Context, rev *domain.RateRevision) error
	UpdateRateParent(ctx context.Context, rateID, contractID string) error
	TouchRate(ctx context.Context, id string, at time.Time) error

	// SetDraftRates replaces the ordered draft rate links of a contract.
	SetDraftRates(ctx context.Context, contractID string, rateIDs []string) error
	InsertPackageSubmission(ctx context.Context, p *domain.PackageSubmission) error

	InsertContractAction(ctx context.Context, a *domain.ContractAction) error
	InsertRateAction(ctx context.Context, a *domain.RateAction) error

	InsertRateWithdrawal(ctx context.Context, w *domain.RateWithdrawal) error
	// RestoreRateWithdrawals closes every open withdrawal row of the rate.
	RestoreRateWithdrawals(ctx context.Context, rateID string, at time.Time) error

	InsertRateOverride(ctx context.Context, o *domain.RateOverride) error
}

// Store is the persistence boundary of the workflow service. Every mutation
// runs inside one WithTx call; fn's error rolls the transaction back.
type Store interface {
	Reader
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
}
