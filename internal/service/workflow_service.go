package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/domain"
	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/logger"
	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/repository"
)

// FlagRateEditUnlock gates unlockRate and submitRate.
const FlagRateEditUnlock = "rate-edit-unlock"

// FeatureFlags answers feature flag lookups.
type FeatureFlags interface {
	Enabled(ctx context.Context, flag string) bool
}

// Notifier receives committed workflow events. Implementations log their
// own delivery failures.
type Notifier interface {
	Notify(ctx context.Context, evt domain.Event)
}

// KeyIssuer signs API keys for createApiKey.
type KeyIssuer interface {
	IssueAPIKey(ctx context.Context, user domain.User) (domain.APIKey, error)
}

// WorkflowService implements the contract and rate workflow. Every mutation
// runs in one store transaction; events are published after commit.
type WorkflowService struct {
	store    repository.Store
	flags    FeatureFlags
	notifier Notifier
	keys     KeyIssuer
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string
}

// Option customizes a WorkflowService.
type Option func(*WorkflowService)

func WithFeatureFlags(f FeatureFlags) Option { return func(s *WorkflowService) { s.flags = f } }

func WithNotifier(n Notifier) Option { return func(s *WorkflowService) { s.notifier = n } }

func WithKeyIssuer(k KeyIssuer) Option { return func(s *WorkflowService) { s.keys = k } }

// WithClock replaces time.Now. The returned time is normalized to UTC
// microseconds so it survives a database round trip unchanged.
func WithClock(now func() time.Time) Option { return func(s *WorkflowService) { s.now = now } }

func WithIDGenerator(fn func() string) Option { return func(s *WorkflowService) { s.newID = fn } }

func NewWorkflowService(store repository.Store, log *zap.Logger, opts ...Option) *WorkflowService {
	if log == nil {
		log = zap.NewNop()
	}
	s := &WorkflowService{
		store:  store,
		logger: log,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *WorkflowService) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *WorkflowService) log(ctx context.Context) *zap.Logger {
	return logger.FromContext(ctx, s.logger)
}

func (s *WorkflowService) flagEnabled(ctx context.Context, flag string) bool {
	if s.flags == nil {
		return false
	}
	return s.flags.Enabled(ctx, flag)
}

// publish delivers events after commit.
func (s *WorkflowService) publish(ctx context.Context, events []domain.Event) {
	if s.notifier == nil {
		return
	}
	for _, evt := range events {
		s.notifier.Notify(ctx, evt)
	}
}

// mutate runs fn in a transaction and normalizes unexpected failures.
func (s *WorkflowService) mutate(ctx context.Context, op string, fn func(tx repository.Tx) error) error {
	err := s.store.WithTx(ctx, fn)
	if err == nil {
		return nil
	}
	if _, ok := domain.AsError(err); ok {
		return err
	}
	s.log(ctx).Error("mutation failed", zap.String("operation", op), zap.Error(err))
	return domain.Internal(err, "failed to %s", op)
}

// ---- authorization ----

func rejectOAuth(actor domain.Actor) error {
	if actor.IsOAuthClient() {
		return domain.Forbidden("oauth clients are not authorized to perform mutations")
	}
	return nil
}

// requireStateUser allows state users acting on their own state's data.
func requireStateUser(actor domain.Actor, stateCode string) error {
	if err := rejectOAuth(actor); err != nil {
		return err
	}
	if !actor.User.IsStateUser() {
		return domain.Forbidden("user not authorized to create state data")
	}
	if stateCode != "" && actor.User.StateCode != stateCode {
		return domain.Forbidden("user not authorized to modify data from another state")
	}
	return nil
}

func requireCMSUser(actor domain.Actor, action string) error {
	if err := rejectOAuth(actor); err != nil {
		return err
	}
	if !actor.User.IsCMSUser() {
		return domain.Forbidden("user not authorized to %s", action)
	}
	return nil
}

// ---- loading ----

func loadContract(ctx context.Context, r repository.Reader, id string) (*domain.Contract, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.BadUserInput("contractID is required").WithArgument("contractID")
	}
	c, err := r.GetContract(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NotFound("contract with id %s does not exist", id)
		}
		return nil, fmt.Errorf("failed to load contract %s: %w", id, err)
	}
	return c, nil
}

func loadRate(ctx context.Context, r repository.Reader, id string) (*domain.Rate, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.BadUserInput("rateID is required").WithArgument("rateID")
	}
	rate, err := r.GetRate(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NotFound("rate with id %s does not exist", id)
		}
		return nil, fmt.Errorf("failed to load rate %s: %w", id, err)
	}
	return rate, nil
}

func loadContracts(ctx context.Context, r repository.Reader, ids []string) ([]*domain.Contract, error) {
	out := make([]*domain.Contract, 0, len(ids))
	for _, id := range ids {
		c, err := loadContract(ctx, r, id)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// checkLastSeen fails with CONCURRENT_UPDATE when the caller's view of the
// draft is stale.
func checkLastSeen(draftUpdatedAt, lastSeen time.Time) error {
	if !draftUpdatedAt.Equal(lastSeen) {
		return domain.BadUserInput(
			"concurrent update: the draft was updated at %s, request was based on %s",
			draftUpdatedAt.Format(time.RFC3339Nano), lastSeen.UTC().Format(time.RFC3339Nano),
		).WithCause(domain.CauseConcurrentUpdate).WithArgument("lastSeenUpdatedAt")
	}
	return nil
}

func invalidContractStatus(op string, c *domain.Contract, allowed ...domain.Status) *domain.Error {
	return domain.BadUserInput("Attempted to %s contract %s with status %s; must be %s",
		op, c.ID, c.ConsolidatedStatus(), joinStatuses(allowed)).
		WithCause(domain.CauseInvalidPackageStatus)
}

func invalidRateStatus(op string, r *domain.Rate, allowed ...domain.Status) *domain.Error {
	return domain.BadUserInput("Attempted to %s rate %s with status %s; must be %s",
		op, r.ID, r.ConsolidatedStatus(), joinStatuses(allowed)).
		WithCause(domain.CauseInvalidRateStatus)
}

func joinStatuses(statuses []domain.Status) string {
	parts := make([]string, len(statuses))
	for i, st := range statuses {
		parts[i] = string(st)
	}
	return strings.Join(parts, " or ")
}

// isFutureDate compares calendar dates in UTC.
func isFutureDate(t, now time.Time) bool {
	return dateOf(t).After(dateOf(now))
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sortedUnique(ids []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// ---- shared write steps ----

// copyRateRevision appends a submitted copy of the rate's latest submitted
// revision, moving the rate to RESUBMITTED.
func (s *WorkflowService) copyRateRevision(ctx context.Context, tx repository.Tx, rate *domain.Rate, info domain.UpdateInfo) (*domain.RateRevision, error) {
	if rate.Status() == domain.StatusUnlocked {
		return nil, domain.BadUserInput("rate %s is unlocked and must be resubmitted first", rate.ID).WithCause(domain.CauseInvalidRateStatus)
	}
	src := rate.LatestSubmittedRevision()
	if src == nil {
		return nil, domain.BadUserInput("rate %s has never been submitted", rate.ID).WithCause(domain.CauseInvalidRateStatus)
	}
	submit := info
	rev := &domain.RateRevision{
		ID:         s.newID(),
		RateID:     rate.ID,
		CreatedAt:  info.UpdatedAt,
		UpdatedAt:  info.UpdatedAt,
		SubmitInfo: &submit,
		FormData:   src.FormData.Clone(),
	}
	if err := tx.InsertRateRevision(ctx, rev); err != nil {
		return nil, err
	}
	if err := tx.TouchRate(ctx, rate.ID, info.UpdatedAt); err != nil {
		return nil, err
	}
	return rev, nil
}

// propagateRateRevisions appends a RATE_SUBMISSION package to every other
// active contract whose latest package carries one of the given rates,
// swapping in the new rate revision.
func (s *WorkflowService) propagateRateRevisions(ctx context.Context, tx repository.Tx, exceptContractID string, newRevs map[string]string, info domain.UpdateInfo) ([]string, error) {
	if len(newRevs) == 0 {
		return nil, nil
	}
	var candidates []string
	for rateID := range newRevs {
		ids, err := tx.ContractIDsForRate(ctx, rateID)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, ids...)
	}

	var touched []string
	for _, id := range sortedUnique(candidates) {
		if id == exceptContractID {
			continue
		}
		c, err := loadContract(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		if c.ConsolidatedStatus() == domain.StatusWithdrawn {
			continue
		}
		pkg := c.LatestPackage()
		if pkg == nil {
			continue
		}
		changed := false
		rates := make([]domain.PackageRate, len(pkg.Rates))
		for i, pr := range pkg.Rates {
			rates[i] = pr
			if rev, ok := newRevs[pr.RateID]; ok && rev != pr.RateRevisionID {
				rates[i].RateRevisionID = rev
				changed = true
			}
		}
		if !changed {
			continue
		}
		if err := s.appendPackage(ctx, tx, c, domain.CauseRateSubmission, pkg.ContractRevisionID, rates, info); err != nil {
			return nil, err
		}
		touched = append(touched, c.ID)
	}
	return touched, nil
}

func (s *WorkflowService) appendPackage(ctx context.Context, tx repository.Tx, c *domain.Contract, cause domain.SubmissionCause, contractRevisionID string, rates []domain.PackageRate, info domain.UpdateInfo) error {
	p := &domain.PackageSubmission{
		ID:                 s.newID(),
		ContractID:         c.ID,
		Cause:              cause,
		SubmitInfo:         info,
		ContractRevisionID: contractRevisionID,
		Rates:              rates,
		CreatedAt:          info.UpdatedAt,
	}
	if err := tx.InsertPackageSubmission(ctx, p); err != nil {
		return err
	}
	return tx.TouchContract(ctx, c.ID, info.UpdatedAt)
}

func (s *WorkflowService) insertContractAction(ctx context.Context, tx repository.Tx, contractID string, action domain.ActionType, info domain.UpdateInfo, released *time.Time) error {
	return tx.InsertContractAction(ctx, &domain.ContractAction{
		ID:                          s.newID(),
		ContractID:                  contractID,
		ActionType:                  action,
		UpdatedAt:                   info.UpdatedAt,
		UpdatedBy:                   info.UpdatedBy,
		UpdatedReason:               info.UpdatedReason,
		DateApprovalReleasedToState: released,
	})
}

func (s *WorkflowService) insertRateAction(ctx context.Context, tx repository.Tx, rateID, contractID string, action domain.ActionType, info domain.UpdateInfo) error {
	if err := tx.InsertRateAction(ctx, &domain.RateAction{
		ID:            s.newID(),
		RateID:        rateID,
		ActionType:    action,
		ContractID:    contractID,
		UpdatedAt:     info.UpdatedAt,
		UpdatedBy:     info.UpdatedBy,
		UpdatedReason: info.UpdatedReason,
	}); err != nil {
		return err
	}
	return tx.TouchRate(ctx, rateID, info.UpdatedAt)
}

func contractEvent(t domain.EventType, c *domain.Contract, info domain.UpdateInfo, status domain.Status) domain.Event {
	return domain.Event{
		Type:       t,
		ContractID: c.ID,
		StateCode:  c.StateCode,
		Name:       c.Name(),
		Status:     status,
		Reason:     info.UpdatedReason,
		UpdatedBy:  info.UpdatedBy,
		At:         info.UpdatedAt,
	}
}

func rateEvent(t domain.EventType, r *domain.Rate, info domain.UpdateInfo, status domain.Status) domain.Event {
	return domain.Event{
		Type:      t,
		RateID:    r.ID,
		StateCode: r.StateCode,
		Name:      r.Name(),
		Status:    status,
		Reason:    info.UpdatedReason,
		UpdatedBy: info.UpdatedBy,
		At:        info.UpdatedAt,
	}
}
