package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/domain"
	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/repository"
)

var testStart = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

// testClock advances one second per call so creation order is deterministic.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.Event
}

func (n *recordingNotifier) Notify(_ context.Context, evt domain.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, evt)
}

func (n *recordingNotifier) types() []domain.EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.EventType, len(n.events))
	for i, e := range n.events {
		out[i] = e.Type
	}
	return out
}

type staticFlags map[string]bool

func (f staticFlags) Enabled(_ context.Context, flag string) bool { return f[flag] }

type fixture struct {
	svc      *WorkflowService
	store    *repository.MemoryStore
	clock    *testClock
	notifier *recordingNotifier
	flags    staticFlags
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store:    repository.NewMemoryStore(),
		clock:    &testClock{t: testStart},
		notifier: &recordingNotifier{},
		flags:    staticFlags{},
	}
	n := 0
	base := []Option{
		WithClock(f.clock.Now),
		WithNotifier(f.notifier),
		WithFeatureFlags(f.flags),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%04d", n)
		}),
	}
	f.svc = NewWorkflowService(f.store, zap.NewNop(), append(base, opts...)...)
	return f
}

func stateUser(stateCode string) domain.Actor {
	return domain.Actor{User: domain.User{
		ID: "state-" + stateCode, Email: "aang@" + stateCode + ".gov", GivenName: "Aang", FamilyName: "Avatar",
		Role: domain.RoleStateUser, StateCode: stateCode,
	}}
}

var (
	cmsUser  = domain.Actor{User: domain.User{ID: "cms-1", Email: "zuko@cms.gov", GivenName: "Zuko", Role: domain.RoleCMSUser}}
	approver = domain.Actor{User: domain.User{ID: "cms-2", Email: "iroh@cms.gov", GivenName: "Iroh", Role: domain.RoleCMSApproverUser}}
	admin    = domain.Actor{User: domain.User{ID: "admin-1", Email: "admin@cms.gov", Role: domain.RoleAdminUser}}
	helpdesk = domain.Actor{User: domain.User{ID: "help-1", Email: "help@cms.gov", Role: domain.RoleHelpdeskUser}}
	mn       = stateUser("MN")
)

func contractForm(st domain.SubmissionType) domain.ContractFormData {
	risk := true
	return domain.ContractFormData{
		SubmissionType:        st,
		SubmissionDescription: "managed care contract",
		ContractType:          domain.ContractTypeBase,
		ProgramIDs:            []string{"prog-1"},
		RiskBasedContract:     &risk,
		ContractDateStart:     "2024-01-01",
		ContractDateEnd:       "2024-12-31",
		ContractDocuments:     []domain.Document{{Name: "contract.pdf", S3URL: "s3://bucket/contract.pdf", SHA256: "abc"}},
		StateContacts:         []domain.StateContact{{Name: "Katara", Email: "katara@mn.gov"}},
	}
}

func rateForm(name string) domain.RateFormData {
	return domain.RateFormData{
		RateType:                  domain.RateTypeNew,
		RateCertificationName:     name,
		RateProgramIDs:            []string{"prog-1"},
		RateDateStart:             "2024-01-01",
		RateDateEnd:               "2024-12-31",
		RateDateCertified:         "2023-12-01",
		RateDocuments:             []domain.Document{{Name: "rate.pdf", S3URL: "s3://bucket/rate.pdf", SHA256: "def"}},
		CertifyingActuaryContacts: []domain.ActuaryContact{{Name: "Sokka", Email: "sokka@actuary.com"}},
	}
}

func requireCode(t *testing.T, err error, code domain.ErrorCode) *domain.Error {
	t.Helper()
	require.Error(t, err)
	e, ok := domain.AsError(err)
	require.True(t, ok, "expected typed error, got %v", err)
	require.Equal(t, code, e.Code, e.Message)
	return e
}

// draftContract creates a draft contract with new child rates.
func (f *fixture) draftContract(t *testing.T, actor domain.Actor, rateNames ...string) *domain.Contract {
	t.Helper()
	ctx := context.Background()
	st := domain.SubmissionTypeContractAndRates
	if len(rateNames) == 0 {
		st = domain.SubmissionTypeContractOnly
	}
	c, err := f.svc.CreateContract(ctx, actor, CreateContractInput{FormData: contractForm(st)})
	require.NoError(t, err)
	if len(rateNames) == 0 {
		return c
	}
	updates := make([]RateUpdate, len(rateNames))
	for i, name := range rateNames {
		fd := rateForm(name)
		updates[i] = RateUpdate{Type: RateUpdateCreate, FormData: &fd}
	}
	c, err = f.svc.UpdateDraftContractRates(ctx, actor, UpdateDraftContractRatesInput{
		ContractID: c.ID, LastSeenUpdatedAt: c.LastSeenUpdatedAt(), UpdatedRates: updates,
	})
	require.NoError(t, err)
	return c
}

// submitted creates and submits a contract with new child rates.
func (f *fixture) submitted(t *testing.T, rateNames ...string) *domain.Contract {
	t.Helper()
	c := f.draftContract(t, mn, rateNames...)
	c, err := f.svc.SubmitContract(context.Background(), mn, SubmitContractInput{ContractID: c.ID, SubmittedReason: "initial"})
	require.NoError(t, err)
	return c
}

// submittedLinking creates a contract linking existing rates and submits it.
func (f *fixture) submittedLinking(t *testing.T, rateIDs ...string) *domain.Contract {
	t.Helper()
	c := f.linkedDraft(t, rateIDs...)
	c, err := f.svc.SubmitContract(context.Background(), mn, SubmitContractInput{ContractID: c.ID, SubmittedReason: "linked"})
	require.NoError(t, err)
	return c
}

func (f *fixture) linkedDraft(t *testing.T, rateIDs ...string) *domain.Contract {
	t.Helper()
	ctx := context.Background()
	c, err := f.svc.CreateContract(ctx, mn, CreateContractInput{FormData: contractForm(domain.SubmissionTypeContractAndRates)})
	require.NoError(t, err)
	updates := make([]RateUpdate, len(rateIDs))
	for i, id := range rateIDs {
		updates[i] = RateUpdate{Type: RateUpdateLink, RateID: id}
	}
	c, err = f.svc.UpdateDraftContractRates(ctx, mn, UpdateDraftContractRatesInput{
		ContractID: c.ID, LastSeenUpdatedAt: c.LastSeenUpdatedAt(), UpdatedRates: updates,
	})
	require.NoError(t, err)
	return c
}

func (f *fixture) contract(t *testing.T, id string) *domain.Contract {
	t.Helper()
	c, err := f.store.GetContract(context.Background(), id)
	require.NoError(t, err)
	return c
}

func (f *fixture) rate(t *testing.T, id string) *domain.Rate {
	t.Helper()
	r, err := f.store.GetRate(context.Background(), id)
	require.NoError(t, err)
	return r
}

func TestNewWorkflowService_Defaults(t *testing.T) {
	s := NewWorkflowService(repository.NewMemoryStore(), nil)
	assert.NotNil(t, s.logger)
	assert.NotEmpty(t, s.newID())
	assert.NotEqual(t, s.newID(), s.newID())
	now := s.clock()
	assert.Equal(t, time.UTC, now.Location())
	assert.Equal(t, 0, now.Nanosecond()%1000)
	assert.False(t, s.flagEnabled(context.Background(), FlagRateEditUnlock))
}

type failingTx struct {
	repository.Tx
}

func (failingTx) InsertPackageSubmission(context.Context, *domain.PackageSubmission) error {
	return errors.New("connection reset by peer")
}

type failingStore struct {
	*repository.MemoryStore
}

func (s failingStore) WithTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	return s.MemoryStore.WithTx(ctx, func(tx repository.Tx) error { return fn(failingTx{tx}) })
}

func TestMutate_PersistenceFailureIsWrappedAndRolledBack(t *testing.T) {
	f := newFixture(t)
	c := f.draftContract(t, mn, "rate one")

	broken := NewWorkflowService(failingStore{f.store}, zap.NewNop(), WithClock(f.clock.Now), WithNotifier(f.notifier))
	_, err := broken.SubmitContract(context.Background(), mn, SubmitContractInput{ContractID: c.ID, SubmittedReason: "go"})
	e := requireCode(t, err, domain.CodeInternal)
	assert.Equal(t, domain.CauseUnexpectedException, e.Cause)
	assert.Equal(t, "failed to submit contract", e.Message)
	assert.Contains(t, err.Error(), "connection reset by peer")

	after := f.contract(t, c.ID)
	assert.Equal(t, domain.StatusDraft, after.Status())
	assert.Empty(t, after.PackageSubmissions)
	assert.Equal(t, domain.StatusDraft, f.rate(t, c.DraftRateIDs[0]).Status())
	assert.Empty(t, f.notifier.types())
}
