package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/domain"
)

// MemoryStore keeps every table in process memory. It backs local runs
// with STORE=memory and the service tests.
type MemoryStore struct {
	mu   sync.RWMutex
	data *memData
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: newMemData()}
}

var _ Store = (*MemoryStore)(nil)

// memData holds the flat tables; slices keep insertion order.
type memData struct {
	stateNumbers      map[string]int
	contracts         map[string]domain.Contract
	contractRevisions []domain.ContractRevision
	rates             map[string]domain.Rate
	rateRevisions     []domain.RateRevision
	draftLinks        map[string][]string
	packages          []domain.PackageSubmission
	contractActions   []domain.ContractAction
	rateActions       []domain.RateAction
	withdrawals       []domain.RateWithdrawal
	overrides         []domain.RateOverride
}

func newMemData() *memData {
	return &memData{
		stateNumbers: map[string]int{},
		contracts:    map[string]domain.Contract{},
		rates:        map[string]domain.Rate{},
		draftLinks:   map[string][]string{},
	}
}

// clone copies every table. Row values are replaced, never mutated in
// place, so a shallow copy of each slice is a full snapshot.
func (d *memData) clone() *memData {
	out := &memData{
		stateNumbers:      make(map[string]int, len(d.stateNumbers)),
		contracts:         make(map[string]domain.Contract, len(d.contracts)),
		contractRevisions: append([]domain.ContractRevision(nil), d.contractRevisions...),
		rates:             make(map[string]domain.Rate, len(d.rates)),
		rateRevisions:     append([]domain.RateRevision(nil), d.rateRevisions...),
		draftLinks:        make(map[string][]string, len(d.draftLinks)),
		packages:          append([]domain.PackageSubmission(nil), d.packages...),
		contractActions:   append([]domain.ContractAction(nil), d.contractActions...),
		rateActions:       append([]domain.RateAction(nil), d.rateActions...),
		withdrawals:       append([]domain.RateWithdrawal(nil), d.withdrawals...),
		overrides:         append([]domain.RateOverride(nil), d.overrides...),
	}
	for k, v := range d.stateNumbers {
		out.stateNumbers[k] = v
	}
	for k, v := range d.contracts {
		out.contracts[k] = v
	}
	for k, v := range d.rates {
		out.rates[k] = v
	}
	for k, v := range d.draftLinks {
		out.draftLinks[k] = append([]string(nil), v...)
	}
	return out
}

// WithTx serializes writers and restores the previous tables when fn fails.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	defer func() {
		if p := recover(); p != nil {
			s.data = snapshot
			panic(p)
		}
	}()
	if err = fn(&memTx{d: s.data}); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

func (s *MemoryStore) GetContract(_ context.Context, id string) (*domain.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.contract(id)
}

func (s *MemoryStore) GetRate(_ context.Context, id string) (*domain.Rate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.rate(id)
}

func (s *MemoryStore) ListContracts(_ context.Context, stateCode string) ([]*domain.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.listContracts(stateCode)
}

func (s *MemoryStore) ListRates(_ context.Context, stateCode string) ([]*domain.Rate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.listRates(stateCode)
}

func (s *MemoryStore) ContractIDsForRate(_ context.Context, rateID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.contractIDsForRate(rateID), nil
}

func (s *MemoryStore) WithdrawnRateIDs(_ context.Context, contractID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.withdrawnRateIDs(contractID), nil
}

// ---- assembly ----

func (d *memData) contract(id string) (*domain.Contract, error) {
	head, ok := d.contracts[id]
	if !ok {
		return nil, fmt.Errorf("contract %s: %w", id, domain.ErrNotFound)
	}
	c := head
	c.Revisions = nil
	for _, rev := range d.contractRevisions {
		if rev.ContractID == id {
			rev.FormData = rev.FormData.Clone()
			c.Revisions = append(c.Revisions, rev)
		}
	}
	c.PackageSubmissions = nil
	for _, p := range d.packages {
		if p.ContractID == id {
			p.Rates = append([]domain.PackageRate(nil), p.Rates...)
			c.PackageSubmissions = append(c.PackageSubmissions, p)
		}
	}
	c.DraftRateIDs = append([]string(nil), d.draftLinks[id]...)
	c.ReviewActions = nil
	for _, a := range d.contractActions {
		if a.ContractID == id {
			c.ReviewActions = append(c.ReviewActions, a)
		}
	}
	return &c, nil
}

func (d *memData) rate(id string) (*domain.Rate, error) {
	head, ok := d.rates[id]
	if !ok {
		return nil, fmt.Errorf("rate %s: %w", id, domain.ErrNotFound)
	}
	r := head
	r.Revisions = nil
	for _, rev := range d.rateRevisions {
		if rev.RateID == id {
			rev.FormData = rev.FormData.Clone()
			r.Revisions = append(r.Revisions, rev)
		}
	}
	r.ReviewActions = nil
	for _, a := range d.rateActions {
		if a.RateID == id {
			r.ReviewActions = append(r.ReviewActions, a)
		}
	}
	r.Withdrawals = nil
	for _, w := range d.withdrawals {
		if w.RateID == id {
			r.Withdrawals = append(r.Withdrawals, w)
		}
	}
	r.Overrides = nil
	for _, o := range d.overrides {
		if o.RateID == id {
			r.Overrides = append(r.Overrides, o)
		}
	}
	return &r, nil
}

func (d *memData) listContracts(stateCode string) ([]*domain.Contract, error) {
	ids := make([]string, 0, len(d.contracts))
	for id, c := range d.contracts {
		if stateCode == "" || c.StateCode == stateCode {
			ids = append(ids, id)
		}
	}
	d.sortContractIDs(ids)
	out := make([]*domain.Contract, 0, len(ids))
	for _, id := range ids {
		c, err := d.contract(id)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (d *memData) listRates(stateCode string) ([]*domain.Rate, error) {
	ids := make([]string, 0, len(d.rates))
	for id, r := range d.rates {
		if stateCode == "" || r.StateCode == stateCode {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := d.rates[ids[i]], d.rates[ids[j]]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	out := make([]*domain.Rate, 0, len(ids))
	for _, id := range ids {
		r, err := d.rate(id)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (d *memData) sortContractIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		a, b := d.contracts[ids[i]], d.contracts[ids[j]]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

func (d *memData) contractIDsForRate(rateID string) []string {
	set := map[string]bool{}
	if r, ok := d.rates[rateID]; ok && r.ParentContractID != "" {
		set[r.ParentContractID] = true
	}
	for contractID, links := range d.draftLinks {
		for _, id := range links {
			if id == rateID {
				set[contractID] = true
			}
		}
	}
	for _, p := range d.packages {
		if p.HasRate(rateID) {
			set[p.ContractID] = true
		}
	}
	for _, w := range d.withdrawals {
		if w.RateID == rateID {
			set[w.ContractID] = true
		}
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		if _, ok := d.contracts[id]; ok {
			ids = append(ids, id)
		}
	}
	d.sortContractIDs(ids)
	return ids
}

func (d *memData) withdrawnRateIDs(contractID string) []string {
	var ids []string
	seen := map[string]bool{}
	for _, w := range d.withdrawals {
		if w.ContractID == contractID && w.RestoredAt == nil && !seen[w.RateID] {
			seen[w.RateID] = true
			ids = append(ids, w.RateID)
		}
	}
	return ids
}

// ---- transaction ----

// memTx runs with MemoryStore.mu held for writing.
type memTx struct {
	d *memData
}

var _ Tx = (*memTx)(nil)

func (t *memTx) GetContract(_ context.Context, id string) (*domain.Contract, error) {
	return t.d.contract(id)
}

func (t *memTx) GetRate(_ context.Context, id string) (*domain.Rate, error) {
	return t.d.rate(id)
}

func (t *memTx) ListContracts(_ context.Context, stateCode string) ([]*domain.Contract, error) {
	return t.d.listContracts(stateCode)
}

func (t *memTx) ListRates(_ context.Context, stateCode string) ([]*domain.Rate, error) {
	return t.d.listRates(stateCode)
}

func (t *memTx) ContractIDsForRate(_ context.Context, rateID string) ([]string, error) {
	return t.d.contractIDsForRate(rateID), nil
}

func (t *memTx) WithdrawnRateIDs(_ context.Context, contractID string) ([]string, error) {
	return t.d.withdrawnRateIDs(contractID), nil
}

func (t *memTx) NextStateNumber(_ context.Context, stateCode string) (int, error) {
	t.d.stateNumbers[stateCode]++
	return t.d.stateNumbers[stateCode], nil
}

func (t *memTx) InsertContract(_ context.Context, c *domain.Contract) error {
	if _, ok := t.d.contracts[c.ID]; ok {
		return fmt.Errorf("contract %s already exists", c.ID)
	}
	t.d.contracts[c.ID] = domain.Contract{
		ID:          c.ID,
		StateCode:   c.StateCode,
		StateNumber: c.StateNumber,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
	return nil
}

func (t *memTx) InsertContractRevision(_ context.Context, rev *domain.ContractRevision) error {
	if _, ok := t.d.contracts[rev.ContractID]; !ok {
		return fmt.Errorf("contract %s: %w", rev.ContractID, domain.ErrNotFound)
	}
	r := *rev
	r.FormData = rev.FormData.Clone()
	t.d.contractRevisions = append(t.d.contractRevisions, r)
	return nil
}

func (t *memTx) UpdateContractRevision(_ context.Context, rev *domain.ContractRevision) error {
	for i := range t.d.contractRevisions {
		if t.d.contractRevisions[i].ID == rev.ID {
			r := *rev
			r.FormData = rev.FormData.Clone()
			r.ContractID = t.d.contractRevisions[i].ContractID
			r.CreatedAt = t.d.contractRevisions[i].CreatedAt
			t.d.contractRevisions[i] = r
			return nil
		}
	}
	return fmt.Errorf("contract revision %s: %w", rev.ID, domain.ErrNotFound)
}

func (t *memTx) TouchContract(_ context.Context, id string, at time.Time) error {
	c, ok := t.d.contracts[id]
	if !ok {
		return fmt.Errorf("contract %s: %w", id, domain.ErrNotFound)
	}
	c.UpdatedAt = at
	t.d.contracts[id] = c
	return nil
}

func (t *memTx) InsertRate(_ context.Context, r *domain.Rate) error {
	if _, ok := t.d.rates[r.ID]; ok {
		return fmt.Errorf("rate %s already exists", r.ID)
	}
	t.d.rates[r.ID] = domain.Rate{
		ID:               r.ID,
		StateCode:        r.StateCode,
		StateNumber:      r.StateNumber,
		ParentContractID: r.ParentContractID,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	return nil
}

func (t *memTx) InsertRateRevision(_ context.Context, rev *domain.RateRevision) error {
	if _, ok := t.d.rates[rev.RateID]; !ok {
		return fmt.Errorf("rate %s: %w", rev.RateID, domain.ErrNotFound)
	}
	r := *rev
	r.FormData = rev.FormData.Clone()
	t.d.rateRevisions = append(t.d.rateRevisions, r)
	return nil
}

func (t *memTx) UpdateRateRevision(_ context.Context, rev *domain.RateRevision) error {
	for i := range t.d.rateRevisions {
		if t.d.rateRevisions[i].ID == rev.ID {
			r := *rev
			r.FormData = rev.FormData.Clone()
			r.RateID = t.d.rateRevisions[i].RateID
			r.CreatedAt = t.d.rateRevisions[i].CreatedAt
			t.d.rateRevisions[i] = r
			return nil
		}
	}
	return fmt.Errorf("rate revision %s: %w", rev.ID, domain.ErrNotFound)
}

func (t *memTx) UpdateRateParent(_ context.Context, rateID, contractID string) error {
	r, ok := t.d.rates[rateID]
	if !ok {
		return fmt.Errorf("rate %s: %w", rateID, domain.ErrNotFound)
	}
	r.ParentContractID = contractID
	t.d.rates[rateID] = r
	return nil
}

func (t *memTx) TouchRate(_ context.Context, id string, at time.Time) error {
	r, ok := t.d.rates[id]
	if !ok {
		return fmt.Errorf("rate %s: %w", id, domain.ErrNotFound)
	}
	r.UpdatedAt = at
	t.d.rates[id] = r
	return nil
}

func (t *memTx) SetDraftRates(_ context.Context, contractID string, rateIDs []string) error {
	if _, ok := t.d.contracts[contractID]; !ok {
		return fmt.Errorf("contract %s: %w", contractID, domain.ErrNotFound)
	}
	for _, id := range rateIDs {
		if _, ok := t.d.rates[id]; !ok {
			return fmt.Errorf("rate %s: %w", id, domain.ErrNotFound)
		}
	}
	if len(rateIDs) == 0 {
		delete(t.d.draftLinks, contractID)
		return nil
	}
	t.d.draftLinks[contractID] = append([]string(nil), rateIDs...)
	return nil
}

func (t *memTx) InsertPackageSubmission(_ context.Context, p *domain.PackageSubmission) error {
	if _, ok := t.d.contracts[p.ContractID]; !ok {
		return fmt.Errorf("contract %s: %w", p.ContractID, domain.ErrNotFound)
	}
	cp := *p
	cp.Rates = append([]domain.PackageRate(nil), p.Rates...)
	t.d.packages = append(t.d.packages, cp)
	return nil
}

func (t *memTx) InsertContractAction(_ context.Context, a *domain.ContractAction) error {
	t.d.contractActions = append(t.d.contractActions, *a)
	return nil
}

func (t *memTx) InsertRateAction(_ context.Context, a *domain.RateAction) error {
	t.d.rateActions = append(t.d.rateActions, *a)
	return nil
}

func (t *memTx) InsertRateWithdrawal(_ context.Context, w *domain.RateWithdrawal) error {
	t.d.withdrawals = append(t.d.withdrawals, *w)
	return nil
}

func (t *memTx) RestoreRateWithdrawals(_ context.Context, rateID string, at time.Time) error {
	for i := range t.d.withdrawals {
		w := t.d.withdrawals[i]
		if w.RateID == rateID && w.RestoredAt == nil {
			restored := at
			w.RestoredAt = &restored
			t.d.withdrawals[i] = w
		}
	}
	return nil
}

func (t *memTx) InsertRateOverride(_ context.Context, o *domain.RateOverride) error {
	t.d.overrides = append(t.d.overrides, *o)
	return nil
}
