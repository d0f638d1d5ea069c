package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/domain"
)

// authorizeRead checks a read of an entity belonging to stateCode.
func authorizeRead(actor domain.Actor, grant, kind, stateCode string, status domain.Status) error {
	if actor.IsOAuthClient() && !actor.OAuthClient.HasGrant(grant) {
		return domain.Forbidden("oauth client %s is not authorized to read %ss", actor.OAuthClient.ClientID, kind)
	}
	u := actor.User
	switch {
	case u.IsStateUser():
		if u.StateCode != stateCode {
			return domain.Forbidden("user not authorized to fetch data from a different state")
		}
	case u.CanReadAllStates():
		if status == domain.StatusDraft {
			return domain.Forbidden("user not authorized to fetch a draft %s", kind)
		}
	default:
		return domain.Forbidden("user not authorized to fetch %s data", kind)
	}
	return nil
}

func authorizeIndex(actor domain.Actor, grant, kind string) error {
	if actor.IsOAuthClient() && !actor.OAuthClient.HasGrant(grant) {
		return domain.Forbidden("oauth client %s is not authorized to read %ss", actor.OAuthClient.ClientID, kind)
	}
	if !actor.User.IsStateUser() && !actor.User.CanReadAllStates() {
		return domain.Forbidden("user not authorized to fetch %s data", kind)
	}
	return nil
}

// readErr maps repository failures on the read path.
func (s *WorkflowService) readErr(ctx context.Context, op string, err error) error {
	if _, ok := domain.AsError(err); ok {
		return err
	}
	s.log(ctx).Error("query failed", zap.String("operation", op), zap.Error(err))
	return domain.Internal(err, "failed to %s", op)
}

func (s *WorkflowService) FetchContract(ctx context.Context, actor domain.Actor, id string) (*domain.Contract, error) {
	c, err := loadContract(ctx, s.store, id)
	if err != nil {
		return nil, s.readErr(ctx, "fetch contract", err)
	}
	if err := authorizeRead(actor, domain.GrantReadContracts, "contract", c.StateCode, c.Status()); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *WorkflowService) FetchRate(ctx context.Context, actor domain.Actor, id string) (*domain.Rate, error) {
	r, err := loadRate(ctx, s.store, id)
	if err != nil {
		return nil, s.readErr(ctx, "fetch rate", err)
	}
	if err := authorizeRead(actor, domain.GrantReadRates, "rate", r.StateCode, r.Status()); err != nil {
		return nil, err
	}
	return r, nil
}

// IndexContracts lists the contracts visible to the caller. State users see
// their own state; everyone else sees submitted contracts of every state.
func (s *WorkflowService) IndexContracts(ctx context.Context, actor domain.Actor) ([]*domain.Contract, error) {
	if err := authorizeIndex(actor, domain.GrantReadContracts, "contract"); err != nil {
		return nil, err
	}
	stateCode := ""
	if actor.User.IsStateUser() {
		stateCode = actor.User.StateCode
	}
	all, err := s.store.ListContracts(ctx, stateCode)
	if err != nil {
		return nil, s.readErr(ctx, "index contracts", fmt.Errorf("failed to list contracts: %w", err))
	}
	if stateCode != "" {
		return all, nil
	}
	out := make([]*domain.Contract, 0, len(all))
	for _, c := range all {
		if c.Status() != domain.StatusDraft {
			out = append(out, c)
		}
	}
	return out, nil
}

// IndexRates lists the rates visible to the caller, optionally restricted to ids.
func (s *WorkflowService) IndexRates(ctx context.Context, actor domain.Actor, ids []string) ([]*domain.Rate, error) {
	if err := authorizeIndex(actor, domain.GrantReadRates, "rate"); err != nil {
		return nil, err
	}
	stateCode := ""
	if actor.User.IsStateUser() {
		stateCode = actor.User.StateCode
	}
	all, err := s.store.ListRates(ctx, stateCode)
	if err != nil {
		return nil, s.readErr(ctx, "index rates", fmt.Errorf("failed to list rates: %w", err))
	}
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	out := make([]*domain.Rate, 0, len(all))
	for _, r := range all {
		if len(want) > 0 && !want[r.ID] {
			continue
		}
		if stateCode == "" && r.Status() == domain.StatusDraft {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// CurrentUser returns the authenticated user.
func (s *WorkflowService) CurrentUser(_ context.Context, actor domain.Actor) (domain.User, error) {
	if actor.User.ID == "" && actor.User.Email == "" {
		return domain.User{}, domain.Forbidden("no authenticated user")
	}
	return actor.User, nil
}

// CreateAPIKey issues a bearer key bound to the calling CMS or admin user.
func (s *WorkflowService) CreateAPIKey(ctx context.Context, actor domain.Actor) (domain.APIKey, error) {
	if err := rejectOAuth(actor); err != nil {
		return domain.APIKey{}, err
	}
	if !actor.User.IsCMSUser() && !actor.User.IsAdmin() {
		return domain.APIKey{}, domain.Forbidden("user not authorized to create api keys")
	}
	if s.keys == nil {
		return domain.APIKey{}, domain.Internal(nil, "api key issuing is not configured")
	}
	key, err := s.keys.IssueAPIKey(ctx, actor.User)
	if err != nil {
		return domain.APIKey{}, s.readErr(ctx, "create api key", err)
	}
	s.log(ctx).Info("api key issued", zap.String("user_id", actor.User.ID), zap.Time("expires_at", key.ExpiresAt))
	return key, nil
}

// ---- contract and rate views ----

// RatesByID loads rates preserving the order of ids.
func (s *WorkflowService) RatesByID(ctx context.Context, ids []string) ([]*domain.Rate, error) {
	out := make([]*domain.Rate, 0, len(ids))
	for _, id := range ids {
		r, err := loadRate(ctx, s.store, id)
		if err != nil {
			return nil, s.readErr(ctx, "load rates", err)
		}
		out = append(out, r)
	}
	return out, nil
}

// DraftRates returns the draft-linked rates of a contract, skipping withdrawn ones.
func (s *WorkflowService) DraftRates(ctx context.Context, c *domain.Contract) ([]*domain.Rate, error) {
	rates, err := s.RatesByID(ctx, c.DraftRateIDs)
	if err != nil {
		return nil, err
	}
	out := rates[:0]
	for _, r := range rates {
		if !r.IsWithdrawn() {
			out = append(out, r)
		}
	}
	return out, nil
}

// WithdrawnRates lists withdrawn rates associated with the contract: withdrawn
// draft links, open withdrawal rows and withdrawn rates of the latest package.
func (s *WorkflowService) WithdrawnRates(ctx context.Context, c *domain.Contract) ([]*domain.Rate, error) {
	ids, err := s.store.WithdrawnRateIDs(ctx, c.ID)
	if err != nil {
		return nil, s.readErr(ctx, "load withdrawn rates", fmt.Errorf("failed to list withdrawn rates: %w", err))
	}
	candidates := append([]string(nil), c.DraftRateIDs...)
	if pkg := c.LatestPackage(); pkg != nil {
		candidates = append(candidates, pkg.RateIDs()...)
	}
	ids = append(ids, candidates...)

	seen := map[string]bool{}
	var out []*domain.Rate
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		r, err := loadRate(ctx, s.store, id)
		if err != nil {
			return nil, s.readErr(ctx, "load withdrawn rates", err)
		}
		if r.IsWithdrawn() {
			out = append(out, r)
		}
	}
	return out, nil
}

// WithdrawnFromContracts loads the contracts a rate is currently withdrawn from.
func (s *WorkflowService) WithdrawnFromContracts(ctx context.Context, r *domain.Rate) ([]*domain.Contract, error) {
	cs, err := loadContracts(ctx, s.store, r.WithdrawnFromContractIDs())
	if err != nil {
		return nil, s.readErr(ctx, "load withdrawn from contracts", err)
	}
	return cs, nil
}

// ContractsForRate loads every contract associated with the rate.
func (s *WorkflowService) ContractsForRate(ctx context.Context, r *domain.Rate) ([]*domain.Contract, error) {
	ids, err := s.store.ContractIDsForRate(ctx, r.ID)
	if err != nil {
		return nil, s.readErr(ctx, "load rate contracts", fmt.Errorf("failed to list rate contracts: %w", err))
	}
	cs, err := loadContracts(ctx, s.store, ids)
	if err != nil {
		return nil, s.readErr(ctx, "load rate contracts", err)
	}
	return cs, nil
}

// ParentContract loads the contract that owns the rate.
func (s *WorkflowService) ParentContract(ctx context.Context, r *domain.Rate) (*domain.Contract, error) {
	c, err := loadContract(ctx, s.store, r.ParentContractID)
	if err != nil {
		return nil, s.readErr(ctx, "load parent contract", err)
	}
	return c, nil
}

// Ping checks the store.
func (s *WorkflowService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
