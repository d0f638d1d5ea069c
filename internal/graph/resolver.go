// Package graph exposes the contract and rate workflow over GraphQL.
package graph

import (
	"context"
	"errors"

	"github.com/graphql-go/graphql"
	"go.uber.org/zap"

	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/authn"
	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/domain"
	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/logger"
	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/service"
)

// DocumentSigner turns stored document URLs into download links.
type DocumentSigner interface {
	DownloadURL(ctx context.Context, s3URL string) (string, error)
}

// OperationRecorder observes root field outcomes.
type OperationRecorder interface {
	RecordGraphQL(operation string, code domain.ErrorCode)
}

type Resolver struct {
	svc      *service.WorkflowService
	docs     DocumentSigner
	recorder OperationRecorder
	logger   *zap.Logger
}

// NewResolver wires the workflow service. docs and recorder may be nil.
func NewResolver(svc *service.WorkflowService, docs DocumentSigner, recorder OperationRecorder, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{svc: svc, docs: docs, recorder: recorder, logger: log}
}

type rootFn func(ctx context.Context, actor domain.Actor, p graphql.ResolveParams) (interface{}, error)

// root wraps a Query or Mutation field: it resolves the actor, converts
// errors and records the outcome.
func (r *Resolver) root(name string, fn rootFn) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		actor, ok := authn.ActorFromContext(p.Context)
		if !ok {
			r.record(name, domain.CodeForbidden)
			return nil, unauthenticated()
		}
		out, err := fn(p.Context, actor, p)
		if err != nil {
			gqlErr := r.convert(p.Context, name, err)
			r.record(name, gqlErr.Code)
			return nil, gqlErr
		}
		r.record(name, "")
		return out, nil
	}
}

// nested wraps a child field resolver.
func (r *Resolver) nested(name string, fn func(p graphql.ResolveParams) (interface{}, error)) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		out, err := fn(p)
		if err != nil {
			return nil, r.convert(p.Context, name, err)
		}
		return out, nil
	}
}

func (r *Resolver) convert(ctx context.Context, op string, err error) *Error {
	var gqlErr *Error
	if errors.As(err, &gqlErr) {
		return gqlErr
	}
	return toGraphQLError(ctx, r.logger, op, err)
}

func (r *Resolver) record(op string, code domain.ErrorCode) {
	if r.recorder != nil {
		r.recorder.RecordGraphQL(op, code)
	}
}

func contractPayload(c *domain.Contract) map[string]interface{} {
	return map[string]interface{}{"contract": c}
}

func ratePayload(rt *domain.Rate) map[string]interface{} {
	return map[string]interface{}{"rate": rt}
}

// ---- queries ----

func (r *Resolver) fetchContract(ctx context.Context, actor domain.Actor, p graphql.ResolveParams) (interface{}, error) {
	var in contractIDArgs
	if err := decodeInput(p, &in); err != nil {
		return nil, err
	}
	c, err := r.svc.FetchContract(ctx, actor, in.ContractID)
	if err != nil {
		return nil, err
	}
	return contractPayload(c), nil
}

func (r *Resolver) fetchRate(ctx context.Context, actor domain.Actor, p graphql.ResolveParams) (interface{}, error) {
	var in rateIDArgs
	if err := decodeInput(p, &in); err != nil {
		return nil, err
	}
	rt, err := r.svc.FetchRate(ctx, actor, in.RateID)
	if err != nil {
		return nil, err
	}
	return ratePayload(rt), nil
}

func (r *Resolver) indexContracts(ctx context.Context, actor domain.Actor, _ graphql.ResolveParams) (interface{}, error) {
	contracts, err := r.svc.IndexContracts(ctx, actor)
	if err != nil {
		return nil, err
	}
	edges := make([]map[string]interface{}, 0, len(contracts))
	for _, c := range contracts {
		edges = append(edges, map[string]interface{}{"node": c})
	}
	return map[string]interface{}{"totalCount": len(edges), "edges": edges}, nil
}

func (r *Resolver) indexRatesStripped(ctx context.Context, actor domain.Actor, p graphql.ResolveParams) (interface{}, error) {
	var in indexRatesArgs
	if p.Args["input"] != nil {
		if err := decodeInput(p, &in); err != nil {
			return nil, err
		}
	}
	rates, err := r.svc.IndexRates(ctx, actor, in.RateIDs)
	if err != nil {
		return nil, err
	}
	edges := make([]map[string]interface{}, 0, len(rates))
	for _, rt := range rates {
		edges = append(edges, map[string]interface{}{"node": rt})
	}
	return map[string]interface{}{"totalCount": len(edges), "edges": edges}, nil
}

func (r *Resolver) fetchCurrentUser(ctx context.Context, actor domain.Actor, _ graphql.ResolveParams) (interface{}, error) {
	return r.svc.CurrentUser(ctx, actor)
}

// ---- mutations ----

func (r *Resolver) createContract(ctx context.Context, actor domain.Actor, p graphql.ResolveParams) (interface{}, error) {
	var in createContractArgs
	if err := decodeInput(p, &in); err != nil {
		return nil, err
	}
	c, err := r.svc.CreateContract(ctx, actor, service.CreateContractInput{FormData: in.FormData})
	if err != nil {
		return nil, err
	}
	return contractPayload(c), nil
}

func (r *Resolver) updateContractDraftRevision(ctx context.Context, actor domain.Actor, p graphql.ResolveParams) (interface{}, error) {
	var in updateContractDraftRevisionArgs
	if err := decodeInput(p, &in); err != nil {
		return nil, err
	}
	c, err := r.svc.UpdateContractDraftRevision(ctx, actor, service.UpdateContractDraftRevisionInput{
		ContractID:        in.ContractID,
		LastSeenUpdatedAt: in.LastSeenUpdatedAt,
		FormData:          in.FormData,
	})
	if err != nil {
		return nil, err
	}
	return contractPayload(c), nil
}

func (r *Resolver) updateDraftContractRates(ctx context.Context, actor domain.Actor, p graphql.ResolveParams) (interface{}, error) {
	var in updateDraftContractRatesArgs
	if err := decodeInput(p, &in); err != nil {
		return nil, err
	}
	c, err := r.svc.UpdateDraftContractRates(ctx, actor, in.toInput())
	if err != nil {
		return nil, err
	}
	return contractPayload(c), nil
}

func (r *Resolver) submitContract(ctx context.Context, actor domain.Actor, p graphql.ResolveParams) (interface{}, error) {
	var in submitContractArgs
	if err := decodeInput(p, &in); err != nil {
		return nil, err
	}
	c, err := r.svc.SubmitContract(ctx, actor, service.SubmitContractInput{
		ContractID:      in.ContractID,
		SubmittedReason: in.SubmittedReason,
	})
	if err != nil {
		return nil, err
	}
	return contractPayload(c), nil
}

func (r *Resolver) unlockContract(ctx context.Context, actor domain.Actor, p graphql.ResolveParams) (interface{}, error) {
	var in unlockContractArgs
	if err := decodeInput(p, &in); err != nil {
		return nil, err
	}
	c, err := r.svc.UnlockContract(ctx, actor, service.UnlockContractInput{
		ContractID:     in.ContractID,
		UnlockedReason: in.UnlockedReason,
	})
	if err != nil {
		return nil, err
	}
	return contractPayload(c), nil
}

func (r *Resolver) approveContract(ctx context.Context, actor domain.Actor, p graphql.ResolveParams) (interface{}, error) {
	var in approveContractArgs
	if err := decodeInput(p, &in); err != nil {
		return nil, err
	}
	c, err := r.svc.ApproveContract(ctx, actor, service.ApproveContractInput{
		ContractID:                  in.ContractID,
		DateApprovalReleasedToState: in.DateApprovalReleasedToState,
		UpdatedReason:               in.UpdatedReason,
	})
	if err != nil {
		return nil, err
	}
	return contractPayload(c), nil
}

func (r *Resolver) withdrawContract(ctx context.Context, actor domain.Actor, p graphql.ResolveParams) (interface{}, error) {
	var in contractReasonArgs
	if err := decodeInput(p, &in); err != nil {
		return nil, err
	}
	c, err := r.svc.WithdrawContract(ctx, actor, service.WithdrawContractInput{
		ContractID:    in.ContractID,
		UpdatedReason: in.UpdatedReason,
	})
	if err != nil {
		return nil, err
	}
	return contractPayload(c), nil
}

func (r *Resolver) undoWithdrawContract(ctx context.Context, actor domain.Actor, p graphql.ResolveParams) (interface{}, error) {
	var in contractReasonArgs
	if err := decodeInput(p, &in); err != nil {
		return nil, err
	}
	c, err := r.svc.UndoWithdrawContract(ctx, actor, service.UndoWithdrawContractInput{
		ContractID:    in.ContractID,
		UpdatedReason: in.UpdatedReason,
	})
	if err != nil {
		return nil, err
	}
	return contractPayload(c), nil
}

func (r *Resolver) withdrawRate(ctx context.Context, actor domain.Actor, p graphql.ResolveParams) (interface{}, error) {
	var in rateReasonArgs
	if err := decodeInput(p, &in); err != nil {
		return nil, err
	}
	rt, err := r.svc.WithdrawRate(ctx, actor, service.WithdrawRateInput{
		RateID:        in.RateID,
		UpdatedReason: in.UpdatedReason,
	})
	if err != nil {
		return nil, err
	}
	return ratePayload(rt), nil
}

func (r *Resolver) undoWithdrawRate(ctx context.Context, actor domain.Actor, p graphql.ResolveParams) (interface{}, error) {
	var in rateReasonArgs
	if err := decodeInput(p, &in); err != nil {
		return nil, err
	}
	rt, err := r.svc.UndoWithdrawRate(ctx, actor, service.UndoWithdrawRateInput{
		RateID:        in.RateID,
		UpdatedReason: in.UpdatedReason,
	})
	if err != nil {
		return nil, err
	}
	return ratePayload(rt), nil
}

func (r *Resolver) unlockRate(ctx context.Context, actor domain.Actor, p graphql.ResolveParams) (interface{}, error) {
	var in unlockRateArgs
	if err := decodeInput(p, &in); err != nil {
		return nil, err
	}
	rt, err := r.svc.UnlockRate(ctx, actor, service.UnlockRateInput{
		RateID:         in.RateID,
		UnlockedReason: in.UnlockedReason,
	})
	if err != nil {
		return nil, err
	}
	return ratePayload(rt), nil
}

func (r *Resolver) submitRate(ctx context.Context, actor domain.Actor, p graphql.ResolveParams) (interface{}, error) {
	var in submitRateArgs
	if err := decodeInput(p, &in); err != nil {
		return nil, err
	}
	rt, err := r.svc.SubmitRate(ctx, actor, service.SubmitRateInput{
		RateID:          in.RateID,
		SubmittedReason: in.SubmittedReason,
		FormData:        in.FormData,
	})
	if err != nil {
		return nil, err
	}
	return ratePayload(rt), nil
}

func (r *Resolver) overrideRateData(ctx context.Context, actor domain.Actor, p graphql.ResolveParams) (interface{}, error) {
	var in overrideRateDataArgs
	if err := decodeInput(p, &in); err != nil {
		return nil, err
	}
	rt, err := r.svc.OverrideRateData(ctx, actor, service.OverrideRateDataInput{
		RateID:               in.RateID,
		Description:          in.Description,
		InitiallySubmittedAt: in.Overrides.InitiallySubmittedAt,
	})
	if err != nil {
		return nil, err
	}
	return ratePayload(rt), nil
}

func (r *Resolver) createAPIKey(ctx context.Context, actor domain.Actor, _ graphql.ResolveParams) (interface{}, error) {
	return r.svc.CreateAPIKey(ctx, actor)
}

// ---- nested fields ----

func (r *Resolver) documentDownloadURL(p graphql.ResolveParams) (interface{}, error) {
	if r.docs == nil {
		return nil, nil
	}
	doc, ok := p.Source.(domain.Document)
	if !ok || doc.S3URL == "" {
		return nil, nil
	}
	url, err := r.docs.DownloadURL(p.Context, doc.S3URL)
	if err != nil {
		// presign failures leave the link empty
		logger.FromContext(p.Context, r.logger).Warn("failed to presign document",
			zap.String("s3_url", doc.S3URL),
			zap.Error(err),
		)
		return nil, nil
	}
	return url, nil
}

func (r *Resolver) packageRateRevisions(p graphql.ResolveParams) (interface{}, error) {
	v, ok := p.Source.(packageView)
	if !ok {
		return nil, nil
	}
	rates, err := r.svc.RatesByID(p.Context, v.pkg.RateIDs())
	if err != nil {
		return nil, err
	}
	out := make([]*domain.RateRevision, 0, len(v.pkg.Rates))
	for i, pr := range v.pkg.Rates {
		if rev := rates[i].RevisionByID(pr.RateRevisionID); rev != nil {
			out = append(out, rev)
		}
	}
	return out, nil
}
