package graph

import (
	"context"
	"fmt"

	"github.com/graphql-go/graphql"
)

// Request is a GraphQL-over-HTTP request body.
type Request struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName,omitempty"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
}

type Schema struct {
	schema graphql.Schema
}

func NewSchema(r *Resolver) (*Schema, error) {
	o := newObjects(r)

	inputArg := func(t graphql.Input) graphql.FieldConfigArgument {
		return graphql.FieldConfigArgument{"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(t)}}
	}

	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"fetchContract": &graphql.Field{
				Type:    nonNull(o.contractPayload),
				Args:    inputArg(fetchContractInput),
				Resolve: r.root("fetchContract", r.fetchContract),
			},
			"fetchRate": &graphql.Field{
				Type:    nonNull(o.ratePayload),
				Args:    inputArg(fetchRateInput),
				Resolve: r.root("fetchRate", r.fetchRate),
			},
			"indexContracts": &graphql.Field{
				Type:    nonNull(o.indexContracts),
				Resolve: r.root("indexContracts", r.indexContracts),
			},
			"indexRatesStripped": &graphql.Field{
				Type:    nonNull(o.indexRatesStripped),
				Args:    graphql.FieldConfigArgument{"input": &graphql.ArgumentConfig{Type: indexRatesInput}},
				Resolve: r.root("indexRatesStripped", r.indexRatesStripped),
			},
			"fetchCurrentUser": &graphql.Field{
				Type:    nonNull(o.user),
				Resolve: r.root("fetchCurrentUser", r.fetchCurrentUser),
			},
		},
	})

	contractMutation := func(name string, in *graphql.InputObject, fn rootFn) *graphql.Field {
		return &graphql.Field{Type: nonNull(o.contractPayload), Args: inputArg(in), Resolve: r.root(name, fn)}
	}
	rateMutation := func(name string, in *graphql.InputObject, fn rootFn) *graphql.Field {
		return &graphql.Field{Type: nonNull(o.ratePayload), Args: inputArg(in), Resolve: r.root(name, fn)}
	}

	mutation := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"createContract":              contractMutation("createContract", createContractInput, r.createContract),
			"updateContractDraftRevision": contractMutation("updateContractDraftRevision", updateContractDraftRevisionInput, r.updateContractDraftRevision),
			"updateDraftContractRates":    contractMutation("updateDraftContractRates", updateDraftContractRatesInput, r.updateDraftContractRates),
			"submitContract":              contractMutation("submitContract", submitContractInput, r.submitContract),
			"unlockContract":              contractMutation("unlockContract", unlockContractInput, r.unlockContract),
			"approveContract":             contractMutation("approveContract", approveContractInput, r.approveContract),
			"withdrawContract":            contractMutation("withdrawContract", withdrawContractInput, r.withdrawContract),
			"undoWithdrawContract":        contractMutation("undoWithdrawContract", undoWithdrawContractInput, r.undoWithdrawContract),
			"withdrawRate":                rateMutation("withdrawRate", withdrawRateInput, r.withdrawRate),
			"undoWithdrawRate":            rateMutation("undoWithdrawRate", undoWithdrawRateInput, r.undoWithdrawRate),
			"unlockRate":                  rateMutation("unlockRate", unlockRateInput, r.unlockRate),
			"submitRate":                  rateMutation("submitRate", submitRateInput, r.submitRate),
			"overrideRateData":            rateMutation("overrideRateData", overrideRateDataInput, r.overrideRateData),
			"createAPIKey": &graphql.Field{
				Type:    nonNull(o.apiKey),
				Resolve: r.root("createAPIKey", r.createAPIKey),
			},
		},
	})

	schema, err := graphql.NewSchema(graphql.SchemaConfig{Query: query, Mutation: mutation})
	if err != nil {
		return nil, fmt.Errorf("failed to build graphql schema: %w", err)
	}
	return &Schema{schema: schema}, nil
}

// Do executes req. The actor must already be on ctx.
func (s *Schema) Do(ctx context.Context, req Request) *graphql.Result {
	return graphql.Do(graphql.Params{
		Schema:         s.schema,
		RequestString:  req.Query,
		OperationName:  req.OperationName,
		VariableValues: req.Variables,
		Context:        ctx,
	})
}
