package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/authn"
	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/domain"
	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/repository"
	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/service"
)

var (
	mnUser   = domain.Actor{User: domain.User{ID: "state-1", Email: "aang@mn.gov", Role: domain.RoleStateUser, StateCode: "MN"}}
	cmsUser  = domain.Actor{User: domain.User{ID: "cms-1", Email: "zuko@cms.gov", Role: domain.RoleCMSUser}}
	approver = domain.Actor{User: domain.User{ID: "cms-2", Email: "iroh@cms.gov", Role: domain.RoleCMSApproverUser}}
)

type fakeSigner struct{ fail bool }

func (s fakeSigner) DownloadURL(_ context.Context, s3URL string) (string, error) {
	if s.fail {
		return "", errors.New("storage unavailable")
	}
	return "https://signed.example/" + s3URL, nil
}

type recordedOp struct {
	op   string
	code domain.ErrorCode
}

type fakeRecorder struct {
	mu  sync.Mutex
	ops []recordedOp
}

func (r *fakeRecorder) RecordGraphQL(op string, code domain.ErrorCode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, recordedOp{op: op, code: code})
}

type testEnv struct {
	schema   *Schema
	recorder *fakeRecorder
}

func newTestEnv(t *testing.T, signer DocumentSigner) *testEnv {
	t.Helper()
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
	n := 0
	svc := service.NewWorkflowService(repository.NewMemoryStore(), zap.NewNop(),
		service.WithClock(clock),
		service.WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%04d", n)
		}),
	)
	rec := &fakeRecorder{}
	s, err := NewSchema(NewResolver(svc, signer, rec, zap.NewNop()))
	require.NoError(t, err)
	return &testEnv{schema: s, recorder: rec}
}

// exec runs query as actor and decodes data into out when out is non-nil.
func (e *testEnv) exec(t *testing.T, actor *domain.Actor, query string, vars string, out interface{}) *graphql.Result {
	t.Helper()
	ctx := context.Background()
	if actor != nil {
		ctx = authn.WithActor(ctx, *actor)
	}
	var variables map[string]interface{}
	if vars != "" {
		require.NoError(t, json.Unmarshal([]byte(vars), &variables))
	}
	res := e.schema.Do(ctx, Request{Query: query, Variables: variables})
	if out != nil && res.Data != nil {
		raw, err := json.Marshal(res.Data)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, out))
	}
	return res
}

func requireNoErrors(t *testing.T, res *graphql.Result) {
	t.Helper()
	require.Empty(t, res.Errors, "%v", res.Errors)
}

func requireErrorCode(t *testing.T, res *graphql.Result, code domain.ErrorCode) map[string]interface{} {
	t.Helper()
	require.Len(t, res.Errors, 1)
	ext := res.Errors[0].Extensions
	require.Equal(t, string(code), ext["code"], res.Errors[0].Message)
	return ext
}

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return string(raw)
}

func contractForm() domain.ContractFormData {
	risk := false
	return domain.ContractFormData{
		SubmissionType:        domain.SubmissionTypeContractAndRates,
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

func rateForm() domain.RateFormData {
	return domain.RateFormData{
		RateType:                  domain.RateTypeNew,
		RateCertificationName:     "MN-RATE-2024",
		RateProgramIDs:            []string{"prog-1"},
		RateDateStart:             "2024-01-01",
		RateDateEnd:               "2024-12-31",
		RateDateCertified:         "2023-12-01",
		RateDocuments:             []domain.Document{{Name: "rate.pdf", S3URL: "s3://bucket/rate.pdf", SHA256: "def"}},
		CertifyingActuaryContacts: []domain.ActuaryContact{{Name: "Sokka", Email: "sokka@actuary.com"}},
	}
}

const contractFields = `
	id name status consolidatedStatus reviewStatus lastSeenUpdatedAt initiallySubmittedAt
	draftRevision { id formData { submissionType riskBasedContract contractDocuments { name downloadURL } } }
	draftRates { id name status }
	withdrawnRates { id consolidatedStatus }
	packageSubmissions { cause submitInfo { updatedReason updatedBy { email role } } contractRevision { id } rateRevisions { id rateID } }
	reviewStatusActions { actionType updatedReason dateApprovalReleasedToState }
`

type contractData struct {
	ID                   string  `json:"id"`
	Name                 string  `json:"name"`
	Status               string  `json:"status"`
	ConsolidatedStatus   string  `json:"consolidatedStatus"`
	ReviewStatus         string  `json:"reviewStatus"`
	LastSeenUpdatedAt    string  `json:"lastSeenUpdatedAt"`
	InitiallySubmittedAt *string `json:"initiallySubmittedAt"`
	DraftRevision        *struct {
		ID       string `json:"id"`
		FormData struct {
			SubmissionType    string `json:"submissionType"`
			RiskBasedContract *bool  `json:"riskBasedContract"`
			ContractDocuments []struct {
				Name        string  `json:"name"`
				DownloadURL *string `json:"downloadURL"`
			} `json:"contractDocuments"`
		} `json:"formData"`
	} `json:"draftRevision"`
	DraftRates []struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Status string `json:"status"`
	} `json:"draftRates"`
	WithdrawnRates []struct {
		ID                 string `json:"id"`
		ConsolidatedStatus string `json:"consolidatedStatus"`
	} `json:"withdrawnRates"`
	PackageSubmissions []struct {
		Cause      string `json:"cause"`
		SubmitInfo struct {
			UpdatedReason string `json:"updatedReason"`
			UpdatedBy     struct {
				Email string `json:"email"`
				Role  string `json:"role"`
			} `json:"updatedBy"`
		} `json:"submitInfo"`
		ContractRevision struct {
			ID string `json:"id"`
		} `json:"contractRevision"`
		RateRevisions []struct {
			ID     string `json:"id"`
			RateID string `json:"rateID"`
		} `json:"rateRevisions"`
	} `json:"packageSubmissions"`
	ReviewStatusActions []struct {
		ActionType                  string  `json:"actionType"`
		UpdatedReason               string  `json:"updatedReason"`
		DateApprovalReleasedToState *string `json:"dateApprovalReleasedToState"`
	} `json:"reviewStatusActions"`
}

// createDraft creates a contract with one new child rate through the API.
func (e *testEnv) createDraft(t *testing.T) contractData {
	t.Helper()
	var created struct {
		CreateContract struct{ Contract contractData } `json:"createContract"`
	}
	res := e.exec(t, &mnUser,
		`mutation($input: CreateContractInput!) { createContract(input: $input) { contract { `+contractFields+` } } }`,
		mustJSON(t, map[string]interface{}{"input": map[string]interface{}{"formData": contractForm()}}),
		&created)
	requireNoErrors(t, res)
	c := created.CreateContract.Contract

	var updated struct {
		UpdateDraftContractRates struct{ Contract contractData } `json:"updateDraftContractRates"`
	}
	res = e.exec(t, &mnUser,
		`mutation($input: UpdateDraftContractRatesInput!) { updateDraftContractRates(input: $input) { contract { `+contractFields+` } } }`,
		mustJSON(t, map[string]interface{}{"input": map[string]interface{}{
			"contractID":        c.ID,
			"lastSeenUpdatedAt": c.LastSeenUpdatedAt,
			"updatedRates":      []interface{}{map[string]interface{}{"type": "CREATE", "formData": rateForm()}},
		}}),
		&updated)
	requireNoErrors(t, res)
	return updated.UpdateDraftContractRates.Contract
}

func (e *testEnv) submit(t *testing.T, contractID string) contractData {
	t.Helper()
	var out struct {
		SubmitContract struct{ Contract contractData } `json:"submitContract"`
	}
	res := e.exec(t, &mnUser,
		`mutation($id: ID!) { submitContract(input: {contractID: $id, submittedReason: "initial submission"}) { contract { `+contractFields+` } } }`,
		mustJSON(t, map[string]string{"id": contractID}),
		&out)
	requireNoErrors(t, res)
	return out.SubmitContract.Contract
}

func TestSchema_CreateAndSubmit(t *testing.T) {
	env := newTestEnv(t, fakeSigner{})

	draft := env.createDraft(t)
	assert.Equal(t, "MCR-MN-0001", draft.Name)
	assert.Equal(t, "DRAFT", draft.Status)
	assert.Nil(t, draft.InitiallySubmittedAt)
	require.NotNil(t, draft.DraftRevision)
	assert.Equal(t, "CONTRACT_AND_RATES", draft.DraftRevision.FormData.SubmissionType)
	require.NotNil(t, draft.DraftRevision.FormData.RiskBasedContract)
	assert.False(t, *draft.DraftRevision.FormData.RiskBasedContract)
	require.Len(t, draft.DraftRevision.FormData.ContractDocuments, 1)
	require.NotNil(t, draft.DraftRevision.FormData.ContractDocuments[0].DownloadURL)
	assert.Equal(t, "https://signed.example/s3://bucket/contract.pdf", *draft.DraftRevision.FormData.ContractDocuments[0].DownloadURL)
	require.Len(t, draft.DraftRates, 1)
	assert.Equal(t, "MN-RATE-2024", draft.DraftRates[0].Name)
	assert.Equal(t, "DRAFT", draft.DraftRates[0].Status)

	c := env.submit(t, draft.ID)
	assert.Equal(t, "SUBMITTED", c.Status)
	assert.Equal(t, "UNDER_REVIEW", c.ReviewStatus)
	assert.NotNil(t, c.InitiallySubmittedAt)
	assert.Nil(t, c.DraftRevision)
	require.Len(t, c.PackageSubmissions, 1)
	pkg := c.PackageSubmissions[0]
	assert.Equal(t, "CONTRACT_SUBMISSION", pkg.Cause)
	assert.Equal(t, "initial submission", pkg.SubmitInfo.UpdatedReason)
	assert.Equal(t, "aang@mn.gov", pkg.SubmitInfo.UpdatedBy.Email)
	assert.Equal(t, "STATE_USER", pkg.SubmitInfo.UpdatedBy.Role)
	assert.NotEmpty(t, pkg.ContractRevision.ID)
	require.Len(t, pkg.RateRevisions, 1)
	assert.Equal(t, draft.DraftRates[0].ID, pkg.RateRevisions[0].RateID)

	assert.Equal(t, []recordedOp{
		{op: "createContract"},
		{op: "updateDraftContractRates"},
		{op: "submitContract"},
	}, env.recorder.ops)
}

func TestSchema_WithdrawAndUndoRate(t *testing.T) {
	env := newTestEnv(t, nil)
	c := env.submit(t, env.createDraft(t).ID)
	rateID := c.PackageSubmissions[0].RateRevisions[0].RateID

	var withdrawn struct {
		WithdrawRate struct {
			Rate struct {
				ConsolidatedStatus     string `json:"consolidatedStatus"`
				WithdrawnFromContracts []struct {
					ID string `json:"id"`
				} `json:"withdrawnFromContracts"`
				ReviewStatusActions []struct {
					ActionType string `json:"actionType"`
				} `json:"reviewStatusActions"`
			} `json:"rate"`
		} `json:"withdrawRate"`
	}
	res := env.exec(t, &cmsUser,
		`mutation($id: ID!) { withdrawRate(input: {rateID: $id, updatedReason: "wrong rate"}) { rate {
			consolidatedStatus withdrawnFromContracts { id } reviewStatusActions { actionType }
		} } }`,
		mustJSON(t, map[string]string{"id": rateID}),
		&withdrawn)
	requireNoErrors(t, res)
	assert.Equal(t, "WITHDRAWN", withdrawn.WithdrawRate.Rate.ConsolidatedStatus)
	require.Len(t, withdrawn.WithdrawRate.Rate.WithdrawnFromContracts, 1)
	assert.Equal(t, c.ID, withdrawn.WithdrawRate.Rate.WithdrawnFromContracts[0].ID)
	assert.Equal(t, "WITHDRAW", withdrawn.WithdrawRate.Rate.ReviewStatusActions[0].ActionType)

	var fetched struct {
		FetchContract struct{ Contract contractData } `json:"fetchContract"`
	}
	res = env.exec(t, &cmsUser,
		`query($id: ID!) { fetchContract(input: {contractID: $id}) { contract { `+contractFields+` } } }`,
		mustJSON(t, map[string]string{"id": c.ID}),
		&fetched)
	requireNoErrors(t, res)
	got := fetched.FetchContract.Contract
	require.Len(t, got.PackageSubmissions, 2)
	assert.Equal(t, "RATE_WITHDRAWN", got.PackageSubmissions[0].Cause, "newest first")
	assert.Empty(t, got.PackageSubmissions[0].RateRevisions)
	require.Len(t, got.WithdrawnRates, 1)
	assert.Equal(t, rateID, got.WithdrawnRates[0].ID)

	var restored struct {
		UndoWithdrawRate struct {
			Rate struct {
				ConsolidatedStatus string `json:"consolidatedStatus"`
			} `json:"rate"`
		} `json:"undoWithdrawRate"`
	}
	res = env.exec(t, &cmsUser,
		`mutation($id: ID!) { undoWithdrawRate(input: {rateID: $id, updatedReason: "restored"}) { rate { consolidatedStatus } } }`,
		mustJSON(t, map[string]string{"id": rateID}),
		&restored)
	requireNoErrors(t, res)
	assert.Equal(t, "RESUBMITTED", restored.UndoWithdrawRate.Rate.ConsolidatedStatus)
}

func TestSchema_ApproveAndIndex(t *testing.T) {
	env := newTestEnv(t, nil)
	c := env.submit(t, env.createDraft(t).ID)

	var approved struct {
		ApproveContract struct{ Contract contractData } `json:"approveContract"`
	}
	res := env.exec(t, &approver,
		`mutation($id: ID!) { approveContract(input: {contractID: $id, dateApprovalReleasedToState: "2024-04-30", updatedReason: "looks good"}) { contract { `+contractFields+` } } }`,
		mustJSON(t, map[string]string{"id": c.ID}),
		&approved)
	requireNoErrors(t, res)
	got := approved.ApproveContract.Contract
	assert.Equal(t, "APPROVED", got.ConsolidatedStatus)
	require.NotEmpty(t, got.ReviewStatusActions)
	assert.Equal(t, "MARK_AS_APPROVED", got.ReviewStatusActions[0].ActionType)
	require.NotNil(t, got.ReviewStatusActions[0].DateApprovalReleasedToState)
	assert.Equal(t, "2024-04-30", *got.ReviewStatusActions[0].DateApprovalReleasedToState)

	var index struct {
		IndexContracts struct {
			TotalCount int `json:"totalCount"`
			Edges      []struct {
				Node struct {
					ID                 string `json:"id"`
					ConsolidatedStatus string `json:"consolidatedStatus"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"indexContracts"`
		IndexRatesStripped struct {
			TotalCount int `json:"totalCount"`
			Edges      []struct {
				Node struct {
					Name                    string `json:"name"`
					LatestSubmittedRevision struct {
						ID string `json:"id"`
					} `json:"latestSubmittedRevision"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"indexRatesStripped"`
	}
	res = env.exec(t, &cmsUser, `{
		indexContracts { totalCount edges { node { id consolidatedStatus } } }
		indexRatesStripped { totalCount edges { node { name latestSubmittedRevision { id } } } }
	}`, "", &index)
	requireNoErrors(t, res)
	require.Equal(t, 1, index.IndexContracts.TotalCount)
	assert.Equal(t, c.ID, index.IndexContracts.Edges[0].Node.ID)
	assert.Equal(t, "APPROVED", index.IndexContracts.Edges[0].Node.ConsolidatedStatus)
	require.Equal(t, 1, index.IndexRatesStripped.TotalCount)
	assert.Equal(t, "MN-RATE-2024", index.IndexRatesStripped.Edges[0].Node.Name)
	assert.NotEmpty(t, index.IndexRatesStripped.Edges[0].Node.LatestSubmittedRevision.ID)
}

func TestSchema_Errors(t *testing.T) {
	env := newTestEnv(t, nil)
	draft := env.createDraft(t)

	t.Run("unauthenticated", func(t *testing.T) {
		res := env.exec(t, nil, `{ fetchCurrentUser { id } }`, "", nil)
		requireErrorCode(t, res, domain.CodeForbidden)
	})

	t.Run("forbidden role", func(t *testing.T) {
		res := env.exec(t, &cmsUser,
			`mutation($id: ID!) { submitContract(input: {contractID: $id}) { contract { id } } }`,
			mustJSON(t, map[string]string{"id": draft.ID}), nil)
		ext := requireErrorCode(t, res, domain.CodeForbidden)
		assert.Nil(t, ext["cause"])
		assert.Equal(t, "user not authorized to create state data", res.Errors[0].Message)
	})

	t.Run("not found", func(t *testing.T) {
		res := env.exec(t, &cmsUser, `{ fetchContract(input: {contractID: "missing"}) { contract { id } } }`, "", nil)
		requireErrorCode(t, res, domain.CodeNotFound)
	})

	t.Run("stale lastSeenUpdatedAt", func(t *testing.T) {
		res := env.exec(t, &mnUser,
			`mutation($input: UpdateContractDraftRevisionInput!) { updateContractDraftRevision(input: $input) { contract { id } } }`,
			mustJSON(t, map[string]interface{}{"input": map[string]interface{}{
				"contractID":        draft.ID,
				"lastSeenUpdatedAt": "2020-01-01T00:00:00Z",
				"formData":          contractForm(),
			}}), nil)
		ext := requireErrorCode(t, res, domain.CodeBadUserInput)
		assert.Equal(t, domain.CauseConcurrentUpdate, ext["cause"])
		assert.Equal(t, "lastSeenUpdatedAt", ext["argumentName"])
	})

	t.Run("invalid status", func(t *testing.T) {
		res := env.exec(t, &cmsUser,
			`mutation($id: ID!) { withdrawContract(input: {contractID: $id, updatedReason: "no"}) { contract { id } } }`,
			mustJSON(t, map[string]string{"id": draft.ID}), nil)
		ext := requireErrorCode(t, res, domain.CodeBadUserInput)
		assert.Equal(t, domain.CauseInvalidPackageStatus, ext["cause"])
	})

	t.Run("oauth client mutation", func(t *testing.T) {
		client := domain.Actor{User: cmsUser.User, OAuthClient: &domain.OAuthClient{ClientID: "c-1", Grants: []string{domain.GrantReadContracts}}}
		res := env.exec(t, &client,
			`mutation($id: ID!) { unlockContract(input: {contractID: $id, unlockedReason: "x"}) { contract { id } } }`,
			mustJSON(t, map[string]string{"id": draft.ID}), nil)
		requireErrorCode(t, res, domain.CodeForbidden)
	})

	t.Run("query validation", func(t *testing.T) {
		res := env.exec(t, &mnUser, `{ fetchContract(input: {}) { contract { id } } }`, "", nil)
		require.NotEmpty(t, res.Errors)
	})

	var failed []recordedOp
	for _, op := range env.recorder.ops {
		if op.code != "" {
			failed = append(failed, op)
		}
	}
	assert.Contains(t, failed, recordedOp{op: "fetchCurrentUser", code: domain.CodeForbidden})
	assert.Contains(t, failed, recordedOp{op: "fetchContract", code: domain.CodeNotFound})
}

func TestSchema_DownloadURLFailureLeavesLinkEmpty(t *testing.T) {
	env := newTestEnv(t, fakeSigner{fail: true})
	draft := env.createDraft(t)
	require.NotNil(t, draft.DraftRevision)
	require.Len(t, draft.DraftRevision.FormData.ContractDocuments, 1)
	assert.Nil(t, draft.DraftRevision.FormData.ContractDocuments[0].DownloadURL)
}

func TestSchema_FetchCurrentUserAndAPIKeyWithoutIssuer(t *testing.T) {
	env := newTestEnv(t, nil)

	var out struct {
		FetchCurrentUser struct {
			Email     string `json:"email"`
			Role      string `json:"role"`
			StateCode string `json:"stateCode"`
		} `json:"fetchCurrentUser"`
	}
	res := env.exec(t, &mnUser, `{ fetchCurrentUser { email role stateCode } }`, "", &out)
	requireNoErrors(t, res)
	assert.Equal(t, "aang@mn.gov", out.FetchCurrentUser.Email)
	assert.Equal(t, "STATE_USER", out.FetchCurrentUser.Role)
	assert.Equal(t, "MN", out.FetchCurrentUser.StateCode)

	res = env.exec(t, &cmsUser, `mutation { createAPIKey { key expiresAt } }`, "", nil)
	ext := requireErrorCode(t, res, domain.CodeInternal)
	assert.Equal(t, domain.CauseUnexpectedException, ext["cause"])
}
