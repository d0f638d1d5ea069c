package graph

import (
	"encoding/json"
	"time"

	"github.com/graphql-go/graphql"

	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/domain"
	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/service"
)

var documentInput = graphql.NewInputObject(graphql.InputObjectConfig{
	Name: "GenericDocumentInput",
	Fields: graphql.InputObjectConfigFieldMap{
		"name":   &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		"s3URL":  &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		"sha256": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
	},
})

var stateContactInput = graphql.NewInputObject(graphql.InputObjectConfig{
	Name: "StateContactInput",
	Fields: graphql.InputObjectConfigFieldMap{
		"name":      &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		"titleRole": &graphql.InputObjectFieldConfig{Type: graphql.String},
		"email":     &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
	},
})

var actuaryContactInput = graphql.NewInputObject(graphql.InputObjectConfig{
	Name: "ActuaryContactInput",
	Fields: graphql.InputObjectConfigFieldMap{
		"name":          &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		"titleRole":     &graphql.InputObjectFieldConfig{Type: graphql.String},
		"email":         &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		"actuarialFirm": &graphql.InputObjectFieldConfig{Type: graphql.String},
	},
})

// Form inputs are permissive; completeness is checked on submit.
var contractFormDataInput = graphql.NewInputObject(graphql.InputObjectConfig{
	Name: "ContractFormDataInput",
	Fields: graphql.InputObjectConfigFieldMap{
		"submissionType":        &graphql.InputObjectFieldConfig{Type: submissionTypeEnum},
		"submissionDescription": &graphql.InputObjectFieldConfig{Type: graphql.String},
		"contractType":          &graphql.InputObjectFieldConfig{Type: contractTypeEnum},
		"programIDs":            &graphql.InputObjectFieldConfig{Type: graphql.NewList(graphql.NewNonNull(graphql.String))},
		"populationCovered":     &graphql.InputObjectFieldConfig{Type: populationCoveredEnum},
		"riskBasedContract":     &graphql.InputObjectFieldConfig{Type: graphql.Boolean},
		"contractDateStart":     &graphql.InputObjectFieldConfig{Type: graphql.String},
		"contractDateEnd":       &graphql.InputObjectFieldConfig{Type: graphql.String},
		"contractDocuments":     &graphql.InputObjectFieldConfig{Type: graphql.NewList(graphql.NewNonNull(documentInput))},
		"supportingDocuments":   &graphql.InputObjectFieldConfig{Type: graphql.NewList(graphql.NewNonNull(documentInput))},
		"stateContacts":         &graphql.InputObjectFieldConfig{Type: graphql.NewList(graphql.NewNonNull(stateContactInput))},
	},
})

var rateFormDataInput = graphql.NewInputObject(graphql.InputObjectConfig{
	Name: "RateFormDataInput",
	Fields: graphql.InputObjectConfigFieldMap{
		"rateType":                  &graphql.InputObjectFieldConfig{Type: rateTypeEnum},
		"rateCertificationName":     &graphql.InputObjectFieldConfig{Type: graphql.String},
		"rateProgramIDs":            &graphql.InputObjectFieldConfig{Type: graphql.NewList(graphql.NewNonNull(graphql.String))},
		"rateDateStart":             &graphql.InputObjectFieldConfig{Type: graphql.String},
		"rateDateEnd":               &graphql.InputObjectFieldConfig{Type: graphql.String},
		"rateDateCertified":         &graphql.InputObjectFieldConfig{Type: graphql.String},
		"rateDocuments":             &graphql.InputObjectFieldConfig{Type: graphql.NewList(graphql.NewNonNull(documentInput))},
		"supportingDocuments":       &graphql.InputObjectFieldConfig{Type: graphql.NewList(graphql.NewNonNull(documentInput))},
		"certifyingActuaryContacts": &graphql.InputObjectFieldConfig{Type: graphql.NewList(graphql.NewNonNull(actuaryContactInput))},
	},
})

var updateDraftContractRateInput = graphql.NewInputObject(graphql.InputObjectConfig{
	Name: "UpdateDraftContractRateInput",
	Fields: graphql.InputObjectConfigFieldMap{
		"type":     &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(updateRateTypeEnum)},
		"rateID":   &graphql.InputObjectFieldConfig{Type: graphql.ID},
		"formData": &graphql.InputObjectFieldConfig{Type: rateFormDataInput},
	},
})

func inputObject(name string, fields graphql.InputObjectConfigFieldMap) *graphql.InputObject {
	return graphql.NewInputObject(graphql.InputObjectConfig{Name: name, Fields: fields})
}

func required(t graphql.Input) *graphql.InputObjectFieldConfig {
	return &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(t)}
}

func optional(t graphql.Input) *graphql.InputObjectFieldConfig {
	return &graphql.InputObjectFieldConfig{Type: t}
}

var (
	fetchContractInput = inputObject("FetchContractInput", graphql.InputObjectConfigFieldMap{
		"contractID": required(graphql.ID),
	})
	fetchRateInput = inputObject("FetchRateInput", graphql.InputObjectConfigFieldMap{
		"rateID": required(graphql.ID),
	})
	indexRatesInput = inputObject("IndexRatesInput", graphql.InputObjectConfigFieldMap{
		"rateIDs": optional(graphql.NewList(graphql.NewNonNull(graphql.ID))),
	})

	createContractInput = inputObject("CreateContractInput", graphql.InputObjectConfigFieldMap{
		"formData": required(contractFormDataInput),
	})
	updateContractDraftRevisionInput = inputObject("UpdateContractDraftRevisionInput", graphql.InputObjectConfigFieldMap{
		"contractID":        required(graphql.ID),
		"lastSeenUpdatedAt": required(DateTime),
		"formData":          required(contractFormDataInput),
	})
	updateDraftContractRatesInput = inputObject("UpdateDraftContractRatesInput", graphql.InputObjectConfigFieldMap{
		"contractID":        required(graphql.ID),
		"lastSeenUpdatedAt": required(DateTime),
		"updatedRates":      required(graphql.NewList(graphql.NewNonNull(updateDraftContractRateInput))),
	})
	submitContractInput = inputObject("SubmitContractInput", graphql.InputObjectConfigFieldMap{
		"contractID":      required(graphql.ID),
		"submittedReason": optional(graphql.String),
	})
	unlockContractInput = inputObject("UnlockContractInput", graphql.InputObjectConfigFieldMap{
		"contractID":     required(graphql.ID),
		"unlockedReason": required(graphql.String),
	})
	approveContractInput = inputObject("ApproveContractInput", graphql.InputObjectConfigFieldMap{
		"contractID":                  required(graphql.ID),
		"dateApprovalReleasedToState": required(Date),
		"updatedReason":               optional(graphql.String),
	})
	withdrawContractInput = inputObject("WithdrawContractInput", graphql.InputObjectConfigFieldMap{
		"contractID":    required(graphql.ID),
		"updatedReason": required(graphql.String),
	})
	undoWithdrawContractInput = inputObject("UndoWithdrawContractInput", graphql.InputObjectConfigFieldMap{
		"contractID":    required(graphql.ID),
		"updatedReason": required(graphql.String),
	})
	withdrawRateInput = inputObject("WithdrawRateInput", graphql.InputObjectConfigFieldMap{
		"rateID":        required(graphql.ID),
		"updatedReason": required(graphql.String),
	})
	undoWithdrawRateInput = inputObject("UndoWithdrawRateInput", graphql.InputObjectConfigFieldMap{
		"rateID":        required(graphql.ID),
		"updatedReason": required(graphql.String),
	})
	unlockRateInput = inputObject("UnlockRateInput", graphql.InputObjectConfigFieldMap{
		"rateID":         required(graphql.ID),
		"unlockedReason": required(graphql.String),
	})
	submitRateInput = inputObject("SubmitRateInput", graphql.InputObjectConfigFieldMap{
		"rateID":          required(graphql.ID),
		"submittedReason": optional(graphql.String),
		"formData":        optional(rateFormDataInput),
	})
	rateOverridesInput = inputObject("RateOverridesInput", graphql.InputObjectConfigFieldMap{
		"initiallySubmittedAt": optional(Date),
	})
	overrideRateDataInput = inputObject("OverrideRateDataInput", graphql.InputObjectConfigFieldMap{
		"rateID":      required(graphql.ID),
		"description": required(graphql.String),
		"overrides":   required(rateOverridesInput),
	})
)

// decodeInput copies the "input" argument into dst through its JSON tags.
func decodeInput(p graphql.ResolveParams, dst interface{}) error {
	raw, err := json.Marshal(p.Args["input"])
	if err != nil {
		return badInput("input", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return badInput("input", err)
	}
	return nil
}

type contractIDArgs struct {
	ContractID string `json:"contractID"`
}

type rateIDArgs struct {
	RateID string `json:"rateID"`
}

type indexRatesArgs struct {
	RateIDs []string `json:"rateIDs"`
}

type createContractArgs struct {
	FormData domain.ContractFormData `json:"formData"`
}

type updateContractDraftRevisionArgs struct {
	ContractID        string                  `json:"contractID"`
	LastSeenUpdatedAt time.Time               `json:"lastSeenUpdatedAt"`
	FormData          domain.ContractFormData `json:"formData"`
}

type rateUpdateArgs struct {
	Type     service.RateUpdateType `json:"type"`
	RateID   string                 `json:"rateID"`
	FormData *domain.RateFormData   `json:"formData"`
}

type updateDraftContractRatesArgs struct {
	ContractID        string           `json:"contractID"`
	LastSeenUpdatedAt time.Time        `json:"lastSeenUpdatedAt"`
	UpdatedRates      []rateUpdateArgs `json:"updatedRates"`
}

func (a updateDraftContractRatesArgs) toInput() service.UpdateDraftContractRatesInput {
	in := service.UpdateDraftContractRatesInput{
		ContractID:        a.ContractID,
		LastSeenUpdatedAt: a.LastSeenUpdatedAt,
		UpdatedRates:      make([]service.RateUpdate, 0, len(a.UpdatedRates)),
	}
	for _, u := range a.UpdatedRates {
		in.UpdatedRates = append(in.UpdatedRates, service.RateUpdate{Type: u.Type, RateID: u.RateID, FormData: u.FormData})
	}
	return in
}

type submitContractArgs struct {
	ContractID      string `json:"contractID"`
	SubmittedReason string `json:"submittedReason"`
}

type unlockContractArgs struct {
	ContractID     string `json:"contractID"`
	UnlockedReason string `json:"unlockedReason"`
}

type approveContractArgs struct {
	ContractID                  string    `json:"contractID"`
	DateApprovalReleasedToState time.Time `json:"dateApprovalReleasedToState"`
	UpdatedReason               string    `json:"updatedReason"`
}

type contractReasonArgs struct {
	ContractID    string `json:"contractID"`
	UpdatedReason string `json:"updatedReason"`
}

type rateReasonArgs struct {
	RateID        string `json:"rateID"`
	UpdatedReason string `json:"updatedReason"`
}

type unlockRateArgs struct {
	RateID         string `json:"rateID"`
	UnlockedReason string `json:"unlockedReason"`
}

type submitRateArgs struct {
	RateID          string               `json:"rateID"`
	SubmittedReason string               `json:"submittedReason"`
	FormData        *domain.RateFormData `json:"formData"`
}

type overrideRateDataArgs struct {
	RateID      string `json:"rateID"`
	Description string `json:"description"`
	Overrides   struct {
		InitiallySubmittedAt *time.Time `json:"initiallySubmittedAt"`
	} `json:"overrides"`
}
