package domain

type SubmissionType string

const (
	SubmissionTypeContractOnly     SubmissionType = "CONTRACT_ONLY"
	SubmissionTypeContractAndRates SubmissionType = "CONTRACT_AND_RATES"
)

type ContractType string

const (
	ContractTypeBase      ContractType = "BASE"
	ContractTypeAmendment ContractType = "AMENDMENT"
)

type PopulationCovered string

const (
	PopulationMedicaid        PopulationCovered = "MEDICAID"
	PopulationCHIP            PopulationCovered = "CHIP"
	PopulationMedicaidAndCHIP PopulationCovered = "MEDICAID_AND_CHIP"
)

type RateType string

const (
	RateTypeNew       RateType = "NEW"
	RateTypeAmendment RateType = "AMENDMENT"
)

// Document references an uploaded file by its storage URL.
type Document struct {
	Name   string `json:"name" validate:"required"`
	S3URL  string `json:"s3URL" validate:"required"`
	SHA256 string `json:"sha256" validate:"required"`
}

type StateContact struct {
	Name      string `json:"name" validate:"required"`
	TitleRole string `json:"titleRole"`
	Email     string `json:"email" validate:"required,email"`
}

type ActuaryContact struct {
	Name          string `json:"name" validate:"required"`
	TitleRole     string `json:"titleRole"`
	Email         string `json:"email" validate:"required,email"`
	ActuarialFirm string `json:"actuarialFirm"`
}

// ContractFormData is the editable content of a contract revision.
// Tags are enforced on submit only; drafts may be incomplete.
type ContractFormData struct {
	SubmissionType        SubmissionType    `json:"submissionType" validate:"required,oneof=CONTRACT_ONLY CONTRACT_AND_RATES"`
	SubmissionDescription string            `json:"submissionDescription" validate:"required"`
	ContractType          ContractType      `json:"contractType" validate:"required,oneof=BASE AMENDMENT"`
	ProgramIDs            []string          `json:"programIDs" validate:"required,min=1"`
	PopulationCovered     PopulationCovered `json:"populationCovered,omitempty" validate:"omitempty,oneof=MEDICAID CHIP MEDICAID_AND_CHIP"`
	RiskBasedContract     *bool             `json:"riskBasedContract,omitempty" validate:"required"`
	ContractDateStart     string            `json:"contractDateStart" validate:"required,datetime=2006-01-02"`
	ContractDateEnd       string            `json:"contractDateEnd" validate:"required,datetime=2006-01-02"`
	ContractDocuments     []Document        `json:"contractDocuments" validate:"required,min=1,dive"`
	SupportingDocuments   []Document        `json:"supportingDocuments" validate:"dive"`
	StateContacts         []StateContact    `json:"stateContacts" validate:"required,min=1,dive"`
}

// Clone returns a copy that shares no slices with fd.
func (fd ContractFormData) Clone() ContractFormData {
	out := fd
	out.ProgramIDs = append([]string(nil), fd.ProgramIDs...)
	out.ContractDocuments = append([]Document(nil), fd.ContractDocuments...)
	out.SupportingDocuments = append([]Document(nil), fd.SupportingDocuments...)
	out.StateContacts = append([]StateContact(nil), fd.StateContacts...)
	if fd.RiskBasedContract != nil {
		v := *fd.RiskBasedContract
		out.RiskBasedContract = &v
	}
	return out
}

// RateFormData is the editable content of a rate revision.
type RateFormData struct {
	RateType                  RateType         `json:"rateType" validate:"required,oneof=NEW AMENDMENT"`
	RateCertificationName     string           `json:"rateCertificationName"`
	RateProgramIDs            []string         `json:"rateProgramIDs" validate:"required,min=1"`
	RateDateStart             string           `json:"rateDateStart" validate:"required,datetime=2006-01-02"`
	RateDateEnd               string           `json:"rateDateEnd" validate:"required,datetime=2006-01-02"`
	RateDateCertified         string           `json:"rateDateCertified" validate:"required,datetime=2006-01-02"`
	RateDocuments             []Document       `json:"rateDocuments" validate:"required,min=1,dive"`
	SupportingDocuments       []Document       `json:"supportingDocuments" validate:"dive"`
	CertifyingActuaryContacts []ActuaryContact `json:"certifyingActuaryContacts" validate:"required,min=1,dive"`
}

func (fd RateFormData) Clone() RateFormData {
	out := fd
	out.RateProgramIDs = append([]string(nil), fd.RateProgramIDs...)
	out.RateDocuments = append([]Document(nil), fd.RateDocuments...)
	out.SupportingDocuments = append([]Document(nil), fd.SupportingDocuments...)
	out.CertifyingActuaryContacts = append([]ActuaryContact(nil), fd.CertifyingActuaryContacts...)
	return out
}
