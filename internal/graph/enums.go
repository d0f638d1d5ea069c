package graph

import (
	"github.com/graphql-go/graphql"

	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/domain"
	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/service"
)

// enumOf builds an enum whose values are the typed domain constants, so
// resolvers can return domain values directly and inputs decode back to them.
func enumOf[T ~string](name string, values ...T) *graphql.Enum {
	cfg := graphql.EnumValueConfigMap{}
	for _, v := range values {
		cfg[string(v)] = &graphql.EnumValueConfig{Value: v}
	}
	return graphql.NewEnum(graphql.EnumConfig{Name: name, Values: cfg})
}

var (
	statusEnum = enumOf("Status",
		domain.StatusDraft,
		domain.StatusSubmitted,
		domain.StatusUnlocked,
		domain.StatusResubmitted,
		domain.StatusApproved,
		domain.StatusWithdrawn,
	)

	reviewStatusEnum = enumOf("ReviewStatus",
		domain.ReviewStatusUnderReview,
		domain.ReviewStatusApproved,
		domain.ReviewStatusWithdrawn,
	)

	actionTypeEnum = enumOf("ActionType",
		domain.ActionUnderReview,
		domain.ActionMarkAsApproved,
		domain.ActionWithdraw,
	)

	submissionCauseEnum = enumOf("SubmissionReason",
		domain.CauseContractSubmission,
		domain.CauseRateSubmission,
		domain.CauseRateWithdrawn,
		domain.CauseRateRestored,
		domain.CauseContractWithdrawn,
		domain.CauseContractRestored,
	)

	roleEnum = enumOf("Role",
		domain.RoleStateUser,
		domain.RoleCMSUser,
		domain.RoleCMSApproverUser,
		domain.RoleAdminUser,
		domain.RoleHelpdeskUser,
		domain.RoleBusinessOwnerUser,
	)

	submissionTypeEnum = enumOf("SubmissionType",
		domain.SubmissionTypeContractOnly,
		domain.SubmissionTypeContractAndRates,
	)

	contractTypeEnum = enumOf("ContractType",
		domain.ContractTypeBase,
		domain.ContractTypeAmendment,
	)

	populationCoveredEnum = enumOf("PopulationCovered",
		domain.PopulationMedicaid,
		domain.PopulationCHIP,
		domain.PopulationMedicaidAndCHIP,
	)

	rateTypeEnum = enumOf("RateType",
		domain.RateTypeNew,
		domain.RateTypeAmendment,
	)

	updateRateTypeEnum = enumOf("UpdateDraftContractRateType",
		service.RateUpdateCreate,
		service.RateUpdateUpdate,
		service.RateUpdateLink,
	)
)
