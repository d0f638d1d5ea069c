package reports

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/domain"
)

func TestGenerateContractExport(t *testing.T) {
	submitted := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	info := &domain.UpdateInfo{UpdatedAt: submitted}

	c := &domain.Contract{
		ID:          "c-1",
		StateCode:   "MN",
		StateNumber: 4,
		UpdatedAt:   submitted,
		Revisions: []domain.ContractRevision{{
			ID:         "cr-1",
			SubmitInfo: info,
			FormData: domain.ContractFormData{
				SubmissionType:    domain.SubmissionTypeContractAndRates,
				ContractType:      domain.ContractTypeBase,
				ContractDateStart: "2024-07-01",
				ContractDateEnd:   "2025-06-30",
			},
		}},
		PackageSubmissions: []domain.PackageSubmission{{
			ID:    "p-1",
			Cause: domain.CauseContractSubmission,
			Rates: []domain.PackageRate{{RateID: "r-1", RateRevisionID: "rr-1"}, {RateID: "r-missing"}},
		}},
	}
	draft := &domain.Contract{
		ID:           "c-2",
		StateCode:    "MN",
		StateNumber:  5,
		Revisions:    []domain.ContractRevision{{ID: "cr-2"}},
		DraftRateIDs: []string{"r-1"},
	}
	r := &domain.Rate{
		ID:               "r-1",
		StateCode:        "MN",
		StateNumber:      1,
		ParentContractID: "c-1",
		Revisions: []domain.RateRevision{{
			ID:         "rr-1",
			SubmitInfo: info,
			FormData: domain.RateFormData{
				RateCertificationName: "MN-RATE-2024",
				RateDateStart:         "2024-07-01",
				RateDateEnd:           "2025-06-30",
				RateDateCertified:     "2024-04-15",
			},
		}},
	}

	data, err := GenerateContractExport([]*domain.Contract{c, draft}, map[string]*domain.Rate{"r-1": r})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{ContractsSheet, RatesSheet}, f.GetSheetList())

	rows, err := f.GetRows(ContractsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, ContractExportHeader, rows[0])
	assert.Equal(t, "MCR-MN-0004", rows[1][0])
	assert.Equal(t, "SUBMITTED", rows[1][3])
	assert.Equal(t, "2024-05-01", rows[1][8])
	assert.Equal(t, "MN-RATE-2024, r-missing", rows[1][10])
	assert.Equal(t, "DRAFT", rows[2][3])
	assert.Equal(t, "MN-RATE-2024", rows[2][10])

	rows, err = f.GetRows(RatesSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"MN-RATE-2024", "r-1", "MN", "SUBMITTED", "MCR-MN-0004", "2024-07-01", "2025-06-30", "2024-04-15", "2024-05-01"}, rows[1])
	assert.Equal(t, []string{"", "r-missing"}, rows[2])
}

func TestGenerateContractExport_Empty(t *testing.T) {
	data, err := GenerateContractExport(nil, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(ContractsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, ContractExportHeader, rows[0])
}

func TestReferencedRateIDs(t *testing.T) {
	submitted := &domain.Contract{
		ID: "c-1",
		PackageSubmissions: []domain.PackageSubmission{{
			ID:    "p-1",
			Rates: []domain.PackageRate{{RateID: "r-2"}, {RateID: "r-1"}},
		}},
		DraftRateIDs: []string{"r-ignored"},
	}
	draft := &domain.Contract{ID: "c-2", DraftRateIDs: []string{"r-1", "r-3"}}

	assert.Equal(t, []string{"r-1", "r-2", "r-3"}, ReferencedRateIDs([]*domain.Contract{submitted, draft}))
	assert.Empty(t, ReferencedRateIDs(nil))
}
