// Package reports renders contract and rate summaries as spreadsheets.
package reports

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/domain"
)

const (
	ContractsSheet = "Contracts"
	RatesSheet     = "Rates"

	dateLayout = "2006-01-02"
)

var ContractExportHeader = []string{
	"Contract Name",
	"Contract ID",
	"State",
	"Status",
	"Submission Type",
	"Contract Type",
	"Contract Start",
	"Contract End",
	"Initially Submitted",
	"Last Updated",
	"Rates",
}

var RateExportHeader = []string{
	"Rate Name",
	"Rate ID",
	"State",
	"Status",
	"Parent Contract",
	"Rate Start",
	"Rate End",
	"Date Certified",
	"Initially Submitted",
}

var contractColumnWidths = []float64{16, 38, 8, 14, 22, 14, 14, 14, 20, 20, 40}

var rateColumnWidths = []float64{32, 38, 8, 14, 16, 14, 14, 16, 20}

// GenerateContractExport writes one row per contract and one row per rate
// referenced by those contracts. rates is keyed by rate ID; rates missing
// from it are listed by ID only.
func GenerateContractExport(contracts []*domain.Contract, rates map[string]*domain.Rate) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(ContractsSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if _, err := f.NewSheet(RatesSheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	contractRows := make([][]any, 0, len(contracts))
	seen := map[string]bool{}
	var rateIDs []string
	for _, c := range contracts {
		ids := contractRateIDs(c)
		names := make([]string, 0, len(ids))
		for _, id := range ids {
			if r, ok := rates[id]; ok {
				names = append(names, r.Name())
			} else {
				names = append(names, id)
			}
			if !seen[id] {
				seen[id] = true
				rateIDs = append(rateIDs, id)
			}
		}
		contractRows = append(contractRows, contractRow(c, names))
	}
	sort.Strings(rateIDs)

	byID := contractsByID(contracts)
	rateRows := make([][]any, 0, len(rateIDs))
	for _, id := range rateIDs {
		r, ok := rates[id]
		if !ok {
			rateRows = append(rateRows, []any{"", id})
			continue
		}
		rateRows = append(rateRows, rateRow(r, byID))
	}

	if err := writeSheet(f, ContractsSheet, ContractExportHeader, contractColumnWidths, headerStyle, contractRows); err != nil {
		return nil, err
	}
	if err := writeSheet(f, RatesSheet, RateExportHeader, rateColumnWidths, headerStyle, rateRows); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func contractRow(c *domain.Contract, rateNames []string) []any {
	var fd domain.ContractFormData
	if rev := c.LatestRevision(); rev != nil {
		fd = rev.FormData
	}
	return []any{
		c.Name(),
		c.ID,
		c.StateCode,
		string(c.ConsolidatedStatus()),
		string(fd.SubmissionType),
		string(fd.ContractType),
		fd.ContractDateStart,
		fd.ContractDateEnd,
		formatTime(c.InitiallySubmittedAt()),
		c.UpdatedAt.UTC().Format(time.RFC3339),
		strings.Join(rateNames, ", "),
	}
}

func rateRow(r *domain.Rate, contracts map[string]*domain.Contract) []any {
	var fd domain.RateFormData
	if rev := r.LatestRevision(); rev != nil {
		fd = rev.FormData
	}
	parent := r.ParentContractID
	if c, ok := contracts[parent]; ok {
		parent = c.Name()
	}
	return []any{
		r.Name(),
		r.ID,
		r.StateCode,
		string(r.ConsolidatedStatus()),
		parent,
		fd.RateDateStart,
		fd.RateDateEnd,
		fd.RateDateCertified,
		formatTime(r.InitiallySubmittedAt()),
	}
}

func contractsByID(contracts []*domain.Contract) map[string]*domain.Contract {
	out := make(map[string]*domain.Contract, len(contracts))
	for _, c := range contracts {
		out[c.ID] = c
	}
	return out
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(dateLayout)
}

func writeSheet(f *excelize.File, sheet string, headers []string, widths []float64, headerStyle int, rows [][]any) error {
	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
		if col < len(widths) {
			name, err := excelize.ColumnNumberToName(col + 1)
			if err != nil {
				return fmt.Errorf("failed to convert column number: %w", err)
			}
			if err := f.SetColWidth(sheet, name, name, widths[col]); err != nil {
				return fmt.Errorf("failed to set column width: %w", err)
			}
		}
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}
	return nil
}

// ReferencedRateIDs lists, sorted and without duplicates, the rates the
// export will look up for contracts.
func ReferencedRateIDs(contracts []*domain.Contract) []string {
	seen := map[string]bool{}
	var out []string
	for _, c := range contracts {
		for _, id := range contractRateIDs(c) {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	sort.Strings(out)
	return out
}

func contractRateIDs(c *domain.Contract) []string {
	if p := c.LatestPackage(); p != nil {
		return p.RateIDs()
	}
	return c.DraftRateIDs
}
