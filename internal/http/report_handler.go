package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/authn"
	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/domain"
	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/logger"
	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/reports"
)

// ContractLister is the read side needed by the spreadsheet export.
type ContractLister interface {
	IndexContracts(ctx context.Context, actor domain.Actor) ([]*domain.Contract, error)
	RatesByID(ctx context.Context, ids []string) ([]*domain.Rate, error)
}

type ReportHandler struct {
	svc    ContractLister
	logger *zap.Logger
}

func NewReportHandler(svc ContractLister, logger *zap.Logger) *ReportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportHandler{svc: svc, logger: logger}
}

// ExportContracts streams every visible contract and its rates as an xlsx
// workbook. CMS users and admins only.
func (h *ReportHandler) ExportContracts(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if !actor.User.IsCMSUser() && !actor.User.IsAdmin() {
		writeJSON(w, http.StatusForbidden, Fail("only CMS users can export contracts"))
		return
	}

	ctx := r.Context()
	contracts, err := h.svc.IndexContracts(ctx, actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rates, err := h.svc.RatesByID(ctx, reports.ReferencedRateIDs(contracts))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	byID := make(map[string]*domain.Rate, len(rates))
	for _, rt := range rates {
		byID[rt.ID] = rt
	}

	data, err := reports.GenerateContractExport(contracts, byID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=contracts-export.xlsx")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *ReportHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.FromContext(r.Context(), h.logger).Error("contract export failed", zap.Error(err))
		writeJSON(w, status, Fail("failed to export contracts"))
		return
	}
	writeJSON(w, status, Fail(err.Error()))
}

func requireActor(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	actor, ok := authn.ActorFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, FailWith(ResultTokenExpired, authn.ErrUnauthenticated.Error(), nil))
		return domain.Actor{}, false
	}
	return actor, true
}

// statusFor maps a domain error to an HTTP status.
func statusFor(err error) int {
	var derr *domain.Error
	if !errors.As(err, &derr) {
		return http.StatusInternalServerError
	}
	switch derr.Code {
	case domain.CodeBadUserInput:
		return http.StatusBadRequest
	case domain.CodeForbidden:
		return http.StatusForbidden
	case domain.CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
