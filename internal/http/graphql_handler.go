package httpapi

import (
	"context"
	"net/http"

	"github.com/graphql-go/graphql"
	"go.uber.org/zap"

	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/graph"
	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/logger"
)

// GraphQLExecutor runs a parsed GraphQL request.
type GraphQLExecutor interface {
	Do(ctx context.Context, req graph.Request) *graphql.Result
}

type GraphQLHandler struct {
	exec   GraphQLExecutor
	logger *zap.Logger
}

func NewGraphQLHandler(exec GraphQLExecutor, logger *zap.Logger) *GraphQLHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphQLHandler{exec: exec, logger: logger}
}

// ServeGraphQL answers with the standard {data, errors} body. Field errors
// still return 200; only an unreadable request is a 400.
func (h *GraphQLHandler) ServeGraphQL(w http.ResponseWriter, r *http.Request) {
	var req graph.Request
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, Fail("query is required"))
		return
	}

	res := h.exec.Do(r.Context(), req)
	if res.HasErrors() {
		logger.FromContext(r.Context(), h.logger).Debug("graphql errors",
			zap.String("operation", req.OperationName),
			zap.Int("count", len(res.Errors)),
		)
	}
	writeJSON(w, http.StatusOK, res)
}
