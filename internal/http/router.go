package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router uses http.ServeMux; the route table is small and fixed.
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

// HandleHandler registers a plain http.Handler (metrics exposition).
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) RegisterGraphQLRoutes(h *GraphQLHandler) {
	r.Handle("/graphql", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		h.ServeGraphQL(w, req)
	})
}

func (r *Router) RegisterHealthRoutes(h *HealthHandler) {
	r.Handle("/health", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		h.Health(w, req)
	})
}

func (r *Router) RegisterReportRoutes(h *ReportHandler) {
	r.Handle("/reports/contracts.xlsx", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		h.ExportContracts(w, req)
	})
}

func (r *Router) RegisterFeatureFlagRoutes(h *FeatureFlagHandler) {
	r.Handle("/admin/api/v1/feature-flags", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			h.List(w, req)
		case http.MethodPut:
			h.Set(w, req)
		case http.MethodDelete:
			h.Reset(w, req)
		default:
			methodNotAllowed(w)
		}
	})
}

// RegisterMetricsRoutes exposes Prometheus metrics.
func (r *Router) RegisterMetricsRoutes(h http.Handler) {
	r.HandleHandler("/metrics", h)
}
