package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/authn"
)

// MetricsExporter records request metrics and serves them.
type MetricsExporter interface {
	HTTPRecorder
	Handler() http.Handler
}

// Deps are the components mounted by NewHandler. Nil optional fields leave
// their routes unregistered.
type Deps struct {
	GraphQL       GraphQLExecutor
	Authenticator *authn.Authenticator
	Contracts     ContractLister
	Flags         FlagStore
	Health        map[string]Pinger
	Metrics       MetricsExporter
	Logger        *zap.Logger
}

// NewHandler builds the API router wrapped in the standard middleware chain.
func NewHandler(d Deps) http.Handler {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}

	router := NewRouter(log)
	router.RegisterGraphQLRoutes(NewGraphQLHandler(d.GraphQL, log))
	router.RegisterHealthRoutes(NewHealthHandler(d.Health, log))
	if d.Contracts != nil {
		router.RegisterReportRoutes(NewReportHandler(d.Contracts, log))
	}
	if d.Flags != nil {
		router.RegisterFeatureFlagRoutes(NewFeatureFlagHandler(d.Flags, log))
	}

	var rec HTTPRecorder
	if d.Metrics != nil {
		router.RegisterMetricsRoutes(d.Metrics.Handler())
		rec = d.Metrics
	}

	mws := []Middleware{RequestID(log), Recovery(log), AccessLog(log, rec)}
	if d.Authenticator != nil {
		mws = append(mws, Authenticate(d.Authenticator))
	}
	return Chain(router, mws...)
}
