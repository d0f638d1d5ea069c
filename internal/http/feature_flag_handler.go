package httpapi

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/featureflag"
	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/logger"
)

// FlagStore is the admin view of the feature flag store.
type FlagStore interface {
	List(ctx context.Context) ([]featureflag.Flag, error)
	Set(ctx context.Context, flag string, enabled bool) error
	Reset(ctx context.Context, flag string) error
}

type FeatureFlagHandler struct {
	flags  FlagStore
	logger *zap.Logger
}

func NewFeatureFlagHandler(flags FlagStore, logger *zap.Logger) *FeatureFlagHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeatureFlagHandler{flags: flags, logger: logger}
}

type setFlagRequest struct {
	Name    string `json:"name"`
	Enabled *bool  `json:"enabled"`
}

func (h *FeatureFlagHandler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	actor, ok := requireActor(w, r)
	if !ok {
		return false
	}
	if !actor.User.IsAdmin() || actor.IsOAuthClient() {
		writeJSON(w, http.StatusForbidden, Fail("only admins can manage feature flags"))
		return false
	}
	return true
}

// GET /admin/api/v1/feature-flags
func (h *FeatureFlagHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	flags, err := h.flags.List(r.Context())
	if err != nil {
		logger.FromContext(r.Context(), h.logger).Error("failed to list feature flags", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to list feature flags"))
		return
	}
	if flags == nil {
		flags = []featureflag.Flag{}
	}
	writeJSON(w, http.StatusOK, Ok(flags))
}

// PUT /admin/api/v1/feature-flags {"name": "...", "enabled": true}
func (h *FeatureFlagHandler) Set(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	var req setFlagRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Enabled == nil {
		writeJSON(w, http.StatusBadRequest, Fail("name and enabled are required"))
		return
	}
	if err := h.flags.Set(r.Context(), req.Name, *req.Enabled); err != nil {
		logger.FromContext(r.Context(), h.logger).Error("failed to set feature flag",
			zap.String("flag", req.Name),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, Fail("failed to set feature flag"))
		return
	}
	logger.FromContext(r.Context(), h.logger).Info("feature flag set",
		zap.String("flag", req.Name),
		zap.Bool("enabled", *req.Enabled),
	)
	writeJSON(w, http.StatusOK, Ok(map[string]any{"name": req.Name, "enabled": *req.Enabled}))
}

// DELETE /admin/api/v1/feature-flags?name=...
func (h *FeatureFlagHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		writeJSON(w, http.StatusBadRequest, Fail("name is required"))
		return
	}
	if err := h.flags.Reset(r.Context(), name); err != nil {
		logger.FromContext(r.Context(), h.logger).Error("failed to reset feature flag",
			zap.String("flag", name),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, Fail("failed to reset feature flag"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"name": name}))
}
