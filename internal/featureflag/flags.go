package featureflag

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/logger"
)

// Flag is one flag and its effective value.
type Flag struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	// Overridden is true when the value comes from the store rather than defaults.
	Overridden bool `json:"overridden"`
}

// Store resolves flags from the KV, falling back to configured defaults.
type Store struct {
	kv       KV
	prefix   string
	defaults map[string]bool
	logger   *zap.Logger
}

func NewStore(kv KV, prefix string, defaults map[string]bool, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	d := make(map[string]bool, len(defaults))
	for k, v := range defaults {
		d[k] = v
	}
	return &Store{kv: kv, prefix: prefix, defaults: d, logger: log}
}

func (s *Store) key(flag string) string { return s.prefix + flag }

// Enabled never fails: a store error is logged and the default is used.
func (s *Store) Enabled(ctx context.Context, flag string) bool {
	v, err := s.kv.Get(ctx, s.key(flag))
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			logger.FromContext(ctx, s.logger).Warn("feature flag lookup failed, using default",
				zap.String("flag", flag), zap.Error(err))
		}
		return s.defaults[flag]
	}
	on, err := strconv.ParseBool(v)
	if err != nil {
		logger.FromContext(ctx, s.logger).Warn("invalid feature flag value, using default",
			zap.String("flag", flag), zap.String("value", v))
		return s.defaults[flag]
	}
	return on
}

func (s *Store) Set(ctx context.Context, flag string, enabled bool) error {
	if strings.TrimSpace(flag) == "" {
		return fmt.Errorf("flag name is required")
	}
	if err := s.kv.Set(ctx, s.key(flag), strconv.FormatBool(enabled)); err != nil {
		return fmt.Errorf("failed to set feature flag %s: %w", flag, err)
	}
	return nil
}

// Reset removes the stored value so the default applies again.
func (s *Store) Reset(ctx context.Context, flag string) error {
	if err := s.kv.Del(ctx, s.key(flag)); err != nil {
		return fmt.Errorf("failed to reset feature flag %s: %w", flag, err)
	}
	return nil
}

// List returns every known flag: configured defaults plus stored overrides,
// sorted by name.
func (s *Store) List(ctx context.Context) ([]Flag, error) {
	keys, err := s.kv.ScanKeys(ctx, s.prefix+"*")
	if err != nil {
		return nil, fmt.Errorf("failed to list feature flags: %w", err)
	}
	names := map[string]bool{}
	for name := range s.defaults {
		names[name] = false
	}
	for _, k := range keys {
		names[strings.TrimPrefix(k, s.prefix)] = true
	}

	out := make([]Flag, 0, len(names))
	for name, stored := range names {
		f := Flag{Name: name, Enabled: s.defaults[name]}
		if stored {
			f.Enabled = s.Enabled(ctx, name)
			f.Overridden = true
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
