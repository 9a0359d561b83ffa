package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"report-composer-go/models"
	"report-composer-go/report"
)

const (
	sharedKey    = "cosmath_common_data"    // ReportFields shared by every selected student
	overridesKey = "cosmath_overrides_data" // OverrideMap keyed by student name
	rosterKey    = "cosmath_roster_data"    // Roster groups
	presetsKey   = "cosmath_grade_presets"  // map of grade -> GradePreset
)

// StateService loads and saves the workspace records. Each record lives
// under its own key and is read and written independently.
type StateService struct {
	Backend Backend
	Logger  *zap.Logger
}

// NewStateService creates a StateService over backend.
func NewStateService(backend Backend, logger *zap.Logger) *StateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StateService{Backend: backend, Logger: logger}
}

func (s *StateService) save(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.Backend.Set(ctx, key, string(raw))
}

// load decodes key into v. It reports false when the record is absent or
// unreadable; callers then keep their defaults.
func (s *StateService) load(ctx context.Context, key string, v any) bool {
	raw, err := s.Backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.Logger.Warn("failed to read stored record, using defaults", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		s.Logger.Warn("stored record is malformed, using defaults", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// SaveShared implements report.Persister.
func (s *StateService) SaveShared(ctx context.Context, fields models.ReportFields) error {
	return s.save(ctx, sharedKey, fields)
}

// SaveOverrides implements report.Persister.
func (s *StateService) SaveOverrides(ctx context.Context, overrides models.OverrideMap) error {
	return s.save(ctx, overridesKey, overrides)
}

// SavePresets implements report.Persister.
func (s *StateService) SavePresets(ctx context.Context, presets map[string]models.GradePreset) error {
	return s.save(ctx, presetsKey, presets)
}

// SaveRoster replaces the stored roster.
func (s *StateService) SaveRoster(ctx context.Context, roster models.Roster) error {
	return s.save(ctx, rosterKey, roster)
}

// LoadRoster returns the stored roster and whether one was found.
func (s *StateService) LoadRoster(ctx context.Context) (models.Roster, bool) {
	var roster models.Roster
	if !s.load(ctx, rosterKey, &roster) {
		return nil, false
	}
	return roster, true
}

// LoadState reads the workspace records, falling back to defaults per record.
// The stored date is always replaced by today's.
func (s *StateService) LoadState(ctx context.Context, now time.Time) report.State {
	state := report.State{
		Shared:    report.DefaultFields(now),
		Overrides: models.OverrideMap{},
		Presets:   report.DefaultPresets(),
	}

	// Decoding on top of the defaults keeps fields missing from older records.
	shared := state.Shared
	if s.load(ctx, sharedKey, &shared) {
		shared.Date = state.Shared.Date
		state.Shared = shared
	}

	var overrides models.OverrideMap
	if s.load(ctx, overridesKey, &overrides) && overrides != nil {
		state.Overrides = overrides
	}

	var presets map[string]models.GradePreset
	if s.load(ctx, presetsKey, &presets) {
		for g, p := range presets {
			state.Presets[g] = p
		}
	}
	return state
}
