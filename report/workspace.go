package report

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"report-composer-go/models"
)

var (
	ErrIndexOutOfRange = errors.New("display index out of range")
	ErrUnknownPreset   = errors.New("unknown grade preset")
	// ErrExporting is returned by selection and navigation calls while an
	// export owns the displayed student.
	ErrExporting = errors.New("an export is using the display")
)

// Persister stores workspace records. Each record is written independently
// after the in-memory value changes, while the workspace lock is held, so
// writes reach the store in the order the edits happened.
type Persister interface {
	SaveShared(ctx context.Context, fields models.ReportFields) error
	SaveOverrides(ctx context.Context, overrides models.OverrideMap) error
	SavePresets(ctx context.Context, presets map[string]models.GradePreset) error
}

// State is what a workspace starts from.
type State struct {
	Shared    models.ReportFields
	Overrides models.OverrideMap
	Presets   map[string]models.GradePreset
}

// View is a consistent snapshot of the workspace.
type View struct {
	Selection      []models.StudentRef `json:"selection"`
	Index          int                 `json:"index"`
	IndividualMode bool                `json:"individualMode"`
	Current        *models.StudentRef  `json:"current"`
	Report         models.ReportFields `json:"report"`
}

// Workspace is the editing session: shared fields, per-student overrides,
// the active selection and which of its students is displayed.
type Workspace struct {
	mu         sync.RWMutex
	shared     models.ReportFields
	overrides  models.OverrideMap
	presets    map[string]models.GradePreset
	selection  []models.StudentRef
	index      int
	individual bool
	exporting  bool

	store  Persister
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(w *Workspace) { w.now = now }
}

// NewWorkspace creates a workspace from a loaded state. A nil store keeps everything in memory.
func NewWorkspace(state State, store Persister, logger *zap.Logger, opts ...Option) *Workspace {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Workspace{
		shared:    state.Shared,
		overrides: state.Overrides.Clone(),
		presets:   make(map[string]models.GradePreset, len(state.Presets)),
		store:     store,
		logger:    logger,
		now:       time.Now,
	}
	for g, p := range state.Presets {
		w.presets[g] = p
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Workspace) currentLocked() *models.StudentRef {
	if w.index < 0 || w.index >= len(w.selection) {
		return nil
	}
	cur := w.selection[w.index]
	return &cur
}

// Current returns the displayed student, or nil when nothing is selected.
func (w *Workspace) Current() *models.StudentRef {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.currentLocked()
}

// Effective derives the report for the displayed student.
func (w *Workspace) Effective() models.ReportFields {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return Derive(w.shared, w.overrides, w.currentLocked())
}

// View returns a snapshot of the whole workspace.
func (w *Workspace) View() View {
	w.mu.RLock()
	defer w.mu.RUnlock()
	cur := w.currentLocked()
	return View{
		Selection:      append([]models.StudentRef{}, w.selection...),
		Index:          w.index,
		IndividualMode: w.individual,
		Current:        cur,
		Report:         Derive(w.shared, w.overrides, cur),
	}
}

// Shared returns the shared default fields.
func (w *Workspace) Shared() models.ReportFields {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.shared
}

// Overrides returns a copy of the override map.
func (w *Workspace) Overrides() models.OverrideMap {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.overrides.Clone()
}

// Selection returns a copy of the selection list.
func (w *Workspace) Selection() []models.StudentRef {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]models.StudentRef{}, w.selection...)
}

// Index returns the displayed position within the selection.
func (w *Workspace) Index() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.index
}

// Presets returns a copy of the grade presets.
func (w *Workspace) Presets() map[string]models.GradePreset {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[string]models.GradePreset, len(w.presets))
	for g, p := range w.presets {
		out[g] = p
	}
	return out
}

// SelectBatch replaces the selection, shows its first student and derives
// the default time and teacher from that student.
func (w *Workspace) SelectBatch(ctx context.Context, students []models.StudentRef) error {
	w.mu.Lock()
	if w.exporting {
		w.mu.Unlock()
		return ErrExporting
	}
	w.selection = append([]models.StudentRef{}, students...)
	w.index = 0
	if len(students) == 0 {
		w.mu.Unlock()
		return nil
	}
	w.applySelectionDefaultsLocked(students[0])
	w.persistShared(ctx, w.shared)
	w.mu.Unlock()

	w.logger.Debug("selection replaced", zap.Int("count", len(students)), zap.String("first", students[0].Name))
	return nil
}

// SelectStudent makes ref the only selected student.
func (w *Workspace) SelectStudent(ctx context.Context, ref models.StudentRef) error {
	return w.SelectBatch(ctx, []models.StudentRef{ref})
}

func (w *Workspace) applySelectionDefaultsLocked(first models.StudentRef) {
	w.shared.Time = DefaultTime(first.Grade)
	w.shared.Teacher = DefaultTeacher(first.Group)
}

// SetIndividualMode switches between editing the displayed student only and
// editing the whole selection.
func (w *Workspace) SetIndividualMode(individual bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.individual = individual
}

// SetIndex changes the displayed student.
func (w *Workspace) SetIndex(i int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.exporting {
		return ErrExporting
	}
	return w.setIndexLocked(i)
}

func (w *Workspace) setIndexLocked(i int) error {
	if i < 0 || i >= len(w.selection) {
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, len(w.selection))
	}
	w.index = i
	return nil
}

// Next shows the following student; it stays put on the last one.
func (w *Workspace) Next() (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.exporting {
		return w.index, ErrExporting
	}
	if w.index < len(w.selection)-1 {
		w.index++
	}
	return w.index, nil
}

// Prev shows the preceding student; it stays put on the first one.
func (w *Workspace) Prev() (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.exporting {
		return w.index, ErrExporting
	}
	if w.index > 0 {
		w.index--
	}
	return w.index, nil
}

// BeginExport hands the display to an export. Until EndExport, selection and
// navigation calls fail with ErrExporting and only ShowForExport moves the
// index. It returns the selection and index the export starts from.
func (w *Workspace) BeginExport() ([]models.StudentRef, int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.exporting {
		return nil, 0, ErrExporting
	}
	w.exporting = true
	return append([]models.StudentRef{}, w.selection...), w.index, nil
}

// ShowForExport displays the student at i and derives their report in one step.
func (w *Workspace) ShowForExport(i int) (models.ReportFields, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.setIndexLocked(i); err != nil {
		return models.ReportFields{}, err
	}
	return Derive(w.shared, w.overrides, w.currentLocked()), nil
}

// EndExport puts index back on display and gives the display back to callers.
func (w *Workspace) EndExport(index int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.selection) == 0 {
		w.exporting = false
		return
	}
	if err := w.setIndexLocked(index); err != nil {
		w.logger.Warn("failed to restore displayed student", zap.Int("index", index), zap.Error(err))
	}
	w.exporting = false
}

// Exporting reports whether an export owns the display.
func (w *Workspace) Exporting() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.exporting
}

// UpdateField writes key=value into the override of every target student:
// the displayed student in individual mode, the whole selection otherwise.
// Shared fields are never touched. It reports whether anything changed.
func (w *Workspace) UpdateField(ctx context.Context, key models.FieldKey, value string) (bool, error) {
	if _, err := models.ParseFieldKey(string(key)); err != nil {
		return false, err
	}
	return w.updateFields(ctx, models.Override{key: value})
}

func (w *Workspace) updateFields(ctx context.Context, edits models.Override) (bool, error) {
	w.mu.Lock()
	var targets []models.StudentRef
	if w.individual {
		if cur := w.currentLocked(); cur != nil {
			targets = []models.StudentRef{*cur}
		}
	} else {
		targets = w.selection
	}
	if len(targets) == 0 {
		w.mu.Unlock()
		return false, nil
	}

	for _, s := range targets {
		o := w.overrides[s.Name]
		if o == nil {
			o = make(models.Override, len(edits))
			if w.overrides == nil {
				w.overrides = make(models.OverrideMap)
			}
			w.overrides[s.Name] = o
		}
		for k, v := range edits {
			o[k] = v
		}
	}
	w.persistOverrides(ctx, w.overrides)
	w.mu.Unlock()
	return true, nil
}

// UpdatePreset replaces the preset for grade.
func (w *Workspace) UpdatePreset(ctx context.Context, grade string, preset models.GradePreset) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.presets[grade] = preset
	if w.store == nil {
		return
	}
	if err := w.store.SavePresets(ctx, w.presets); err != nil {
		w.logger.Warn("failed to persist grade presets", zap.Error(err))
	}
}

// ApplyPreset writes the grade's book, progress and notes like UpdateField does.
func (w *Workspace) ApplyPreset(ctx context.Context, grade string) (bool, error) {
	w.mu.RLock()
	p, ok := w.presets[grade]
	w.mu.RUnlock()
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownPreset, grade)
	}
	return w.updateFields(ctx, p.Fields())
}

// RefreshDate sets the shared date to today when it differs. It reports whether it changed.
func (w *Workspace) RefreshDate(ctx context.Context) bool {
	today := FormatDate(w.now())
	w.mu.Lock()
	if w.shared.Date == today {
		w.mu.Unlock()
		return false
	}
	w.shared.Date = today
	w.persistShared(ctx, w.shared)
	w.mu.Unlock()
	return true
}

// Today formats the workspace clock's current date.
func (w *Workspace) Today() string {
	return FormatDate(w.now())
}

// Now returns the workspace clock's current time.
func (w *Workspace) Now() time.Time {
	return w.now()
}

// RunDateTicker refreshes the shared date every interval until ctx is done.
func (w *Workspace) RunDateTicker(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if w.RefreshDate(ctx) {
				w.logger.Info("shared date rolled over", zap.String("date", w.Today()))
			}
		}
	}
}

func (w *Workspace) persistShared(ctx context.Context, shared models.ReportFields) {
	if w.store == nil {
		return
	}
	if err := w.store.SaveShared(ctx, shared); err != nil {
		w.logger.Warn("failed to persist shared fields", zap.Error(err))
	}
}

func (w *Workspace) persistOverrides(ctx context.Context, overrides models.OverrideMap) {
	if w.store == nil {
		return
	}
	if err := w.store.SaveOverrides(ctx, overrides); err != nil {
		w.logger.Warn("failed to persist overrides", zap.Error(err))
	}
}
