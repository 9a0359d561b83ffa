package db

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"report-composer-go/models"
	"report-composer-go/report"
)

var testNow = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

type failingBackend struct{}

func (failingBackend) Get(context.Context, string) (string, error) {
	return "", errors.New("connection refused")
}

func (failingBackend) Set(context.Context, string, string) error {
	return errors.New("connection refused")
}

func TestLoadStateDefaultsWhenEmpty(t *testing.T) {
	s := NewStateService(NewMemoryBackend(), zap.NewNop())

	state := s.LoadState(context.Background(), testNow)
	assert.Equal(t, report.DefaultFields(testNow), state.Shared)
	assert.Empty(t, state.Overrides)
	assert.Equal(t, report.DefaultPresets(), state.Presets)
}

func TestLoadStateRoundTripReplacesDate(t *testing.T) {
	ctx := context.Background()
	s := NewStateService(NewMemoryBackend(), zap.NewNop())

	shared := report.DefaultFields(testNow.AddDate(0, 0, -3))
	shared.Teacher = "김윤재T"
	require.NoError(t, s.SaveShared(ctx, shared))
	require.NoError(t, s.SaveOverrides(ctx, models.OverrideMap{"김하늘": {models.FieldNotes: "메모"}}))
	require.NoError(t, s.SavePresets(ctx, map[string]models.GradePreset{"중1": {Book: "쎈"}}))

	state := s.LoadState(ctx, testNow)
	assert.Equal(t, "김윤재T", state.Shared.Teacher)
	assert.Equal(t, report.FormatDate(testNow), state.Shared.Date)
	assert.Equal(t, "메모", state.Overrides["김하늘"][models.FieldNotes])
	assert.Equal(t, "쎈", state.Presets["중1"].Book)
	assert.Equal(t, "초등", state.Presets["초1"].Book, "unsaved grades keep built-in presets")
}

func TestLoadStateMalformedFallsBack(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	require.NoError(t, backend.Set(ctx, sharedKey, "{not json"))
	require.NoError(t, backend.Set(ctx, overridesKey, `["wrong shape"]`))
	require.NoError(t, backend.Set(ctx, rosterKey, "null?"))

	s := NewStateService(backend, zap.NewNop())
	state := s.LoadState(ctx, testNow)
	assert.Equal(t, report.DefaultFields(testNow), state.Shared)
	assert.Empty(t, state.Overrides)

	_, ok := s.LoadRoster(ctx)
	assert.False(t, ok)
}

func TestLoadStatePartialRecordKeepsDefaults(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	require.NoError(t, backend.Set(ctx, sharedKey, `{"teacher":"백금채T"}`))

	state := NewStateService(backend, zap.NewNop()).LoadState(ctx, testNow)
	assert.Equal(t, "백금채T", state.Shared.Teacher)
	assert.Equal(t, "수학", state.Shared.Subject)
}

func TestLoadStateBackendErrorFallsBack(t *testing.T) {
	s := NewStateService(failingBackend{}, zap.NewNop())
	state := s.LoadState(context.Background(), testNow)
	assert.Equal(t, report.DefaultFields(testNow), state.Shared)
	assert.Error(t, s.SaveShared(context.Background(), state.Shared))
}

func TestEnsureRosterSeedsOnce(t *testing.T) {
	ctx := context.Background()
	s := NewStateService(NewMemoryBackend(), zap.NewNop())

	roster, err := s.EnsureRoster(ctx)
	require.NoError(t, err)
	assert.Equal(t, SeedRoster(), roster)

	custom := models.Roster{{Name: "중등 개별반", Students: []models.RosterStudent{{Name: "x", Grade: "중2"}}}}
	require.NoError(t, s.SaveRoster(ctx, custom))

	roster, err = s.EnsureRoster(ctx)
	require.NoError(t, err)
	assert.Equal(t, custom, roster)
}

func rosterWorkbook(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow(sheet, cell, &r))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return &buf
}

func TestImportRosterFromExcel(t *testing.T) {
	ctx := context.Background()
	s := NewStateService(NewMemoryBackend(), zap.NewNop())

	file := rosterWorkbook(t, [][]any{
		{"반", "이름", "학년"},
		{"중1 정규반", "최민서", "중1"},
		{"초등 기본반", "김하늘", "초3"},
		{"중1 정규반", "정예준", "중1"},
		{"중1 정규반", "", "중1"},
		{"", "무소속", "초2"},
	})

	roster, count, err := s.ImportRosterFromExcel(ctx, file)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, models.Roster{
		{Name: "중1 정규반", Students: []models.RosterStudent{{Name: "최민서", Grade: "중1"}, {Name: "정예준", Grade: "중1"}}},
		{Name: "초등 기본반", Students: []models.RosterStudent{{Name: "김하늘", Grade: "초3"}}},
	}, roster)

	stored, ok := s.LoadRoster(ctx)
	require.True(t, ok)
	assert.Equal(t, roster, stored)
}

func TestImportRosterRejectsEmptyAndGarbage(t *testing.T) {
	ctx := context.Background()
	s := NewStateService(NewMemoryBackend(), zap.NewNop())

	_, _, err := s.ImportRosterFromExcel(ctx, rosterWorkbook(t, [][]any{{"반", "이름", "학년"}}))
	assert.Error(t, err)

	_, _, err = s.ImportRosterFromExcel(ctx, bytes.NewBufferString("not a workbook"))
	assert.Error(t, err)

	_, ok := s.LoadRoster(ctx)
	assert.False(t, ok, "failed imports must not replace the roster")
}

func TestWriteReportSheet(t *testing.T) {
	reports := []models.ReportFields{
		{Name: "김하늘", Grade: "초3", Progress: "분수"},
		{Name: "이서준", Grade: "초3", Notes: "결석"},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteReportSheet(&buf, reports))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(reportSheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "date", rows[0][0])
	assert.Equal(t, "notes", rows[0][len(models.FieldKeys)-1])
	assert.Equal(t, "김하늘", rows[1][3])
	assert.Equal(t, "분수", rows[1][11])
	assert.Equal(t, "결석", rows[2][14])
}
