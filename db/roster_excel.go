package db

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"report-composer-go/models"
)

const reportSheetName = "학습보고서"

// ParseRosterExcel reads a roster from the first sheet of an Excel file.
// Row 1 is a header; columns are A=group, B=name, C=grade. Rows without a
// group or name are skipped. Groups keep the order they first appear in.
func ParseRosterExcel(file io.Reader, logger *zap.Logger) (models.Roster, error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open excel file: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("error closing excel file", zap.Error(err))
		}
	}()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, errors.New("excel file does not contain any sheets")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows from sheet %s: %w", sheetName, err)
	}

	var roster models.Roster
	groupIndex := make(map[string]int)
	for i, row := range rows {
		if i == 0 {
			continue // header
		}

		var group, name, grade string
		if len(row) > 0 {
			group = strings.TrimSpace(row[0])
		}
		if len(row) > 1 {
			name = strings.TrimSpace(row[1])
		}
		if len(row) > 2 {
			grade = strings.TrimSpace(row[2])
		}

		if group == "" || name == "" {
			logger.Debug("skipping roster row with missing group or name",
				zap.Int("row", i+1), zap.String("group", group), zap.String("name", name))
			continue
		}

		idx, ok := groupIndex[group]
		if !ok {
			idx = len(roster)
			groupIndex[group] = idx
			roster = append(roster, models.Group{Name: group})
		}
		roster[idx].Students = append(roster[idx].Students, models.RosterStudent{Name: name, Grade: grade})
	}
	return roster, nil
}

// ImportRosterFromExcel parses file and replaces the stored roster with it.
// It returns the imported roster and its student count.
func (s *StateService) ImportRosterFromExcel(ctx context.Context, file io.Reader) (models.Roster, int, error) {
	roster, err := ParseRosterExcel(file, s.Logger)
	if err != nil {
		return nil, 0, err
	}
	count := len(roster.Refs())
	if count == 0 {
		return nil, 0, errors.New("excel file does not contain any students")
	}
	if err := s.SaveRoster(ctx, roster); err != nil {
		return nil, 0, fmt.Errorf("failed to store imported roster: %w", err)
	}
	s.Logger.Info("imported roster", zap.Int("groups", len(roster)), zap.Int("students", count))
	return roster, count, nil
}

// WriteReportSheet writes one row per report, one column per field, as an xlsx workbook.
func WriteReportSheet(w io.Writer, reports []models.ReportFields) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), reportSheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]any, len(models.FieldKeys))
	for i, k := range models.FieldKeys {
		header[i] = string(k)
	}
	if err := f.SetSheetRow(reportSheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, r := range reports {
		row := make([]any, len(models.FieldKeys))
		for j, k := range models.FieldKeys {
			v, _ := r.Get(k)
			row[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(reportSheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// SeedRoster returns the roster stored when none exists yet.
func SeedRoster() models.Roster {
	return models.Roster{
		{Name: "초등 기본반", Students: []models.RosterStudent{
			{Name: "김하늘", Grade: "초3"},
			{Name: "이서준", Grade: "초3"},
		}},
		{Name: "초6 정규반", Students: []models.RosterStudent{
			{Name: "박지우", Grade: "초6"},
		}},
		{Name: "중1 정규반", Students: []models.RosterStudent{
			{Name: "최민서", Grade: "중1"},
			{Name: "정예준", Grade: "중1"},
		}},
		{Name: "중3 정규반", Students: []models.RosterStudent{
			{Name: "강도윤", Grade: "중3"},
		}},
	}
}

// EnsureRoster stores the seed roster when no roster is stored yet.
func (s *StateService) EnsureRoster(ctx context.Context) (models.Roster, error) {
	if roster, ok := s.LoadRoster(ctx); ok {
		s.Logger.Info("found stored roster, skipping seed", zap.Int("groups", len(roster)))
		return roster, nil
	}
	s.Logger.Info("no stored roster found, adding seed roster")
	roster := SeedRoster()
	if err := s.SaveRoster(ctx, roster); err != nil {
		return nil, fmt.Errorf("failed to seed roster: %w", err)
	}
	return roster, nil
}
