// Package export captures the selected students' reports one after another
// and packages them as a single image or a zip archive.
package export

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"report-composer-go/models"
	"report-composer-go/render"
	"report-composer-go/report"
)

var (
	ErrExportInProgress = errors.New("an export is already running")
	ErrNothingSelected  = errors.New("no students selected")
)

const (
	ContentTypeJPEG = "image/jpeg"
	ContentTypeZip  = "application/zip"
)

// Artifact is the finished download.
type Artifact struct {
	ID          string
	Filename    string
	ContentType string
	Data        []byte
	Count       int
}

// Workspace is the part of report.Workspace the exporter drives. Between
// BeginExport and EndExport the exporter is the only caller that moves the
// displayed student.
type Workspace interface {
	BeginExport() ([]models.StudentRef, int, error)
	ShowForExport(i int) (models.ReportFields, error)
	EndExport(index int)
	Now() time.Time
}

var _ Workspace = (*report.Workspace)(nil)

// Exporter runs at most one export at a time against a shared render surface.
type Exporter struct {
	ws          Workspace
	surface     render.Surface
	settleDelay time.Duration
	busy        *semaphore.Weighted
	logger      *zap.Logger
}

// NewExporter creates an Exporter. settleDelay is how long to wait after
// switching students before capturing.
func NewExporter(ws Workspace, surface render.Surface, settleDelay time.Duration, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{
		ws:          ws,
		surface:     surface,
		settleDelay: settleDelay,
		busy:        semaphore.NewWeighted(1),
		logger:      logger,
	}
}

// Export produces the artifact for the current selection: one JPEG when a
// single student is selected, otherwise a zip with one JPEG per student.
// A second call while one is running fails with ErrExportInProgress.
func (e *Exporter) Export(ctx context.Context) (*Artifact, error) {
	if !e.busy.TryAcquire(1) {
		return nil, ErrExportInProgress
	}
	defer e.busy.Release(1)

	students, originalIndex, err := e.ws.BeginExport()
	if err != nil {
		return nil, err
	}
	defer e.ws.EndExport(originalIndex)
	if len(students) == 0 {
		return nil, ErrNothingSelected
	}

	id := uuid.NewString()
	logger := e.logger.With(zap.String("export_id", id), zap.Int("students", len(students)))
	start := time.Now()

	var art *Artifact
	if len(students) == 1 {
		art, err = e.exportSingle(ctx, originalIndex)
	} else {
		art, err = e.exportBatch(ctx, students, logger)
	}
	if err != nil {
		logger.Error("export failed", zap.Error(err))
		return nil, err
	}

	art.ID = id
	logger.Info("export finished",
		zap.String("file", art.Filename),
		zap.Int("bytes", len(art.Data)),
		zap.Duration("took", time.Since(start)))
	return art, nil
}

func (e *Exporter) exportSingle(ctx context.Context, index int) (*Artifact, error) {
	fields, err := e.ws.ShowForExport(index)
	if err != nil {
		return nil, err
	}
	img, err := e.snapshot(ctx, fields)
	if err != nil {
		return nil, err
	}
	return &Artifact{
		Filename:    report.ImageName(fields.Grade, fields.Name),
		ContentType: ContentTypeJPEG,
		Data:        img,
		Count:       1,
	}, nil
}

func (e *Exporter) exportBatch(ctx context.Context, students []models.StudentRef, logger *zap.Logger) (*Artifact, error) {
	grade, shared := report.SharedGrade(students)
	folder := ""
	if shared && grade != "" {
		folder = grade + "/"
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for i, s := range students {
		fields, err := e.ws.ShowForExport(i)
		if err != nil {
			return nil, fmt.Errorf("switch to %s: %w", s.Name, err)
		}
		img, err := e.snapshot(ctx, fields)
		if err != nil {
			return nil, fmt.Errorf("capture %s: %w", s.Name, err)
		}

		w, err := zw.Create(folder + report.ImageName(s.Grade, s.Name))
		if err != nil {
			return nil, fmt.Errorf("add %s to archive: %w", s.Name, err)
		}
		if _, err := w.Write(img); err != nil {
			return nil, fmt.Errorf("add %s to archive: %w", s.Name, err)
		}
		logger.Debug("captured report", zap.Int("index", i), zap.String("name", s.Name))
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finish archive: %w", err)
	}
	return &Artifact{
		Filename:    report.ArchiveName(grade, shared, e.ws.Now()),
		ContentType: ContentTypeZip,
		Data:        buf.Bytes(),
		Count:       len(students),
	}, nil
}

// snapshot draws fields, lets the surface settle, then captures it. The
// surface is shared, so the capture must not start before the new report is drawn.
func (e *Exporter) snapshot(ctx context.Context, fields models.ReportFields) ([]byte, error) {
	page, err := render.HTML(fields)
	if err != nil {
		return nil, err
	}
	if err := e.surface.Show(ctx, page); err != nil {
		return nil, err
	}
	if err := sleep(ctx, e.settleDelay); err != nil {
		return nil, err
	}
	return e.surface.Capture(ctx)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
