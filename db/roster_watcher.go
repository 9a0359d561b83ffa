package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"report-composer-go/models"
)

// RosterWatcher re-imports a roster workbook whenever it changes on disk.
type RosterWatcher struct {
	path     string
	state    *StateService
	onImport func(models.Roster)
	debounce time.Duration
	logger   *zap.Logger
}

// NewRosterWatcher watches path. onImport is called with every roster that imported cleanly.
func NewRosterWatcher(path string, state *StateService, onImport func(models.Roster), logger *zap.Logger) *RosterWatcher {
	return &RosterWatcher{
		path:     filepath.Clean(path),
		state:    state,
		onImport: onImport,
		debounce: 500 * time.Millisecond, // spreadsheet apps write in several steps
		logger:   logger,
	}
}

// Run blocks until ctx is done. The parent directory is watched so that
// editors replacing the file are noticed too.
func (rw *RosterWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create roster watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(rw.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", rw.path, err)
	}
	rw.logger.Info("watching roster workbook", zap.String("path", rw.path))

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != rw.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				pending = time.After(rw.debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			rw.logger.Warn("roster watcher error", zap.Error(err))

		case <-pending:
			pending = nil
			rw.reload(ctx)
		}
	}
}

func (rw *RosterWatcher) reload(ctx context.Context) {
	f, err := os.Open(rw.path)
	if err != nil {
		rw.logger.Warn("failed to open roster workbook", zap.String("path", rw.path), zap.Error(err))
		return
	}
	defer f.Close()

	roster, _, err := rw.state.ImportRosterFromExcel(ctx, f)
	if err != nil {
		rw.logger.Warn("failed to re-import roster workbook", zap.String("path", rw.path), zap.Error(err))
		return
	}
	if rw.onImport != nil {
		rw.onImport(roster)
	}
}
