package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"report-composer-go/models"
)

func TestRosterWatcherReimportsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roster.xlsx")
	s := NewStateService(NewMemoryBackend(), zap.NewNop())

	imported := make(chan models.Roster, 4)
	rw := NewRosterWatcher(path, s, func(r models.Roster) { imported <- r }, zap.NewNop())
	rw.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rw.Run(ctx) }()
	defer func() {
		cancel()
		assert.NoError(t, <-done)
	}()

	// Give the watcher a moment to register the directory.
	time.Sleep(100 * time.Millisecond)

	book := rosterWorkbook(t, [][]any{
		{"반", "이름", "학년"},
		{"중3 정규반", "강도윤", "중3"},
	})
	require.NoError(t, os.WriteFile(path, book.Bytes(), 0o644))

	select {
	case r := <-imported:
		assert.Equal(t, "강도윤", r.Refs()[0].Name)
	case <-time.After(5 * time.Second):
		t.Fatal("roster was not re-imported")
	}

	stored, ok := s.LoadRoster(context.Background())
	require.True(t, ok)
	assert.Equal(t, "중3 정규반", stored[0].Name)
}

func TestRosterWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewStateService(NewMemoryBackend(), zap.NewNop())

	imported := make(chan models.Roster, 1)
	rw := NewRosterWatcher(filepath.Join(dir, "roster.xlsx"), s, func(r models.Roster) { imported <- r }, zap.NewNop())
	rw.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rw.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	select {
	case <-imported:
		t.Fatal("unrelated file triggered an import")
	case <-time.After(300 * time.Millisecond):
	}
	cancel()
	assert.NoError(t, <-done)
}
