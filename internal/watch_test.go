package internal

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatchAndRunOnChange(t *testing.T) {
	dir := t.TempDir()
	exportFile := filepath.Join(dir, "graph.json")
	if err := os.WriteFile(exportFile, []byte(`{"blocks":[]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	runs := 0

	done := make(chan error, 1)
	go func() {
		done <- watchAndRun(ctx, exportFile, logger, func(context.Context) error {
			mu.Lock()
			runs++
			mu.Unlock()
			return nil
		})
	}()

	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(exportFile, []byte(`{"blocks":[],"version":1}`), 0o644); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return runs >= 1
	}, "change did not trigger a run")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("watchAndRun: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("watcher did not stop on cancel")
	}
}

func TestWatchAndRunIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	exportFile := filepath.Join(dir, "graph.json")
	if err := os.WriteFile(exportFile, []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	runs := 0
	go func() {
		_ = watchAndRun(ctx, exportFile, logger, func(context.Context) error {
			mu.Lock()
			runs++
			mu.Unlock()
			return nil
		})
	}()

	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(watchDebounce + 300*time.Millisecond)

	mu.Lock()
	got := runs
	mu.Unlock()
	if got != 0 {
		t.Errorf("runs = %d, want 0 for unrelated file", got)
	}
}
