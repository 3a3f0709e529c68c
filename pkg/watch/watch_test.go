package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherRun(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Src"), 0o755))

	w := New(func(path string) bool { return strings.HasSuffix(path, ".pa.yaml") }, zerolog.Nop())
	w.Debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, dir, func(context.Context) { calls.Add(1) })
	}()

	target := filepath.Join(dir, "Src", "Screen1.pa.yaml")
	assert.Eventually(t, func() bool {
		if calls.Load() > 0 {
			return true
		}
		_ = os.WriteFile(target, []byte("Screens: {}\n"), 0o644)
		return false
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcherRun_MissingRoot(t *testing.T) {
	w := New(nil, zerolog.Nop())
	err := w.Run(context.Background(), filepath.Join(t.TempDir(), "missing"), func(context.Context) {})
	assert.Error(t, err)
}

func TestWatcherRun_CallbacksDoNotOverlap(t *testing.T) {
	dir := t.TempDir()

	w := New(func(path string) bool { return strings.HasSuffix(path, ".pa.yaml") }, zerolog.Nop())
	w.Debounce = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	var calls, inFlight, maxInFlight atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, dir, func(context.Context) {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				m := maxInFlight.Load()
				if n <= m || maxInFlight.CompareAndSwap(m, n) {
					break
				}
			}
			calls.Add(1)
			time.Sleep(30 * time.Millisecond)
		})
	}()

	target := filepath.Join(dir, "App.pa.yaml")
	assert.Eventually(t, func() bool {
		_ = os.WriteFile(target, []byte("App: {}\n"), 0o644)
		return calls.Load() >= 3
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}

	assert.Equal(t, int32(1), maxInFlight.Load())
	assert.Equal(t, int32(0), inFlight.Load())
	after := calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, calls.Load())
}
