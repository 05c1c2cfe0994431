package protocol

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcher_ReloadsRegistryOnNewProtocol(t *testing.T) {
	ws := t.TempDir()
	writeProtocolFile(t, ws, "Protocol_First.md", "# First\n## Phase 1: Go\n- step\n")

	reg := NewRegistry(NewDirSource(ws))
	require.Len(t, reg.List(context.Background()), 1)

	w, err := NewWatcher(reg, ws)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	writeProtocolFile(t, ws, "Protocol_Second.md", "# Second\n## Phase 1: Go\n- step\n")

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(reg.List(context.Background())) == 2 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("registry never picked up the new protocol: %v", reg.List(context.Background()))
}

func TestWatcher_IgnoresUnrelatedFiles(t *testing.T) {
	ws := t.TempDir()
	writeProtocolFile(t, ws, "Protocol_Only.md", "# Only\n")

	reg := NewRegistry(NewDirSource(ws))
	p, err := reg.Resolve(context.Background(), "Only")
	require.NoError(t, err)

	w, err := NewWatcher(reg, ws)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(ws, "notes.md"), []byte("scratch"), 0644))
	time.Sleep(300 * time.Millisecond)

	// Cache untouched: same instance comes back
	again, err := reg.Resolve(context.Background(), "Only")
	require.NoError(t, err)
	require.Same(t, p, again)
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	reg := NewRegistry(NewStaticSource(nil))
	w, err := NewWatcher(reg, t.TempDir())
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	w.Stop()
	w.Stop() // second call is a no-op
}
