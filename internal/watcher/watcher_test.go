package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nxerrors "github.com/MerijnSC/RAG-project/internal/errors"
)

func TestOperation_String(t *testing.T) {
	tests := []struct {
		op   Operation
		want string
	}{
		{OpCreate, "CREATE"},
		{OpModify, "MODIFY"},
		{OpDelete, "DELETE"},
		{OpRename, "RENAME"},
		{Operation(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.op.String())
		})
	}
}

func TestOptions_WithDefaults(t *testing.T) {
	opts := Options{DebounceWindow: time.Second}.WithDefaults()

	assert.Equal(t, time.Second, opts.DebounceWindow)
	assert.Equal(t, 5*time.Second, opts.PollInterval)
	assert.Equal(t, 100, opts.EventBufferSize)
}

func TestOptions_Accept(t *testing.T) {
	opts := Options{Match: func(rel string) bool { return filepath.Ext(rel) == ".md" }}

	assert.True(t, opts.accept("a.md"))
	assert.True(t, opts.accept("sub/b.md"))
	assert.False(t, opts.accept("a.pdf"))
	assert.False(t, opts.accept(".partial.md"))
	assert.False(t, opts.accept(".tmp/c.md"))
	assert.False(t, opts.accept("."))
}

// ============================================================================
// TS01: Poller
// ============================================================================

type recorder struct {
	mu     sync.Mutex
	events []FileEvent
}

func (r *recorder) add(e FileEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) ops() map[string]Operation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Operation)
	for _, e := range r.events {
		out[e.Path] = e.Operation
	}
	return out
}

func TestPoller_DetectsChanges(t *testing.T) {
	// Given: a baseline with one file
	dir := t.TempDir()
	keep := filepath.Join(dir, "keep.txt")
	gone := filepath.Join(dir, "gone.txt")
	require.NoError(t, os.WriteFile(keep, []byte("v1"), 0644))
	require.NoError(t, os.WriteFile(gone, []byte("x"), 0644))

	rec := &recorder{}
	p := NewPoller(time.Hour, nil, rec.add)
	p.root = dir
	state, err := p.snapshot()
	require.NoError(t, err)
	p.state = state

	// When: one file changes, one is removed, one is added
	require.NoError(t, os.WriteFile(keep, []byte("version two"), 0644))
	require.NoError(t, os.Remove(gone))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "new.md"), []byte("n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.md"), []byte("h"), 0644))
	require.NoError(t, p.Poll())

	// Then: each difference is reported once and hidden files are ignored
	assert.Equal(t, map[string]Operation{
		"keep.txt":   OpModify,
		"gone.txt":   OpDelete,
		"sub/new.md": OpCreate,
	}, rec.ops())
}

// ============================================================================
// TS02: Watcher
// ============================================================================

func waitBatch(t *testing.T, w *Watcher, timeout time.Duration) []FileEvent {
	t.Helper()
	select {
	case batch, ok := <-w.Batches():
		require.True(t, ok, "batches closed")
		return batch
	case <-time.After(timeout):
		t.Fatal("timeout waiting for batch")
		return nil
	}
}

func TestWatcher_NotifyCreate(t *testing.T) {
	// Given: a running fsnotify watcher
	dir := t.TempDir()
	w, err := New(Options{DebounceWindow: 50 * time.Millisecond})
	require.NoError(t, err)
	if w.Mode() != "fsnotify" {
		t.Skip("fsnotify unavailable")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Start(ctx, dir) }()
	time.Sleep(100 * time.Millisecond)

	// When: a document is dropped in
	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.md"), []byte("Revenue grew."), 0644))

	// Then: one batch reports it as created
	batch := waitBatch(t, w, 2*time.Second)
	require.Len(t, batch, 1)
	assert.Equal(t, "report.md", batch[0].Path)
	assert.Equal(t, OpCreate, batch[0].Operation)
}

func TestWatcher_NotifyNewDirectoryContents(t *testing.T) {
	dir := t.TempDir()
	w, err := New(Options{DebounceWindow: 100 * time.Millisecond})
	require.NoError(t, err)
	if w.Mode() != "fsnotify" {
		t.Skip("fsnotify unavailable")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Start(ctx, dir) }()
	time.Sleep(100 * time.Millisecond)

	// a directory moved in with a file already inside
	staging := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(staging, "batch"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(staging, "batch", "a.txt"), []byte("a"), 0644))
	require.NoError(t, os.Rename(filepath.Join(staging, "batch"), filepath.Join(dir, "batch")))

	batch := waitBatch(t, w, 2*time.Second)
	var paths []string
	for _, e := range batch {
		paths = append(paths, e.Path)
	}
	assert.Contains(t, paths, "batch/a.txt")
}

func TestWatcher_PollingCreate(t *testing.T) {
	// Given: a polling watcher
	dir := t.TempDir()
	w, err := New(Options{ForcePolling: true, PollInterval: 30 * time.Millisecond, DebounceWindow: 30 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, "polling", w.Mode())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Start(ctx, dir) }()
	time.Sleep(60 * time.Millisecond)

	// When: a file appears
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0644))

	// Then: it is reported
	batch := waitBatch(t, w, 2*time.Second)
	require.Len(t, batch, 1)
	assert.Equal(t, "a.txt", batch[0].Path)
}

func TestWatcher_StartMissingDir(t *testing.T) {
	w, err := New(Options{ForcePolling: true})
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	err = w.Start(context.Background(), filepath.Join(t.TempDir(), "missing"))

	assert.Error(t, err)
}

func TestWatcher_StopClosesChannels(t *testing.T) {
	w, err := New(DefaultOptions())
	require.NoError(t, err)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	_, ok := <-w.Batches()
	assert.False(t, ok)
	_, ok = <-w.Errors()
	assert.False(t, ok)
	assert.Zero(t, w.DroppedBatches())
}

// ============================================================================
// TS03: Inbox
// ============================================================================

type handled struct {
	mu    sync.Mutex
	calls map[string]bool
}

func (h *handled) handler(fail error) Handler {
	return func(ctx context.Context, path string, overwrite bool) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.calls[filepath.Base(path)] = overwrite
		return fail
	}
}

func (h *handled) names() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for k := range h.calls {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func TestInbox_HandlesDroppedFiles(t *testing.T) {
	// Given: an inbox over a polling watcher
	dir := t.TempDir()
	w, err := New(Options{ForcePolling: true, PollInterval: 20 * time.Millisecond, DebounceWindow: 20 * time.Millisecond})
	require.NoError(t, err)
	h := &handled{calls: make(map[string]bool)}
	inbox := NewInbox(w, h.handler(errors.New("not a real failure")), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- inbox.Run(ctx, dir) }()
	time.Sleep(60 * time.Millisecond)

	// When: two files are dropped in
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.md"), []byte("b"), 0644))

	// Then: both are handled without overwrite, and failures do not stop the inbox
	assert.Eventually(t, func() bool { return len(h.names()) == 2 }, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{"a.txt", "b.md"}, h.names())
	assert.False(t, h.calls["a.txt"])

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("inbox did not stop")
	}
}

func TestInbox_FatalErrorStops(t *testing.T) {
	dir := t.TempDir()
	w, err := New(Options{ForcePolling: true, PollInterval: 20 * time.Millisecond, DebounceWindow: 20 * time.Millisecond})
	require.NoError(t, err)
	fatal := nxerrors.Newf(nxerrors.ErrCodeDimensionMismatch, "dims differ")
	inbox := NewInbox(w, (&handled{calls: make(map[string]bool)}).handler(fatal), nil)

	done := make(chan error, 1)
	go func() { done <- inbox.Run(context.Background(), dir) }()
	time.Sleep(60 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0644))

	select {
	case err := <-done:
		assert.Equal(t, nxerrors.ErrCodeDimensionMismatch, nxerrors.GetCode(err))
	case <-time.After(2 * time.Second):
		t.Fatal("inbox did not stop on fatal error")
	}
}
