package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"
)

// Poller detects changes by rescanning the tree every interval and
// comparing size and modification time.
type Poller struct {
	interval time.Duration
	accept   func(relPath string) bool
	emit     func(FileEvent)

	mu    sync.Mutex
	state map[string]fileSnapshot
	root  string
}

type fileSnapshot struct {
	modTime time.Time
	size    int64
}

// NewPoller creates a poller that reports accepted files to emit.
func NewPoller(interval time.Duration, accept func(string) bool, emit func(FileEvent)) *Poller {
	if accept == nil {
		accept = func(string) bool { return true }
	}
	return &Poller{
		interval: interval,
		accept:   accept,
		emit:     emit,
		state:    make(map[string]fileSnapshot),
	}
}

// Start records a baseline and then polls until ctx is done.
func (p *Poller) Start(ctx context.Context, root string) error {
	absPath, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}

	p.mu.Lock()
	p.root = absPath
	state, err := p.snapshot()
	if err == nil {
		p.state = state
	}
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("perform initial scan: %w", err)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.Poll(); err != nil {
				return err
			}
		}
	}
}

// Poll runs one scan and emits the differences from the previous one.
func (p *Poller) Poll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	current, err := p.snapshot()
	if err != nil {
		return fmt.Errorf("walk directory for changes: %w", err)
	}

	now := time.Now()
	for rel, snap := range current {
		prev, ok := p.state[rel]
		switch {
		case !ok:
			p.emit(FileEvent{Path: rel, Operation: OpCreate, Timestamp: now})
		case prev != snap:
			p.emit(FileEvent{Path: rel, Operation: OpModify, Timestamp: now})
		}
	}
	for rel := range p.state {
		if _, ok := current[rel]; !ok {
			p.emit(FileEvent{Path: rel, Operation: OpDelete, Timestamp: now})
		}
	}

	p.state = current
	return nil
}

// snapshot walks the root. Caller holds mu.
func (p *Poller) snapshot() (map[string]fileSnapshot, error) {
	state := make(map[string]fileSnapshot)
	err := filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == p.root {
				return err
			}
			return nil
		}
		rel, err := filepath.Rel(p.root, path)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if hidden(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if hidden(rel) || !d.Type().IsRegular() || !p.accept(rel) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		state[rel] = fileSnapshot{modTime: info.ModTime(), size: info.Size()}
		return nil
	})
	return state, err
}
