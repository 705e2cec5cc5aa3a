// Package watcher implements a recursive fsnotify watch over the vault
// root, debounced into coalesced add/change/unlink events, with an
// optional VCS snapshot hook run after each flushed batch.
package watcher

import (
	"context"
	"io/fs"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/RamXX/memory-mcp/internal/note"
	"github.com/RamXX/memory-mcp/internal/obslog"
)

// EventKind is the kind of change a watcher event reports.
type EventKind string

const (
	EventAdd    EventKind = "add"
	EventChange EventKind = "change"
	EventUnlink EventKind = "unlink"
)

// Event is one coalesced filesystem change. Note is populated (via lenient
// parsing) for Add and Change; it is nil for Unlink.
type Event struct {
	Kind EventKind
	Path string
	Note *note.Note
}

// Subscriber receives flushed watcher events. Backlink sync and the index
// both implement this to stay decoupled from the watcher's internals.
type Subscriber interface {
	OnVaultEvent(Event)
}

// VCSHook runs a snapshot command after a batch of events flushes. Command
// failures are logged and do not block further event emission.
type VCSHook struct {
	Dir         string
	MessageTmpl string
	MaxRetries  int
}

// Config configures a Watcher.
type Config struct {
	Root          string
	DebounceDelay time.Duration
	Repo          *note.Repository
	VCS           *VCSHook
	Logger        obslog.Logger
}

// Watcher recursively watches Root for Markdown changes and flushes
// debounced events to its subscribers.
type Watcher struct {
	root     string
	debounce time.Duration
	fsw      *fsnotify.Watcher
	repo     *note.Repository
	vcs      *VCSHook
	log      obslog.Logger

	mu      sync.Mutex
	pending map[string]time.Time

	subsMu sync.Mutex
	subs   []Subscriber

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New creates a Watcher rooted at cfg.Root. The caller must call Run to
// start the event loop.
func New(cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	debounce := cfg.DebounceDelay
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{
		root:     cfg.Root,
		debounce: debounce,
		fsw:      fsw,
		repo:     cfg.Repo,
		vcs:      cfg.VCS,
		log:      cfg.Logger,
		pending:  map[string]time.Time{},
		stopCh:   make(chan struct{}),
	}, nil
}

// Subscribe registers s to receive flushed events.
func (w *Watcher) Subscribe(s Subscriber) {
	w.subsMu.Lock()
	defer w.subsMu.Unlock()
	w.subs = append(w.subs, s)
}

// Run starts the recursive watch and blocks until ctx is cancelled or Stop
// is called.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.addDirRecursive(w.root); err != nil {
		return err
	}

	go w.flushLoop(ctx)

	for {
		select {
		case <-ctx.Done():
			w.fsw.Close()
			return ctx.Err()
		case <-w.stopCh:
			w.fsw.Close()
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleFsEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher error", "error", err)
		}
	}
}

// Stop terminates the watch loop.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

func (w *Watcher) addDirRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && shouldExclude(path) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// handleFsEvent filters raw fsnotify events down to Markdown files outside
// excluded directories, then enqueues a debounced pending entry.
func (w *Watcher) handleFsEvent(ev fsnotify.Event) {
	if shouldExclude(ev.Name) {
		return
	}
	if !strings.HasSuffix(ev.Name, ".md") {
		return
	}

	w.mu.Lock()
	w.pending[ev.Name] = time.Now()
	w.mu.Unlock()
}

func shouldExclude(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == "" {
			continue
		}
		if strings.HasPrefix(part, ".") || part == "node_modules" {
			return true
		}
	}
	base := filepath.Base(path)
	return strings.HasSuffix(base, ".tmp") || strings.Contains(base, ".tmp.")
}

func (w *Watcher) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.flushPending(ctx)
		}
	}
}

func (w *Watcher) flushPending(ctx context.Context) {
	now := time.Now()

	w.mu.Lock()
	var ready []string
	for path, queuedAt := range w.pending {
		if now.Sub(queuedAt) >= w.debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	if len(ready) == 0 {
		return
	}

	for _, path := range ready {
		w.emit(w.buildEvent(path))
	}

	if w.vcs != nil {
		w.runVCSHook(ctx, ready)
	}
}

func (w *Watcher) buildEvent(path string) Event {
	n, err := w.repo.LoadLenient(path)
	if err != nil {
		return Event{Kind: EventUnlink, Path: path}
	}
	kind := EventChange
	if n.Header.Created.Equal(n.Header.Updated) {
		kind = EventAdd
	}
	nc := n
	return Event{Kind: kind, Path: path, Note: &nc}
}

func (w *Watcher) emit(ev Event) {
	w.subsMu.Lock()
	subs := append([]Subscriber(nil), w.subs...)
	w.subsMu.Unlock()

	for _, s := range subs {
		s.OnVaultEvent(ev)
	}
}

// runVCSHook stages and commits the changed paths, retrying up to
// MaxRetries times with linear backoff. Failures are logged only; they
// never block further event emission.
func (w *Watcher) runVCSHook(ctx context.Context, paths []string) {
	msg := strings.ReplaceAll(w.vcs.MessageTmpl, "{count}", strconv.Itoa(len(paths)))

	var lastErr error
	for attempt := 0; attempt <= w.vcs.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * 200 * time.Millisecond)
		}
		if err := w.runGitSnapshot(ctx, paths, msg); err != nil {
			lastErr = err
			continue
		}
		return
	}
	if lastErr != nil {
		w.log.Warn("vcs snapshot hook failed", "error", lastErr, "attempts", w.vcs.MaxRetries+1)
	}
}

func (w *Watcher) runGitSnapshot(ctx context.Context, paths []string, message string) error {
	addArgs := append([]string{"add"}, paths...)
	add := exec.CommandContext(ctx, "git", addArgs...)
	add.Dir = w.vcs.Dir
	if err := add.Run(); err != nil {
		return err
	}

	commit := exec.CommandContext(ctx, "git", "commit", "-m", message, "--allow-empty-message", "--quiet")
	commit.Dir = w.vcs.Dir
	return commit.Run()
}
