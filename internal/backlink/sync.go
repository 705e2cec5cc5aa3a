// Package backlink keeps a note's header `links` field equal to the set
// of UIDs its body resolves to, in per-note, bulk, and deletion-cleanup
// modes.
package backlink

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/RamXX/memory-mcp/internal/note"
	"github.com/RamXX/memory-mcp/internal/obslog"
	"github.com/RamXX/memory-mcp/internal/vaultfs"
	"github.com/RamXX/memory-mcp/internal/watcher"
)

// EventType distinguishes the two kinds of BacklinkSync event.
type EventType string

const (
	EventUpdate EventType = "update"
	EventRemove EventType = "remove"
)

// Event reports a change the synchronizer made, for the index to react to.
type Event struct {
	Type     EventType
	Target   string
	Affected []string
}

// Sink receives synchronizer events.
type Sink interface {
	OnBacklinkSync(Event)
}

// Config configures a Syncer.
type Config struct {
	Repo          *note.Repository
	BatchSize     int
	Concurrency   int
	DebounceDelay time.Duration
	Logger        obslog.Logger
}

// Syncer is the backlink synchronizer.
type Syncer struct {
	repo        *note.Repository
	batchSize   int
	concurrency int
	debounce    time.Duration
	log         obslog.Logger

	mu      sync.Mutex
	pending map[string]bool

	sinksMu sync.Mutex
	sinks   []Sink
}

// New builds a Syncer, defaulting batch size to 10 and concurrency to 5.
func New(cfg Config) *Syncer {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 10
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	debounce := cfg.DebounceDelay
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Syncer{
		repo:        cfg.Repo,
		batchSize:   batch,
		concurrency: concurrency,
		debounce:    debounce,
		log:         cfg.Logger,
		pending:     map[string]bool{},
	}
}

// Subscribe registers s to receive synchronizer events.
func (s *Syncer) Subscribe(sink Sink) {
	s.sinksMu.Lock()
	defer s.sinksMu.Unlock()
	s.sinks = append(s.sinks, sink)
}

func (s *Syncer) notify(ev Event) {
	s.sinksMu.Lock()
	sinks := append([]Sink(nil), s.sinks...)
	s.sinksMu.Unlock()
	for _, sink := range sinks {
		sink.OnBacklinkSync(ev)
	}
}

// Sync reconciles a single note's header links against its body, writing
// back only when the resolved set differs from what the header currently
// holds.
func (s *Syncer) Sync(uid string) error {
	n, ok, err := s.repo.FindByUID(uid)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	outbound, _, _, err := s.repo.AnalyzeLinks(n)
	if err != nil {
		return err
	}

	if sameSet(outbound, n.Header.Links) {
		return nil
	}

	n.Header.Links = outbound
	if _, err := s.repo.Save(n, note.SaveOptions{Atomic: true}); err != nil {
		return err
	}
	s.notify(Event{Type: EventUpdate, Target: n.Header.ID, Affected: outbound})
	return nil
}

// BulkRebuild reconciles every note in the vault, in fixed-size batches
// with bounded concurrency. Per-file failures are logged and skipped; the
// batch as a whole never aborts on one note's error.
func (s *Syncer) BulkRebuild(ctx context.Context) error {
	paths, err := vaultfs.ListMarkdown(s.repo.VaultRoot, vaultfs.ListOptions{Recursive: true})
	if err != nil {
		return err
	}

	for start := 0; start < len(paths); start += s.batchSize {
		end := start + s.batchSize
		if end > len(paths) {
			end = len(paths)
		}
		batch := paths[start:end]

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.concurrency)
		for _, p := range batch {
			p := p
			g.Go(func() error {
				select {
				case <-gctx.Done():
					return nil
				default:
				}
				n, err := s.repo.LoadLenient(p)
				if err != nil {
					s.log.Warn("bulk rebuild: failed to load note", "path", p, "error", err)
					return nil
				}
				if err := s.Sync(n.Header.ID); err != nil {
					s.log.Warn("bulk rebuild: failed to sync note", "uid", n.Header.ID, "error", err)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// Cleanup removes deletedUID from every note's header `links` that
// contains it, and emits a single remove event naming every note it
// touched.
func (s *Syncer) Cleanup(deletedUID string) error {
	paths, err := vaultfs.ListMarkdown(s.repo.VaultRoot, vaultfs.ListOptions{Recursive: true})
	if err != nil {
		return err
	}

	var affected []string
	for _, p := range paths {
		n, err := s.repo.LoadLenient(p)
		if err != nil {
			s.log.Warn("cleanup: failed to load note", "path", p, "error", err)
			continue
		}
		if !contains(n.Header.Links, deletedUID) {
			continue
		}
		n.Header.Links = remove(n.Header.Links, deletedUID)
		if _, err := s.repo.Save(n, note.SaveOptions{Atomic: true}); err != nil {
			s.log.Warn("cleanup: failed to save note", "uid", n.Header.ID, "error", err)
			continue
		}
		affected = append(affected, n.Header.ID)
	}

	if len(affected) > 0 {
		s.notify(Event{Type: EventRemove, Target: deletedUID, Affected: affected})
	}
	return nil
}

// OnVaultEvent implements watcher.Subscriber: add/change events enqueue
// the note's UID for a debounced flush. Unlink events are ignored here,
// since the deleted note's UID cannot be recovered from its path; Cleanup
// for a deleted note is left to the index subscriber.
func (s *Syncer) OnVaultEvent(ev watcher.Event) {
	switch ev.Kind {
	case watcher.EventAdd, watcher.EventChange:
		if ev.Note == nil {
			return
		}
		s.mu.Lock()
		s.pending[ev.Note.Header.ID] = true
		s.mu.Unlock()
	case watcher.EventUnlink:
		// The deleted note's UID is unknown from the path alone; the
		// index subscriber is responsible for resolving and calling
		// Cleanup directly when it observes the unlink.
	}
}

// RunDebouncer flushes the pending set on a fixed interval until ctx is
// cancelled, then drains whatever is still pending with one last flush
// before returning. It is meant to run as its own goroutine alongside the
// watcher's event loop.
func (s *Syncer) RunDebouncer(ctx context.Context) {
	ticker := time.NewTicker(s.debounce)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.flushPending()
			return
		case <-ticker.C:
			s.flushPending()
		}
	}
}

func (s *Syncer) flushPending() {
	s.mu.Lock()
	uids := make([]string, 0, len(s.pending))
	for uid := range s.pending {
		uids = append(uids, uid)
	}
	s.pending = map[string]bool{}
	s.mu.Unlock()

	for _, uid := range uids {
		if err := s.Sync(uid); err != nil {
			s.log.Warn("debounced sync failed", "uid", uid, "error", err)
		}
	}
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func remove(set []string, v string) []string {
	out := make([]string, 0, len(set))
	for _, s := range set {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}
