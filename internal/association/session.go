// Package association implements the association hook: a per-session
// store of recently referenced note UIDs, plus a reranking callback that
// blends hybrid search scores with session affinity.
package association

import (
	"context"
	"sync"

	"github.com/RamXX/memory-mcp/internal/errs"
	"github.com/RamXX/memory-mcp/internal/graph"
	"github.com/RamXX/memory-mcp/internal/search"
)

// DefaultCap is the default number of recent UIDs retained per session.
const DefaultCap = 50

// DefaultLimit and DefaultStrength are Associate's defaults when its
// options are zero-valued.
const (
	DefaultLimit    = 5
	DefaultStrength = 0.7
)

// session is one session's bounded recency ring. Newest UIDs are appended
// to the end; once the ring is full the oldest is dropped.
type session struct {
	uids []string
}

func (s *session) record(uid string, cap int) {
	for i, existing := range s.uids {
		if existing == uid {
			s.uids = append(s.uids[:i], s.uids[i+1:]...)
			break
		}
	}
	s.uids = append(s.uids, uid)
	if len(s.uids) > cap {
		s.uids = s.uids[len(s.uids)-cap:]
	}
}

// AssociateOptions controls Associate.
type AssociateOptions struct {
	Limit    int
	Strength float64
}

// AssociatedResult is one reranked candidate from Associate.
type AssociatedResult struct {
	search.Result
	AffinityScore float64
	Blended       float64
}

// Store holds every active session, guarded by a single mutex; session
// counts are small enough that per-session locking buys nothing.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*session
	cap      int
	engine   *search.Engine
}

// New builds a Store with the given per-session UID cap (DefaultCap when
// cap <= 0) over engine, used by Associate for seed candidates and
// neighborhood lookups.
func New(engine *search.Engine, cap int) *Store {
	if cap <= 0 {
		cap = DefaultCap
	}
	return &Store{
		sessions: map[string]*session{},
		cap:      cap,
		engine:   engine,
	}
}

// Get returns the ordered recent UIDs for sid, oldest first. A missing
// session is NotFound.
func (s *Store) Get(sid string) ([]string, error) {
	const op = "association.Store.Get"

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sid]
	if !ok {
		return nil, errs.New(errs.NotFound, op, "unknown session: "+sid)
	}
	out := make([]string, len(sess.uids))
	copy(out, sess.uids)
	return out, nil
}

// Context returns sid's recent UIDs, creating the session if it does not
// yet exist rather than failing — the live-tracking counterpart to the
// stricter ReflectSession.
func (s *Store) Context(sid string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sid]
	if !ok {
		sess = &session{}
		s.sessions[sid] = sess
	}
	out := make([]string, len(sess.uids))
	copy(out, sess.uids)
	return out
}

// Reset discards sid's session, if any. Resetting a missing session is a
// no-op success.
func (s *Store) Reset(sid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sid)
}

// Record appends uid to sid's recency ring, creating the session if it
// does not yet exist.
func (s *Store) Record(sid, uid string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sid]
	if !ok {
		sess = &session{}
		s.sessions[sid] = sess
	}
	sess.record(uid, s.cap)
}

// ReflectSession returns sid's recent UIDs; missing sessions fail
// InvalidRequest rather than NotFound, matching the read-only reflection
// tool's contract of refusing to silently create session state.
func (s *Store) ReflectSession(sid string) ([]string, error) {
	const op = "association.Store.ReflectSession"

	uids, err := s.Get(sid)
	if err != nil {
		return nil, errs.New(errs.InvalidRequest, op, "no such session: "+sid)
	}
	return uids, nil
}

// Associate runs query through the engine for seed candidates, reranks
// them by session affinity, and records every returned UID into sid's
// recency ring. A missing session is implicitly created empty, so a
// session's first call has zero affinity contribution.
func (s *Store) Associate(ctx context.Context, sid, query string, opts AssociateOptions) ([]AssociatedResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	strength := opts.Strength
	if strength <= 0 {
		strength = DefaultStrength
	}

	s.mu.Lock()
	sess, ok := s.sessions[sid]
	if !ok {
		sess = &session{}
		s.sessions[sid] = sess
	}
	recent := make([]string, len(sess.uids))
	copy(recent, sess.uids)
	s.mu.Unlock()

	candidates, _, err := s.engine.Search(ctx, query, search.SearchOptions{Limit: limit * 3})
	if err != nil {
		return nil, err
	}

	recentSet := make(map[string]bool, len(recent))
	for _, uid := range recent {
		recentSet[uid] = true
	}

	results := make([]AssociatedResult, 0, len(candidates))
	for _, c := range candidates {
		affinity := 0.0
		if len(recentSet) > 0 {
			neighbors, err := s.engine.Connected(ctx, c.UID, 1, 100, graph.DirBoth)
			if err != nil {
				return nil, err
			}
			hits := 0
			for _, n := range neighbors {
				if recentSet[n.UID] {
					hits++
				}
			}
			affinity = float64(hits) / float64(len(recentSet))
			if affinity > 1.0 {
				affinity = 1.0
			}
		}
		blended := (1-strength)*c.Combined + strength*affinity
		results = append(results, AssociatedResult{Result: c, AffinityScore: affinity, Blended: blended})
	}

	stableSortByBlendedDesc(results)
	if len(results) > limit {
		results = results[:limit]
	}

	s.mu.Lock()
	for _, r := range results {
		sess.record(r.UID, s.cap)
	}
	s.mu.Unlock()

	return results, nil
}

func stableSortByBlendedDesc(results []AssociatedResult) {
	for i := 1; i < len(results); i++ {
		j := i
		for j > 0 && results[j-1].Blended < results[j].Blended {
			results[j-1], results[j] = results[j], results[j-1]
			j--
		}
	}
}
