// Package graph implements the directed link graph: a database-backed
// edge table supporting backlinks, outbound links, bounded
// breadth-first traversal, and orphan detection. BFS keeps its visited
// set index-based rather than walking in-memory pointers, so cycles and
// back-edges never cause a revisit.
package graph

import (
	"container/list"
	"context"
	"database/sql"
	"strings"

	"github.com/RamXX/memory-mcp/internal/errs"
)

// Direction constrains Connected's traversal.
type Direction string

const (
	DirOutgoing Direction = "outgoing"
	DirIncoming Direction = "incoming"
	DirBoth     Direction = "both"
)

// Edge kinds, per the link relation's enum: a resolved vault note, a raw
// URL the body references, or a tag the source note carries.
const (
	KindInternal = "internal"
	KindExternal = "external"
	KindTag      = "tag"
)

// LinkSet groups a note's outgoing edge targets by kind for UpdateLinks:
// Internal targets are UIDs already resolved against the vault, External
// targets are raw URLs found in the body, and Tag targets are the note's
// own declared tags.
type LinkSet struct {
	Internal []string
	External []string
	Tag      []string
}

// Edge is one row of the link table, joined to confirm the source still
// exists.
type Edge struct {
	SourceUID  string
	TargetUID  string
	Kind       string
	Strength   int
	LastSeenAt string
}

// ConnectedNode is one result of a bounded BFS traversal.
type ConnectedNode struct {
	UID   string
	Score float64
	Depth int
}

// Stats reports graph-wide totals.
type Stats struct {
	TotalEdges       int64
	TotalSourceNodes int64
	TopTargets       []TargetCount
}

// TargetCount names a target UID and how many inbound edges point to it.
type TargetCount struct {
	UID   string
	Count int64
}

// Graph operates on the links table the database manager bootstraps.
type Graph struct {
	conn *sql.DB
}

// New wraps conn, the shared connection the database manager owns.
func New(conn *sql.DB) *Graph {
	return &Graph{conn: conn}
}

// UpdateLinks replaces every outgoing edge from sourceUID with one row per
// distinct (target, kind) named in targets (excluding internal self-links),
// in a single transaction. strengthOf gives an internal or external
// target's occurrence count in the body, capped at 10; tag edges always
// carry strength 1 since a tag is declared once, not mentioned.
func (g *Graph) UpdateLinks(ctx context.Context, sourceUID string, targets LinkSet, strengthOf func(targetUID string) int) error {
	const op = "graph.Graph.UpdateLinks"

	tx, err := g.conn.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(errs.GraphError, op, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM links WHERE source_uid = ?", sourceUID); err != nil {
		return errs.Wrap(errs.GraphError, op, err)
	}

	seen := map[string]bool{}
	insert := func(target, kind string, strength int) error {
		key := kind + "\x00" + target
		if (kind == KindInternal && target == sourceUID) || seen[key] {
			return nil
		}
		seen[key] = true

		if strength > 10 {
			strength = 10
		}
		if strength < 1 {
			strength = 1
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO links(source_uid, target_uid, kind, strength, created_at, last_seen_at)
			 VALUES (?, ?, ?, ?, datetime('now'), datetime('now'))
			 ON CONFLICT(source_uid, target_uid, kind) DO UPDATE SET
			   strength = excluded.strength, last_seen_at = excluded.last_seen_at`,
			sourceUID, target, kind, strength)
		return err
	}

	for _, target := range targets.Internal {
		strength := 1
		if strengthOf != nil {
			strength = strengthOf(target)
		}
		if err := insert(target, KindInternal, strength); err != nil {
			return errs.Wrap(errs.GraphError, op, err)
		}
	}
	for _, target := range targets.External {
		strength := 1
		if strengthOf != nil {
			strength = strengthOf(target)
		}
		if err := insert(target, KindExternal, strength); err != nil {
			return errs.Wrap(errs.GraphError, op, err)
		}
	}
	for _, target := range targets.Tag {
		if err := insert(target, KindTag, 1); err != nil {
			return errs.Wrap(errs.GraphError, op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.GraphError, op, err)
	}
	return nil
}

// RemoveLinks deletes every edge touching uid, in either direction.
func (g *Graph) RemoveLinks(ctx context.Context, uid string) error {
	const op = "graph.Graph.RemoveLinks"
	_, err := g.conn.ExecContext(ctx, "DELETE FROM links WHERE source_uid = ? OR target_uid = ?", uid, uid)
	if err != nil {
		return errs.Wrap(errs.GraphError, op, err)
	}
	return nil
}

// Backlinks returns edges pointing at target, ordered by strength desc
// then recency, joined to notes to ensure the source still exists.
func (g *Graph) Backlinks(ctx context.Context, target string, limit int) ([]Edge, error) {
	const op = "graph.Graph.Backlinks"
	if limit <= 0 {
		limit = 50
	}
	rows, err := g.conn.QueryContext(ctx,
		`SELECT l.source_uid, l.target_uid, l.kind, l.strength, l.last_seen_at
		 FROM links l JOIN notes n ON n.uid = l.source_uid
		 WHERE l.target_uid = ?
		 ORDER BY l.strength DESC, l.last_seen_at DESC
		 LIMIT ?`, target, limit)
	if err != nil {
		return nil, errs.Wrap(errs.GraphError, op, err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// Outbound returns edges originating at source, symmetric to Backlinks.
func (g *Graph) Outbound(ctx context.Context, source string, limit int) ([]Edge, error) {
	const op = "graph.Graph.Outbound"
	if limit <= 0 {
		limit = 50
	}
	rows, err := g.conn.QueryContext(ctx,
		`SELECT l.source_uid, l.target_uid, l.kind, l.strength, l.last_seen_at
		 FROM links l JOIN notes n ON n.uid = l.target_uid
		 WHERE l.source_uid = ?
		 ORDER BY l.strength DESC, l.last_seen_at DESC
		 LIMIT ?`, source, limit)
	if err != nil {
		return nil, errs.Wrap(errs.GraphError, op, err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

func scanEdges(rows *sql.Rows) ([]Edge, error) {
	var out []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.SourceUID, &e.TargetUID, &e.Kind, &e.Strength, &e.LastSeenAt); err != nil {
			return nil, errs.Wrap(errs.GraphError, "graph.scanEdges", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type queueItem struct {
	uid   string
	score float64
	depth int
}

// Connected runs a bounded breadth-first traversal from start: each
// enqueued node scores parent_score * 0.7^depth, starting at 1.0 for the
// start node at depth 0. The visited set (by UID) prevents revisits, so
// cycles terminate naturally. Results are truncated to limit and sorted by
// score descending, ties broken by BFS insertion order.
func (g *Graph) Connected(ctx context.Context, start string, depth int, limit int, direction Direction) ([]ConnectedNode, error) {
	const op = "graph.Graph.Connected"
	if limit <= 0 {
		limit = 100
	}
	if direction == "" {
		direction = DirBoth
	}

	visited := map[string]bool{start: true}
	queue := list.New()
	queue.PushBack(queueItem{uid: start, score: 1.0, depth: 0})

	var results []ConnectedNode
	for queue.Len() > 0 {
		front := queue.Remove(queue.Front()).(queueItem)
		results = append(results, ConnectedNode{UID: front.uid, Score: front.score, Depth: front.depth})

		if front.depth >= depth {
			continue
		}

		neighbors, err := g.neighbors(ctx, front.uid, direction)
		if err != nil {
			return nil, errs.Wrap(errs.GraphError, op, err)
		}
		childScore := front.score * pow07(front.depth + 1)
		for _, n := range neighbors {
			if visited[n] {
				continue
			}
			visited[n] = true
			queue.PushBack(queueItem{uid: n, score: childScore, depth: front.depth + 1})
		}
	}

	stableSortByScoreDesc(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (g *Graph) neighbors(ctx context.Context, uid string, direction Direction) ([]string, error) {
	var query string
	switch direction {
	case DirOutgoing:
		query = "SELECT target_uid FROM links WHERE source_uid = ?"
	case DirIncoming:
		query = "SELECT source_uid FROM links WHERE target_uid = ?"
	default:
		query = "SELECT target_uid FROM links WHERE source_uid = ? UNION SELECT source_uid FROM links WHERE target_uid = ?"
	}

	var rows *sql.Rows
	var err error
	if direction == DirBoth || direction == "" {
		rows, err = g.conn.QueryContext(ctx, query, uid, uid)
	} else {
		rows, err = g.conn.QueryContext(ctx, query, uid)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func pow07(depth int) float64 {
	result := 1.0
	for i := 0; i < depth; i++ {
		result *= 0.7
	}
	return result
}

// stableSortByScoreDesc sorts by score descending while preserving the
// relative order of equal-scored elements (their BFS insertion order).
func stableSortByScoreDesc(nodes []ConnectedNode) {
	for i := 1; i < len(nodes); i++ {
		j := i
		for j > 0 && nodes[j-1].Score < nodes[j].Score {
			nodes[j-1], nodes[j] = nodes[j], nodes[j-1]
			j--
		}
	}
}

// Orphans returns notes with no inbound links, most-recently-updated
// first.
func (g *Graph) Orphans(ctx context.Context, limit int) ([]string, error) {
	const op = "graph.Graph.Orphans"
	if limit <= 0 {
		limit = 50
	}
	rows, err := g.conn.QueryContext(ctx,
		`SELECT uid FROM notes
		 WHERE uid NOT IN (SELECT target_uid FROM links)
		 ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errs.Wrap(errs.GraphError, op, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, errs.Wrap(errs.GraphError, op, err)
		}
		out = append(out, uid)
	}
	return out, rows.Err()
}

// Stats reports total edge count, distinct source count, and the
// most-linked-to targets.
func (g *Graph) Stats(ctx context.Context) (Stats, error) {
	const op = "graph.Graph.Stats"
	var s Stats

	if err := g.conn.QueryRowContext(ctx, "SELECT count(*) FROM links").Scan(&s.TotalEdges); err != nil {
		return Stats{}, errs.Wrap(errs.GraphError, op, err)
	}
	if err := g.conn.QueryRowContext(ctx, "SELECT count(DISTINCT source_uid) FROM links").Scan(&s.TotalSourceNodes); err != nil {
		return Stats{}, errs.Wrap(errs.GraphError, op, err)
	}

	rows, err := g.conn.QueryContext(ctx,
		`SELECT target_uid, count(*) as c FROM links GROUP BY target_uid ORDER BY c DESC LIMIT 10`)
	if err != nil {
		return Stats{}, errs.Wrap(errs.GraphError, op, err)
	}
	defer rows.Close()
	for rows.Next() {
		var tc TargetCount
		if err := rows.Scan(&tc.UID, &tc.Count); err != nil {
			return Stats{}, errs.Wrap(errs.GraphError, op, err)
		}
		s.TopTargets = append(s.TopTargets, tc)
	}
	return s, rows.Err()
}

// CountOccurrences counts case-insensitive, non-overlapping occurrences of
// needle in haystack, used to derive a link's strength from the body.
func CountOccurrences(haystack, needle string) int {
	if needle == "" {
		return 0
	}
	return strings.Count(strings.ToLower(haystack), strings.ToLower(needle))
}
