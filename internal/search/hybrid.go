// Package search implements the hybrid search engine: it composes the
// database manager, full-text index, and link graph into a single
// indexing and query surface that blends textual relevance with link
// centrality.
package search

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/RamXX/memory-mcp/internal/db"
	"github.com/RamXX/memory-mcp/internal/errs"
	"github.com/RamXX/memory-mcp/internal/graph"
	"github.com/RamXX/memory-mcp/internal/index"
	"github.com/RamXX/memory-mcp/internal/note"
)

// NoteInput is the minimal projection of a note this engine needs to
// index it: a database manager column set plus the body it derives the
// FTS content and outbound links from.
type NoteInput struct {
	UID      string
	Title    string
	Body     string
	Category string
	Project  string
	Tags     []string
	Links    []string // header-declared outbound UIDs
	FilePath string
}

// Result is one ranked hit from Search.
type Result struct {
	UID           string
	Title         string
	Category      string
	Project       string
	Tags          []string
	Snippet       string
	FTSScore      float64
	LinkScore     float64
	Combined      float64
	OutboundLinks []string
}

// SearchOptions mirrors index.SearchOptions; it is re-declared here so
// callers depend only on this package.
type SearchOptions struct {
	Category      string
	Project       string
	Tags          []string
	Limit         int
	Offset        int
	SnippetLength int
	HighlightTag  string
}

// Metrics reports timing and result-count telemetry for a search call.
type Metrics struct {
	QueryMs         int64
	ProcessingMs    int64
	TotalMs         int64
	TotalResults    int
	ReturnedResults int
	CacheHit        bool
}

// BatchFailure records one note that failed to index during BatchIndex.
type BatchFailure struct {
	UID   string
	Error string
}

// BatchReport summarizes a BatchIndex run.
type BatchReport struct {
	Successful int
	Failed     int
	TotalMs    int64
	Failures   []BatchFailure
}

const batchChunkSize = 100

// Engine composes the database manager, full-text index, and link graph
// into the hybrid search surface.
type Engine struct {
	database *db.DB
	ix       *index.Index
	g        *graph.Graph
}

// New builds an Engine over an already-opened database.
func New(database *db.DB) *Engine {
	return &Engine{
		database: database,
		ix:       index.New(database.Conn()),
		g:        graph.New(database.Conn()),
	}
}

// IndexNote upserts n's row transactionally (computing content_hash),
// updates its FTS entry, and rewrites its outbound edges from its
// header-declared links.
func (e *Engine) IndexNote(ctx context.Context, n NoteInput) error {
	const op = "search.Engine.IndexNote"

	if n.UID == "" {
		return errs.New(errs.InvalidRequest, op, "note has no uid")
	}

	tagsJSON, err := json.Marshal(n.Tags)
	if err != nil {
		return errs.Wrap(errs.IndexingError, op, err)
	}
	hash := contentHash(n.Title, n.Body)
	now := time.Now().UTC().Format(time.RFC3339)

	err = e.database.Transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO notes(uid, title, category, file_path, project, tags_json, content_hash, created_at, updated_at, indexed_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(uid) DO UPDATE SET
			   title = excluded.title, category = excluded.category, file_path = excluded.file_path,
			   project = excluded.project, tags_json = excluded.tags_json, content_hash = excluded.content_hash,
			   updated_at = excluded.updated_at, indexed_at = excluded.indexed_at`,
			n.UID, n.Title, n.Category, n.FilePath, n.Project, string(tagsJSON), hash, now, now, now)
		return err
	})
	if err != nil {
		return errs.Wrap(errs.DatabaseError, op, err)
	}

	if err := e.ix.Update(ctx, n.UID, n.Title, n.Body, n.Category, n.Project, n.Tags); err != nil {
		return err
	}

	strengthOf := func(target string) int {
		return graph.CountOccurrences(n.Body, target)
	}
	targets := graph.LinkSet{
		Internal: n.Links,
		External: note.ExtractExternalLinks(n.Body),
		Tag:      n.Tags,
	}
	if err := e.g.UpdateLinks(ctx, n.UID, targets, strengthOf); err != nil {
		return err
	}
	return nil
}

// RemoveNote transactionally deletes uid from notes, the FTS index, and
// the link graph (both directions).
func (e *Engine) RemoveNote(ctx context.Context, uid string) error {
	const op = "search.Engine.RemoveNote"

	err := e.database.Transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "DELETE FROM notes WHERE uid = ?", uid)
		return err
	})
	if err != nil {
		return errs.Wrap(errs.DatabaseError, op, err)
	}
	if err := e.ix.Remove(ctx, uid); err != nil {
		return err
	}
	if err := e.g.RemoveLinks(ctx, uid); err != nil {
		return err
	}
	return nil
}

// LookupUIDByPath returns the UID currently indexed under filePath, and
// false if no row is indexed under that path. This is how a watcher
// unlink event (which carries only a path, its note already gone)
// recovers the UID it needs for RemoveNote and a backlink Cleanup.
func (e *Engine) LookupUIDByPath(ctx context.Context, filePath string) (string, bool, error) {
	const op = "search.Engine.LookupUIDByPath"

	var uid string
	err := e.database.Conn().QueryRowContext(ctx, "SELECT uid FROM notes WHERE file_path = ?", filePath).Scan(&uid)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errs.Wrap(errs.DatabaseError, op, err)
	}
	return uid, true, nil
}

// RemoveByPath looks up the UID currently indexed under filePath and
// removes it via RemoveNote; it is a no-op if no row is indexed under
// that path.
func (e *Engine) RemoveByPath(ctx context.Context, filePath string) error {
	uid, found, err := e.LookupUIDByPath(ctx, filePath)
	if err != nil || !found {
		return err
	}
	return e.RemoveNote(ctx, uid)
}

// BatchIndex partitions notes into chunks of 100, each chunk run as one
// pass; a failing note is recorded in the report and does not abort the
// batch or its chunk's remaining notes.
func (e *Engine) BatchIndex(ctx context.Context, notes []NoteInput) BatchReport {
	start := time.Now()
	var report BatchReport

	for i := 0; i < len(notes); i += batchChunkSize {
		end := i + batchChunkSize
		if end > len(notes) {
			end = len(notes)
		}
		for _, n := range notes[i:end] {
			if err := e.IndexNote(ctx, n); err != nil {
				report.Failed++
				report.Failures = append(report.Failures, BatchFailure{UID: n.UID, Error: err.Error()})
				continue
			}
			report.Successful++
		}
	}

	report.TotalMs = time.Since(start).Milliseconds()
	return report
}

// Search runs the hybrid query: FTS candidates are re-scored with link
// centrality and re-sorted by the blended score.
func (e *Engine) Search(ctx context.Context, query string, opts SearchOptions) ([]Result, Metrics, error) {
	start := time.Now()

	ftsRows, ftsMetrics, err := e.ix.Search(ctx, query, index.SearchOptions{
		Category:      opts.Category,
		Project:       opts.Project,
		Tags:          opts.Tags,
		Limit:         opts.Limit,
		Offset:        opts.Offset,
		SnippetLength: opts.SnippetLength,
		HighlightTag:  opts.HighlightTag,
	})
	if err != nil {
		return nil, Metrics{}, err
	}

	results := make([]Result, 0, len(ftsRows))
	for _, row := range ftsRows {
		back, err := e.g.Backlinks(ctx, row.UID, 10)
		if err != nil {
			return nil, Metrics{}, err
		}
		out, err := e.g.Outbound(ctx, row.UID, 10)
		if err != nil {
			return nil, Metrics{}, err
		}

		var linkRaw int
		for _, b := range back {
			linkRaw += 2 * b.Strength
		}
		for _, o := range out {
			linkRaw += o.Strength
		}
		linkScore := float64(linkRaw) / 20.0
		if linkScore > 1.0 {
			linkScore = 1.0
		}

		outboundUIDs := make([]string, len(out))
		for i, o := range out {
			outboundUIDs[i] = o.TargetUID
		}

		results = append(results, Result{
			UID:           row.UID,
			Title:         row.Title,
			Category:      row.Category,
			Project:       row.Project,
			Tags:          row.Tags,
			Snippet:       row.Snippet,
			FTSScore:      row.FTSScore,
			LinkScore:     linkScore,
			Combined:      0.7*row.FTSScore + 0.3*linkScore,
			OutboundLinks: outboundUIDs,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Combined != results[j].Combined {
			return results[i].Combined > results[j].Combined
		}
		return len(results[i].OutboundLinks) > len(results[j].OutboundLinks)
	})

	metrics := Metrics{
		QueryMs:         ftsMetrics.QueryMs,
		ProcessingMs:    time.Since(start).Milliseconds() - ftsMetrics.QueryMs,
		TotalMs:         time.Since(start).Milliseconds(),
		TotalResults:    ftsMetrics.TotalResults,
		ReturnedResults: len(results),
		CacheHit:        ftsMetrics.CacheHit,
	}
	if metrics.ProcessingMs < 0 {
		metrics.ProcessingMs = 0
	}
	return results, metrics, nil
}

// Backlinks passes through to the link graph.
func (e *Engine) Backlinks(ctx context.Context, target string, limit int) ([]graph.Edge, error) {
	return e.g.Backlinks(ctx, target, limit)
}

// Outbound passes through to the link graph.
func (e *Engine) Outbound(ctx context.Context, source string, limit int) ([]graph.Edge, error) {
	return e.g.Outbound(ctx, source, limit)
}

// Connected passes through to the link graph.
func (e *Engine) Connected(ctx context.Context, start string, depth, limit int, direction graph.Direction) ([]graph.ConnectedNode, error) {
	return e.g.Connected(ctx, start, depth, limit, direction)
}

// Orphans passes through to the link graph.
func (e *Engine) Orphans(ctx context.Context, limit int) ([]string, error) {
	return e.g.Orphans(ctx, limit)
}

// Stats composes database, index, and graph stats.
type Stats struct {
	DB    db.Stats
	Graph graph.Stats
}

// Stats passes through to the database manager and link graph.
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	dbStats, err := e.database.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}
	graphStats, err := e.g.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{DB: dbStats, Graph: graphStats}, nil
}

// Optimize passes through to the database manager and full-text index.
func (e *Engine) Optimize(ctx context.Context) error {
	if err := e.database.Optimize(ctx); err != nil {
		return err
	}
	return e.ix.Optimize(ctx)
}

// CheckIntegrity passes through to the database manager.
func (e *Engine) CheckIntegrity(ctx context.Context) (bool, error) {
	return e.database.CheckIntegrity(ctx)
}

func contentHash(title, body string) string {
	sum := sha256.Sum256([]byte(title + "\x00" + body))
	return hex.EncodeToString(sum[:])
}

// NoteInputFromHeader builds a NoteInput from a loaded note, the shape
// BatchIndex and the watcher-driven indexing hook both consume.
func NoteInputFromHeader(n note.Note) NoteInput {
	return NoteInput{
		UID:      n.Header.ID,
		Title:    n.Header.Title,
		Body:     n.Body,
		Category: string(n.Header.Category),
		Project:  n.Header.Project,
		Tags:     n.Header.Tags,
		Links:    n.Header.Links,
		FilePath: n.Path,
	}
}
