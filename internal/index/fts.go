// Package index implements FTS5-backed full-text search over a
// Markdown-stripped copy of each note's body.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/RamXX/memory-mcp/internal/errs"
)

var hasTokenChar = regexp.MustCompile(`[\p{L}\p{N}]`)

// Row is one search hit against the FTS table.
type Row struct {
	UID      string
	Title    string
	Category string
	Project  string
	Tags     []string
	Snippet  string
	FTSScore float64
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

// SearchOptions controls Search's filtering, pagination, and snippet
// rendering.
type SearchOptions struct {
	Category      string
	Tags          []string
	Project       string
	Limit         int
	Offset        int
	SnippetLength int
	HighlightTag  string
}

func (o SearchOptions) withDefaults() SearchOptions {
	if o.Limit <= 0 {
		o.Limit = 50
	}
	if o.SnippetLength <= 0 {
		o.SnippetLength = 150
	}
	if o.HighlightTag == "" {
		o.HighlightTag = "mark"
	}
	return o
}

// Index operates on the notes_fts virtual table the database manager
// bootstraps.
type Index struct {
	conn *sql.DB
}

// New wraps conn, the shared connection the database manager owns.
func New(conn *sql.DB) *Index {
	return &Index{conn: conn}
}

// Update re-indexes uid: re-inserting a UID replaces the prior row, since
// FTS5 content rows are keyed by rowid and we always delete-then-insert.
func (ix *Index) Update(ctx context.Context, uid, title, body, category, project string, tags []string) error {
	const op = "index.Index.Update"

	if _, err := ix.conn.ExecContext(ctx, "DELETE FROM notes_fts WHERE uid = ?", uid); err != nil {
		return errs.Wrap(errs.IndexingError, op, err)
	}

	cleaned := StripMarkdown(body)
	_, err := ix.conn.ExecContext(ctx,
		"INSERT INTO notes_fts(uid, title, content, tags, category, project) VALUES (?, ?, ?, ?, ?, ?)",
		uid, title, cleaned, strings.Join(tags, " "), category, project)
	if err != nil {
		return errs.Wrap(errs.IndexingError, op, err)
	}
	return nil
}

// Remove deletes uid's row. Removing a UID that isn't indexed is a no-op.
func (ix *Index) Remove(ctx context.Context, uid string) error {
	const op = "index.Index.Remove"
	if _, err := ix.conn.ExecContext(ctx, "DELETE FROM notes_fts WHERE uid = ?", uid); err != nil {
		return errs.Wrap(errs.IndexingError, op, err)
	}
	return nil
}

// Optimize runs FTS5's engine-side segment merge.
func (ix *Index) Optimize(ctx context.Context) error {
	const op = "index.Index.Optimize"
	_, err := ix.conn.ExecContext(ctx, "INSERT INTO notes_fts(notes_fts) VALUES ('optimize')")
	if err != nil {
		return errs.Wrap(errs.IndexingError, op, err)
	}
	return nil
}

// Search runs an FTS5 query, applying opts' metadata filters as
// conjunctive post-predicates and normalizing bm25 into an fts_score in
// [0,1]. An empty or token-less query returns zero rows without error.
func (ix *Index) Search(ctx context.Context, query string, opts SearchOptions) ([]Row, Metrics, error) {
	const op = "index.Index.Search"
	opts = opts.withDefaults()

	start := time.Now()
	query = strings.TrimSpace(query)
	if query == "" || !hasTokenChar.MatchString(query) {
		return nil, Metrics{ReturnedResults: 0, TotalResults: 0, TotalMs: time.Since(start).Milliseconds()}, nil
	}

	tag := opts.HighlightTag
	snippetExpr := fmt.Sprintf("snippet(notes_fts, 2, '<%s>', '</%s>', '...', %d)", tag, tag, snippetTokenCount(opts.SnippetLength))

	var conds []string
	var args []any
	args = append(args, query)
	if opts.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, opts.Category)
	}
	if opts.Project != "" {
		conds = append(conds, "project = ?")
		args = append(args, opts.Project)
	}
	for _, t := range opts.Tags {
		conds = append(conds, "tags LIKE ?")
		args = append(args, "%"+t+"%")
	}

	where := "notes_fts MATCH ?"
	if len(conds) > 0 {
		where += " AND " + strings.Join(conds, " AND ")
	}

	queryStart := time.Now()
	sqlText := fmt.Sprintf(
		`SELECT uid, title, category, project, tags, %s, bm25(notes_fts)
		 FROM notes_fts WHERE %s ORDER BY bm25(notes_fts) LIMIT ? OFFSET ?`,
		snippetExpr, where)
	args = append(args, opts.Limit, opts.Offset)

	rows, err := ix.conn.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, Metrics{}, errs.Wrap(errs.SearchError, op, err)
	}
	defer rows.Close()
	queryMs := time.Since(queryStart).Milliseconds()

	var out []Row
	for rows.Next() {
		var r Row
		var tagsJoined string
		var bm25 float64
		if err := rows.Scan(&r.UID, &r.Title, &r.Category, &r.Project, &tagsJoined, &r.Snippet, &bm25); err != nil {
			return nil, Metrics{}, errs.Wrap(errs.SearchError, op, err)
		}
		if tagsJoined != "" {
			r.Tags = strings.Fields(tagsJoined)
		}
		r.FTSScore = normalizeBM25(bm25)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, Metrics{}, errs.Wrap(errs.SearchError, op, err)
	}

	var total int
	countArgs := append([]any{query}, args[1:len(args)-2]...)
	countSQL := fmt.Sprintf("SELECT count(*) FROM notes_fts WHERE %s", where)
	if err := ix.conn.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		total = len(out)
	}

	processingMs := time.Since(queryStart).Milliseconds() - queryMs
	if processingMs < 0 {
		processingMs = 0
	}
	metrics := Metrics{
		QueryMs:         queryMs,
		ProcessingMs:    processingMs,
		TotalMs:         time.Since(start).Milliseconds(),
		TotalResults:    total,
		ReturnedResults: len(out),
	}
	return out, metrics, nil
}

// normalizeBM25 maps SQLite FTS5's bm25() output (negative, more negative
// is a better match) onto [0,1), where 1 is an asymptote never reached.
func normalizeBM25(bm25 float64) float64 {
	relevance := -bm25
	if relevance < 0 {
		relevance = 0
	}
	return relevance / (relevance + 1.0)
}

func snippetTokenCount(charLength int) int {
	tokens := charLength / 6
	if tokens < 8 {
		tokens = 8
	}
	return tokens
}

