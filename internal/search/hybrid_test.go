package search

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/RamXX/memory-mcp/internal/db"
)

func openTestEngine(t *testing.T) (*Engine, context.Context) {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "memory.db"), db.Options{})
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return New(d), context.Background()
}

func TestIndexNoteThenSearchFindsIt(t *testing.T) {
	e, ctx := openTestEngine(t)

	err := e.IndexNote(ctx, NoteInput{
		UID:      "u1",
		Title:    "Graph traversal notes",
		Body:     "breadth-first search over the link graph",
		Category: "Resources",
		FilePath: "/vault/u1.md",
	})
	if err != nil {
		t.Fatalf("IndexNote: %v", err)
	}

	results, metrics, err := e.Search(ctx, "breadth-first", SearchOptions{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].UID != "u1" {
		t.Fatalf("expected 1 result for u1, got %v", results)
	}
	if metrics.ReturnedResults != 1 {
		t.Fatalf("expected ReturnedResults 1, got %d", metrics.ReturnedResults)
	}
}

func TestIndexNoteWiresOutboundLinksIntoGraph(t *testing.T) {
	e, ctx := openTestEngine(t)

	if err := e.IndexNote(ctx, NoteInput{UID: "target", Title: "Target", Body: "target body", Category: "Resources", FilePath: "/vault/target.md"}); err != nil {
		t.Fatalf("IndexNote target: %v", err)
	}
	err := e.IndexNote(ctx, NoteInput{
		UID: "source", Title: "Source", Body: "mentions target target", Category: "Resources",
		FilePath: "/vault/source.md", Links: []string{"target"},
	})
	if err != nil {
		t.Fatalf("IndexNote source: %v", err)
	}

	back, err := e.Backlinks(ctx, "target", 0)
	if err != nil {
		t.Fatalf("Backlinks: %v", err)
	}
	if len(back) != 1 || back[0].SourceUID != "source" {
		t.Fatalf("expected source->target edge, got %v", back)
	}
}

func TestRemoveNoteDeletesFromAllThreeStores(t *testing.T) {
	e, ctx := openTestEngine(t)

	if err := e.IndexNote(ctx, NoteInput{UID: "a", Title: "A", Body: "alpha content", Category: "Resources", FilePath: "/vault/a.md"}); err != nil {
		t.Fatalf("IndexNote: %v", err)
	}
	if err := e.RemoveNote(ctx, "a"); err != nil {
		t.Fatalf("RemoveNote: %v", err)
	}

	results, _, err := e.Search(ctx, "alpha", SearchOptions{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no search hits after removal, got %v", results)
	}
	stats, err := e.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.DB.NoteCount != 0 {
		t.Fatalf("expected 0 notes after removal, got %d", stats.DB.NoteCount)
	}
}

func TestLookupUIDByPathReturnsIndexedUID(t *testing.T) {
	e, ctx := openTestEngine(t)

	if err := e.IndexNote(ctx, NoteInput{UID: "a", Title: "A", Body: "alpha content", Category: "Resources", FilePath: "/vault/a.md"}); err != nil {
		t.Fatalf("IndexNote: %v", err)
	}

	uid, found, err := e.LookupUIDByPath(ctx, "/vault/a.md")
	if err != nil {
		t.Fatalf("LookupUIDByPath: %v", err)
	}
	if !found || uid != "a" {
		t.Fatalf("expected to find uid a, got %q found=%v", uid, found)
	}

	_, found, err = e.LookupUIDByPath(ctx, "/vault/missing.md")
	if err != nil {
		t.Fatalf("LookupUIDByPath missing: %v", err)
	}
	if found {
		t.Fatalf("expected no match for an unindexed path")
	}
}

func TestRemoveByPathRemovesTheIndexedNote(t *testing.T) {
	e, ctx := openTestEngine(t)

	if err := e.IndexNote(ctx, NoteInput{UID: "a", Title: "A", Body: "alpha content", Category: "Resources", FilePath: "/vault/a.md"}); err != nil {
		t.Fatalf("IndexNote: %v", err)
	}
	if err := e.RemoveByPath(ctx, "/vault/a.md"); err != nil {
		t.Fatalf("RemoveByPath: %v", err)
	}

	_, found, err := e.LookupUIDByPath(ctx, "/vault/a.md")
	if err != nil {
		t.Fatalf("LookupUIDByPath: %v", err)
	}
	if found {
		t.Fatalf("expected note removed after RemoveByPath")
	}
}

func TestRemoveByPathOnUnindexedPathIsNoOp(t *testing.T) {
	e, ctx := openTestEngine(t)

	if err := e.RemoveByPath(ctx, "/vault/never-indexed.md"); err != nil {
		t.Fatalf("expected RemoveByPath on an unindexed path to be a no-op, got %v", err)
	}
}

func TestBatchIndexRecordsPerNoteFailuresWithoutAborting(t *testing.T) {
	e, ctx := openTestEngine(t)

	notes := []NoteInput{
		{UID: "ok1", Title: "OK1", Body: "fine content", Category: "Resources", FilePath: "/vault/ok1.md"},
		{UID: "", Title: "", Body: "", Category: "Resources", FilePath: "/vault/bad.md"},
		{UID: "ok2", Title: "OK2", Body: "also fine", Category: "Resources", FilePath: "/vault/ok2.md"},
	}

	report := e.BatchIndex(ctx, notes)
	if report.Successful != 2 {
		t.Fatalf("expected 2 successful, got %d (failures: %v)", report.Successful, report.Failures)
	}
	if report.Failed != 1 {
		t.Fatalf("expected 1 failure, got %d", report.Failed)
	}
	if len(report.Failures) != 1 {
		t.Fatalf("expected 1 recorded failure, got %v", report.Failures)
	}
}

func TestSearchBlendsLinkScoreIntoCombined(t *testing.T) {
	e, ctx := openTestEngine(t)

	if err := e.IndexNote(ctx, NoteInput{UID: "popular", Title: "Popular", Body: "shared keyword here", Category: "Resources", FilePath: "/vault/popular.md"}); err != nil {
		t.Fatalf("IndexNote popular: %v", err)
	}
	if err := e.IndexNote(ctx, NoteInput{UID: "lonely", Title: "Lonely", Body: "shared keyword here too", Category: "Resources", FilePath: "/vault/lonely.md"}); err != nil {
		t.Fatalf("IndexNote lonely: %v", err)
	}
	for i := 0; i < 3; i++ {
		uid := []string{"r1", "r2", "r3"}[i]
		if err := e.IndexNote(ctx, NoteInput{UID: uid, Title: uid, Body: uid, Category: "Resources", FilePath: "/vault/" + uid + ".md", Links: []string{"popular"}}); err != nil {
			t.Fatalf("IndexNote %s: %v", uid, err)
		}
	}

	results, _, err := e.Search(ctx, "keyword", SearchOptions{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %v", results)
	}
	byUID := map[string]Result{}
	for _, r := range results {
		byUID[r.UID] = r
	}
	if byUID["popular"].LinkScore <= byUID["lonely"].LinkScore {
		t.Fatalf("expected popular's link score to exceed lonely's, got %v vs %v",
			byUID["popular"].LinkScore, byUID["lonely"].LinkScore)
	}
	if byUID["popular"].Combined <= byUID["lonely"].Combined {
		t.Fatalf("expected popular to outrank lonely in the combined score, got %v vs %v",
			byUID["popular"].Combined, byUID["lonely"].Combined)
	}
}

func TestOptimizeAndCheckIntegrityPassThrough(t *testing.T) {
	e, ctx := openTestEngine(t)
	if err := e.Optimize(ctx); err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	ok, err := e.CheckIntegrity(ctx)
	if err != nil {
		t.Fatalf("CheckIntegrity: %v", err)
	}
	if !ok {
		t.Fatalf("expected a freshly optimized database to pass integrity check")
	}
}
