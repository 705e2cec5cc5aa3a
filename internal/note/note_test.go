package note

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/RamXX/memory-mcp/internal/errs"
)

func TestRepositoryCreateAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	repo := NewRepository(dir)
	path := filepath.Join(dir, "Resources", "plan.md")

	created, err := repo.Create(path, "My Plan", "Body content.\n", CreateOptions{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	loaded, err := repo.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Header.ID != created.Header.ID || loaded.Header.Title != "My Plan" {
		t.Fatalf("loaded header mismatch: %+v", loaded.Header)
	}
	if loaded.Body != "Body content.\n" {
		t.Fatalf("body mismatch: %q", loaded.Body)
	}
}

func TestRepositoryCreateFailsWhenPathExists(t *testing.T) {
	dir := t.TempDir()
	repo := NewRepository(dir)
	path := filepath.Join(dir, "note.md")

	if _, err := repo.Create(path, "T", "", CreateOptions{}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := repo.Create(path, "T", "", CreateOptions{}); !errs.Is(err, errs.AlreadyExists) {
		t.Fatalf("expected AlreadyExists, got %v", err)
	}
}

func TestRepositoryLoadMissingFileIsNotFound(t *testing.T) {
	repo := NewRepository(t.TempDir())
	_, err := repo.Load(filepath.Join(repo.VaultRoot, "absent.md"))
	if !errs.Is(err, errs.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestRepositorySaveBumpsUpdatedOnlyWhenContentChanges(t *testing.T) {
	dir := t.TempDir()
	repo := NewRepository(dir)
	path := filepath.Join(dir, "note.md")

	n, err := repo.Create(path, "T", "body", CreateOptions{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	firstUpdated := n.Header.Updated

	unchanged, err := repo.Save(n, SaveOptions{Atomic: true})
	if err != nil {
		t.Fatalf("Save unchanged: %v", err)
	}
	if !unchanged.Header.Updated.Equal(firstUpdated) {
		t.Fatalf("expected Updated to stay stable when content is identical")
	}

	n.Body = "different body"
	changed, err := repo.Save(n, SaveOptions{Atomic: true})
	if err != nil {
		t.Fatalf("Save changed: %v", err)
	}
	if !changed.Header.Updated.After(firstUpdated) && !changed.Header.Updated.Equal(firstUpdated) {
		t.Fatalf("expected Updated to advance or stay equal, got %v vs %v", changed.Header.Updated, firstUpdated)
	}
}

func TestRepositoryDeleteWithBackup(t *testing.T) {
	dir := t.TempDir()
	repo := NewRepository(dir)
	path := filepath.Join(dir, "note.md")
	if _, err := repo.Create(path, "T", "", CreateOptions{}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := repo.Delete(path, DeleteOptions{Backup: true}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(path); err == nil {
		t.Fatalf("expected original path removed")
	}
	matches, _ := filepath.Glob(path + ".bak.*")
	if len(matches) != 1 {
		t.Fatalf("expected one backup file, found %v", matches)
	}
}

func TestRepositoryDeleteMissingIsNotFound(t *testing.T) {
	repo := NewRepository(t.TempDir())
	err := repo.Delete(filepath.Join(repo.VaultRoot, "absent.md"), DeleteOptions{})
	if !errs.Is(err, errs.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestRepositoryFindByUID(t *testing.T) {
	dir := t.TempDir()
	repo := NewRepository(dir)
	path := filepath.Join(dir, "note.md")
	created, err := repo.Create(path, "Findable", "", CreateOptions{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	found, ok, err := repo.FindByUID(created.Header.ID)
	if err != nil || !ok {
		t.Fatalf("FindByUID: found=%v err=%v", ok, err)
	}
	if found.Path != path {
		t.Fatalf("unexpected path: %q", found.Path)
	}

	_, ok, err = repo.FindByUID("20000101T00000000000000Z")
	if err != nil || ok {
		t.Fatalf("expected no match for unknown uid")
	}
}

func TestRepositoryAnalyzeLinksOutboundBrokenInbound(t *testing.T) {
	dir := t.TempDir()
	repo := NewRepository(dir)

	b, err := repo.Create(filepath.Join(dir, "b.md"), "Target Note", "", CreateOptions{})
	if err != nil {
		t.Fatalf("create b: %v", err)
	}
	a, err := repo.Create(filepath.Join(dir, "a.md"), "Source Note", "Links to [[Target Note]] and [[Nowhere]].", CreateOptions{})
	if err != nil {
		t.Fatalf("create a: %v", err)
	}

	outbound, broken, inbound, err := repo.AnalyzeLinks(a)
	if err != nil {
		t.Fatalf("AnalyzeLinks: %v", err)
	}
	if len(outbound) != 1 || outbound[0] != b.Header.ID {
		t.Fatalf("unexpected outbound: %v", outbound)
	}
	if len(broken) != 1 || broken[0] != "Nowhere" {
		t.Fatalf("unexpected broken: %v", broken)
	}
	if inbound != nil {
		t.Fatalf("expected no inbound links to a, got %v", inbound)
	}

	_, _, bInbound, err := repo.AnalyzeLinks(b)
	if err != nil {
		t.Fatalf("AnalyzeLinks b: %v", err)
	}
	if len(bInbound) != 1 || bInbound[0] != a.Header.ID {
		t.Fatalf("expected a to be an inbound link of b, got %v", bInbound)
	}
}

func TestSanitizeTitle(t *testing.T) {
	cases := map[string]string{
		"Simple Title":        "Simple-Title",
		"a/b:c*d":             "a-b-c-d",
		"   leading/trailing  ": "leading-trailing",
		"":                    "untitled",
	}
	for in, want := range cases {
		if got := SanitizeTitle(in); got != want {
			t.Errorf("SanitizeTitle(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitizeTitleTruncates(t *testing.T) {
	long := ""
	for i := 0; i < 80; i++ {
		long += "a"
	}
	got := SanitizeTitle(long)
	if len(got) > 50 {
		t.Fatalf("expected truncation to 50 chars, got %d", len(got))
	}
}

func TestPathFor(t *testing.T) {
	got := PathFor("/vault", CategoryProjects, "roadmap", "Q1 Plan")
	want := filepath.Join("/vault", "Projects", "roadmap", "Q1-Plan.md")
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
