package note

import "testing"

type fakeResolver struct {
	uids   map[string]bool
	titles map[string]string
}

func (f fakeResolver) HasUID(uid string) bool { return f.uids[uid] }
func (f fakeResolver) ResolveTitle(title string) (string, bool) {
	uid, ok := f.titles[title]
	return uid, ok
}

func TestExtractLinkCandidatesWikiAndMarkdown(t *testing.T) {
	body := "See [[Project Plan]] and also [[Project Plan#Scope|the scope]] " +
		"plus a [markdown link](other-note.md) and ![[Embedded Note]]."
	got := ExtractLinkCandidates(body)
	want := []string{"Project Plan", "Project Plan", "Embedded Note", "other-note"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestExtractLinkCandidatesIgnoresInertZones(t *testing.T) {
	body := "Real [[Link One]].\n```\n[[Not A Link]]\n```\nInline `[[also not]]` span."
	got := ExtractLinkCandidates(body)
	if len(got) != 1 || got[0] != "Link One" {
		t.Fatalf("expected only the live link, got %v", got)
	}
}

func TestAnalyzeLinksResolvesUIDTitleAndBroken(t *testing.T) {
	resolver := fakeResolver{
		uids:   map[string]bool{"20260101T00000000000001Z": true},
		titles: map[string]string{"Known Title": "20260102T00000000000002Z"},
	}
	body := "Links to [[20260101T00000000000001Z]], [[Known Title]], and [[Nowhere]]."
	analysis := AnalyzeLinks(body, resolver)

	if len(analysis.Outbound) != 2 {
		t.Fatalf("expected 2 outbound links, got %v", analysis.Outbound)
	}
	if analysis.Outbound[0] != "20260101T00000000000001Z" || analysis.Outbound[1] != "20260102T00000000000002Z" {
		t.Fatalf("unexpected outbound set: %v", analysis.Outbound)
	}
	if len(analysis.Broken) != 1 || analysis.Broken[0] != "Nowhere" {
		t.Fatalf("expected one broken link, got %v", analysis.Broken)
	}
}

func TestAnalyzeLinksDeduplicates(t *testing.T) {
	resolver := fakeResolver{uids: map[string]bool{"20260101T00000000000001Z": true}}
	body := "[[20260101T00000000000001Z]] mentioned twice: [[20260101T00000000000001Z]]."
	analysis := AnalyzeLinks(body, resolver)
	if len(analysis.Outbound) != 1 {
		t.Fatalf("expected deduplication, got %v", analysis.Outbound)
	}
}

func TestExtractExternalLinksFindsBareURLs(t *testing.T) {
	body := "See https://example.com/docs and [a link](https://other.example/path?x=1) too."
	got := ExtractExternalLinks(body)
	want := []string{"https://example.com/docs", "https://other.example/path?x=1"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestExtractExternalLinksDeduplicatesAndIgnoresInertZones(t *testing.T) {
	body := "https://example.com twice: https://example.com\n```\nhttps://code-only.example\n```"
	got := ExtractExternalLinks(body)
	if len(got) != 1 || got[0] != "https://example.com" {
		t.Fatalf("expected one deduplicated URL outside code fences, got %v", got)
	}
}

func TestReferencesIdentityMatchesUIDOrTitleCaseInsensitive(t *testing.T) {
	body := "See [[Quarterly Planning]] for details."
	if !ReferencesIdentity(body, "20260101T00000000000001Z", "quarterly planning") {
		t.Fatalf("expected title match regardless of case")
	}
	if ReferencesIdentity(body, "20260101T00000000000001Z", "Unrelated") {
		t.Fatalf("expected no match")
	}
}
