package index

import (
	"strings"
	"testing"
)

func TestStripMarkdownRemovesCodeFencesAndHeadings(t *testing.T) {
	body := "# Title\n\nSome text.\n\n```go\nfunc main() {}\n```\n\nMore text."
	got := StripMarkdown(body)
	if strings.Contains(got, "func main") {
		t.Fatalf("expected code fence content removed, got %q", got)
	}
	if strings.Contains(got, "#") {
		t.Fatalf("expected heading marker removed, got %q", got)
	}
}

func TestStripMarkdownUnwrapsEmphasisAndInlineCode(t *testing.T) {
	got := StripMarkdown("This is **bold** and *italic* and `code`.")
	if strings.Contains(got, "*") || strings.Contains(got, "`") {
		t.Fatalf("expected emphasis/code markers removed, got %q", got)
	}
	if !strings.Contains(got, "bold") || !strings.Contains(got, "italic") || !strings.Contains(got, "code") {
		t.Fatalf("expected text content preserved, got %q", got)
	}
}

func TestStripMarkdownCollapsesLinksToText(t *testing.T) {
	got := StripMarkdown("See [[Target Note]] and [a link](path.md).")
	if strings.Contains(got, "[[") || strings.Contains(got, "](") {
		t.Fatalf("expected link syntax collapsed, got %q", got)
	}
	if !strings.Contains(got, "Target Note") || !strings.Contains(got, "a link") {
		t.Fatalf("expected link text preserved, got %q", got)
	}
}

func TestStripMarkdownWikilinkDisplayText(t *testing.T) {
	got := StripMarkdown("See [[Target Note|an alias]].")
	if !strings.Contains(got, "an alias") {
		t.Fatalf("expected display text preserved, got %q", got)
	}
	if strings.Contains(got, "Target Note") {
		t.Fatalf("expected raw title replaced by display text, got %q", got)
	}
}
