package note

import (
	"path/filepath"
	"regexp"
	"strings"
)

// wikiLinkPattern matches [[Title]], ![[Title]], [[Title#Heading]],
// [[Title#^block-id]], [[Title|Display]] and their combinations.
var wikiLinkPattern = regexp.MustCompile(`(!?)\[\[([^\]#|]+?)(?:#(\^?[^\]|]*))?(?:\|([^\]]*))?\]\]`)

// mdLinkPattern matches Markdown-style links to .md files: [text](path.md)
// or [text](path.md#heading).
var mdLinkPattern = regexp.MustCompile(`\[([^\]]*)\]\(([^)]+\.md(?:#[^)]*)?)\)`)

// bareURLPattern matches http(s) URLs, whether bare in the text or as a
// Markdown link target, stopping at whitespace or a closing paren/bracket.
var bareURLPattern = regexp.MustCompile(`https?://[^\s)\]]+`)

// Resolver answers the two questions AnalyzeLinks needs to classify a link
// candidate: whether a literal UID exists in the vault, and what UID a
// title resolves to.
type Resolver interface {
	HasUID(uid string) bool
	ResolveTitle(title string) (uid string, ok bool)
}

// LinkAnalysis is the result of analyzing a note's body for outbound
// links: each candidate resolves to a target UID by exact UID match, else
// exact title match, else it is broken.
type LinkAnalysis struct {
	Outbound []string
	Broken   []string
}

// ExtractLinkCandidates pulls every wikilink and Markdown-link target out
// of body, in the form the candidate would need to match the vault: a
// wikilink's title text, or a Markdown link's path with directory and
// ".md"/fragment suffix stripped. Matches inside inert zones (code fences,
// inline code, comments, math) are ignored.
func ExtractLinkCandidates(body string) []string {
	masked := maskInert(body)
	var out []string

	for _, m := range wikiLinkPattern.FindAllStringSubmatch(masked, -1) {
		title := strings.TrimSpace(m[2])
		if title != "" {
			out = append(out, title)
		}
	}

	for _, m := range mdLinkPattern.FindAllStringSubmatch(masked, -1) {
		target := m[2]
		if idx := strings.Index(target, "#"); idx >= 0 {
			target = target[:idx]
		}
		base := strings.TrimSuffix(filepath.Base(target), ".md")
		if base != "" {
			out = append(out, base)
		}
	}

	return out
}

// ExtractExternalLinks pulls every distinct http(s) URL out of body, outside
// inert zones, preserving first-seen order. These never resolve against the
// vault and back the link graph's external edge kind.
func ExtractExternalLinks(body string) []string {
	masked := maskInert(body)
	seen := map[string]bool{}
	var out []string
	for _, url := range bareURLPattern.FindAllString(masked, -1) {
		if !seen[url] {
			seen[url] = true
			out = append(out, url)
		}
	}
	return out
}

// AnalyzeLinks resolves every extracted candidate against resolver,
// deduplicating while preserving first-seen order.
func AnalyzeLinks(body string, resolver Resolver) LinkAnalysis {
	candidates := ExtractLinkCandidates(body)

	var analysis LinkAnalysis
	seenOut := map[string]bool{}
	seenBroken := map[string]bool{}

	for _, c := range candidates {
		if resolver.HasUID(c) {
			if !seenOut[c] {
				seenOut[c] = true
				analysis.Outbound = append(analysis.Outbound, c)
			}
			continue
		}
		if uid, ok := resolver.ResolveTitle(c); ok {
			if !seenOut[uid] {
				seenOut[uid] = true
				analysis.Outbound = append(analysis.Outbound, uid)
			}
			continue
		}
		if !seenBroken[c] {
			seenBroken[c] = true
			analysis.Broken = append(analysis.Broken, c)
		}
	}

	return analysis
}

// ReferencesIdentity reports whether body, outside inert zones, contains a
// wikilink, embed, or Markdown link whose candidate text is uid or title.
// Used to compute a note's inbound links by scanning the rest of the vault.
func ReferencesIdentity(body, uid, title string) bool {
	for _, c := range ExtractLinkCandidates(body) {
		if c == uid || strings.EqualFold(c, title) {
			return true
		}
	}
	return false
}
