// Package note implements the note repository and the header codec:
// parsing and serializing the YAML-style metadata block that prefixes
// every vault Markdown file, plus link analysis over the note body.
package note

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/RamXX/memory-mcp/internal/errs"
)

// Category is one of the four PARA categories a note's header declares.
type Category string

const (
	CategoryProjects  Category = "Projects"
	CategoryAreas     Category = "Areas"
	CategoryResources Category = "Resources"
	CategoryArchives  Category = "Archives"
)

// ValidCategory reports whether c is one of the four known categories.
func ValidCategory(c Category) bool {
	switch c {
	case CategoryProjects, CategoryAreas, CategoryResources, CategoryArchives:
		return true
	default:
		return false
	}
}

// Header is a note's parsed metadata block. Tags and Links are sets:
// duplicates are removed on parse, insertion order is kept for display.
type Header struct {
	ID       string
	Title    string
	Category Category
	Tags     []string
	Project  string
	Created  time.Time
	Updated  time.Time
	Links    []string
	// Extras holds scalar fields the codec doesn't recognize, preserved
	// opaquely in lenient mode and rejected outright in strict mode.
	Extras map[string]string
}

// knownHeaderKeys is the fixed field set the codec understands, used to
// separate recognized fields from Extras / strict-mode rejections.
var knownHeaderKeys = map[string]bool{
	"id": true, "title": true, "category": true, "tags": true,
	"project": true, "created": true, "updated": true, "links": true,
}

// headerKeyOrder is the stable serialization key order.
var headerKeyOrder = []string{"id", "title", "category", "tags", "project", "created", "updated", "links"}

const frontmatterFence = "---"

// splitFrontmatter returns the raw YAML block between the opening and
// closing `---` fences and the body text that follows. found is false when
// text has no leading fence (or the fence is never closed), in which case
// body is the original text unchanged.
func splitFrontmatter(text string) (yamlBlock string, body string, found bool) {
	lines := strings.Split(text, "\n")
	if len(lines) < 2 || strings.TrimSpace(lines[0]) != frontmatterFence {
		return "", text, false
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == frontmatterFence {
			yamlBlock = strings.Join(lines[1:i], "\n")
			body = strings.Join(lines[i+1:], "\n")
			return yamlBlock, body, true
		}
	}
	return "", text, false
}

// DefaultHeader synthesizes the best-effort header used when a document
// lacks a header or has a malformed one and the caller did not request
// strict mode.
func DefaultHeader(now time.Time) Header {
	now = now.UTC()
	return Header{
		ID:       NewUID(),
		Title:    "Untitled",
		Category: CategoryResources,
		Tags:     []string{},
		Created:  now,
		Updated:  now,
		Links:    []string{},
	}
}

// Parse splits text into a Header and body. In lenient mode (strict=false),
// a missing or malformed header yields DefaultHeader rather than an error.
// In strict mode, any of those conditions returns a ParseError.
func Parse(text string, strict bool) (Header, string, error) {
	const op = "note.Parse"

	yamlBlock, body, found := splitFrontmatter(text)
	if !found {
		if strict {
			return Header{}, "", errs.New(errs.ParseError, op, "document has no frontmatter header")
		}
		return DefaultHeader(time.Now()), text, nil
	}

	raw := map[string]any{}
	if strings.TrimSpace(yamlBlock) != "" {
		if err := yaml.Unmarshal([]byte(yamlBlock), &raw); err != nil {
			if strict {
				return Header{}, "", errs.Wrap(errs.ParseError, op, err)
			}
			return DefaultHeader(time.Now()), body, nil
		}
	}

	if strict {
		for k := range raw {
			if !knownHeaderKeys[k] {
				return Header{}, "", errs.New(errs.ParseError, op, fmt.Sprintf("unknown header field %q", k))
			}
		}
	}

	h := headerFromRaw(raw)
	if err := Validate(h); err != nil {
		if strict {
			return Header{}, "", err
		}
		return DefaultHeader(time.Now()), body, nil
	}

	return h, body, nil
}

func headerFromRaw(raw map[string]any) Header {
	h := Header{Extras: map[string]string{}}

	h.ID = stringField(raw["id"])
	h.Title = stringField(raw["title"])
	h.Category = Category(stringField(raw["category"]))
	h.Project = stringField(raw["project"])
	h.Tags = dedupeStrings(stringListField(raw["tags"]))
	h.Links = dedupeStrings(stringListField(raw["links"]))
	h.Created = parseTimeField(raw["created"])
	h.Updated = parseTimeField(raw["updated"])

	for k, v := range raw {
		if knownHeaderKeys[k] {
			continue
		}
		if s, ok := v.(string); ok {
			h.Extras[k] = s
		}
	}
	if len(h.Extras) == 0 {
		h.Extras = nil
	}
	return h
}

func stringField(v any) string {
	s, _ := v.(string)
	return s
}

func stringListField(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	default:
		return nil
	}
}

func parseTimeField(v any) time.Time {
	s, ok := v.(string)
	if !ok || s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func dedupeStrings(in []string) []string {
	if in == nil {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// Validate enforces header invariants: a well-formed UID, a non-empty
// title, a known category, and created <= updated.
func Validate(h Header) error {
	const op = "note.Validate"

	if !ValidUID(h.ID) {
		return errs.New(errs.ParseError, op, fmt.Sprintf("malformed or missing uid: %q", h.ID))
	}
	if strings.TrimSpace(h.Title) == "" {
		return errs.New(errs.ParseError, op, "empty title")
	}
	if !ValidCategory(h.Category) {
		return errs.New(errs.ParseError, op, fmt.Sprintf("unknown category: %q", h.Category))
	}
	if !h.Created.IsZero() && !h.Updated.IsZero() && h.Created.After(h.Updated) {
		return errs.New(errs.ParseError, op, "created must not be after updated")
	}
	return nil
}

// Serialize renders a header and body back into frontmatter-prefixed text,
// using the stable key order. Serialize(Parse(text)) == text for any text
// Serialize itself produced.
func Serialize(h Header, body string) string {
	var b strings.Builder
	b.WriteString(frontmatterFence)
	b.WriteByte('\n')

	fields := map[string]string{
		"id":       yamlScalar(h.ID),
		"title":    yamlScalar(h.Title),
		"category": yamlScalar(string(h.Category)),
		"tags":     yamlFlowList(h.Tags),
		"project":  yamlScalar(h.Project),
		"created":  yamlScalar(formatTimestamp(h.Created)),
		"updated":  yamlScalar(formatTimestamp(h.Updated)),
		"links":    yamlFlowList(h.Links),
	}

	for _, key := range headerKeyOrder {
		if key == "project" && h.Project == "" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", key, fields[key])
	}

	if len(h.Extras) > 0 {
		extraKeys := make([]string, 0, len(h.Extras))
		for k := range h.Extras {
			extraKeys = append(extraKeys, k)
		}
		sort.Strings(extraKeys)
		for _, k := range extraKeys {
			fmt.Fprintf(&b, "%s: %s\n", k, yamlScalar(h.Extras[k]))
		}
	}

	b.WriteString(frontmatterFence)
	b.WriteByte('\n')
	b.WriteString(body)
	return b.String()
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func yamlFlowList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = yamlScalar(s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// yamlScalar quotes a scalar value when it contains characters that would
// otherwise change its meaning to a YAML parser.
func yamlScalar(s string) string {
	if s == "" {
		return `""`
	}
	needsQuote := false
	for _, c := range s {
		switch c {
		case ':', '#', '[', ']', '{', '}', ',', '&', '*', '!', '|', '>', '\'', '"', '%', '@', '`':
			needsQuote = true
		}
	}
	if !needsQuote {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
