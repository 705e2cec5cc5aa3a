package note

import "regexp"

// regionSpec pairs a delimited-span pattern with the capture group index
// holding the span's inner content, the part that gets blanked.
type regionSpec struct {
	pattern *regexp.Regexp
	group   int
}

var fencedOpenPattern = regexp.MustCompile("(?m)^(```\\w*)\n")
var fencedClosePattern = regexp.MustCompile("(?m)^```[ \t]*$")

var doubleBacktickPattern = regexp.MustCompile("``([^`\\n]+)``")
var singleBacktickPattern = regexp.MustCompile("`([^`\\n]+)`")
var obsidianCommentPattern = regexp.MustCompile(`(?s)%%(.+?)%%`)
var htmlCommentPattern = regexp.MustCompile(`(?s)<!--(.*?)-->`)
var displayMathPattern = regexp.MustCompile(`(?s)\$\$(.+?)\$\$`)
var inlineMathPattern = regexp.MustCompile(`\$([^\s$][^$\n]*?[^\s$])\$`)

// regions runs in this fixed precedence order: double backticks before
// single (so a run like ``x`` isn't split into two single spans),
// Obsidian comments before HTML comments, display math before inline math
// (so $$ is never read as a pair of bare $ spans). Fenced code blocks are
// masked separately, before any of these, since their delimiters span
// lines rather than being matched by one of these single-line/DOTALL
// patterns.
var regions = []regionSpec{
	{doubleBacktickPattern, 1},
	{singleBacktickPattern, 1},
	{obsidianCommentPattern, 1},
	{htmlCommentPattern, 1},
	{displayMathPattern, 1},
	{inlineMathPattern, 1},
}

// maskInert returns text with every inert zone's content replaced by
// spaces: fenced code, inline code, Obsidian (%%) and HTML comments, and
// display/inline math. Byte length and line count are preserved, so
// callers can still report offsets against the original text.
func maskInert(text string) string {
	buf := []byte(maskFencedCodeBlocks(text))
	for _, r := range regions {
		maskCapturedSpans(buf, r.pattern, r.group)
	}
	return string(buf)
}

// maskCapturedSpans blanks, in place, every occurrence of group within
// pattern's matches against buf.
func maskCapturedSpans(buf []byte, pattern *regexp.Regexp, group int) {
	for _, loc := range pattern.FindAllSubmatchIndex(buf, -1) {
		start, end := loc[2*group], loc[2*group+1]
		maskRegion(buf, start, end)
	}
}

func maskRegion(buf []byte, start, end int) {
	for i := start; i < end; i++ {
		if buf[i] != '\n' {
			buf[i] = ' '
		}
	}
}

// maskFencedCodeBlocks masks the content inside ``` ... ``` blocks; an
// unclosed fence masks to end of file. Unlike the other inert zones, a
// fence's extent can't be found by a single regexp match since the
// closing delimiter must be searched for independently after each open.
func maskFencedCodeBlocks(text string) string {
	buf := []byte(text)
	pos := 0
	for pos < len(buf) {
		loc := fencedOpenPattern.FindIndex(buf[pos:])
		if loc == nil {
			break
		}
		contentStart := pos + loc[1]
		closeLoc := fencedClosePattern.FindIndex(buf[contentStart:])
		if closeLoc == nil {
			maskRegion(buf, contentStart, len(buf))
			break
		}
		contentEnd := contentStart + closeLoc[0]
		maskRegion(buf, contentStart, contentEnd)
		pos = contentStart + closeLoc[1]
	}
	return string(buf)
}
