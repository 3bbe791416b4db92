package heuristic

import (
	"html"
	"regexp"
	"strings"
)

var (
	dropBlockRe = regexp.MustCompile(`(?is)<(script|style|noscript)[^>]*>.*?</(script|style|noscript)>`)
	headingRe   = regexp.MustCompile(`(?i)<h[1-3][^>]*>`)
	itemRe      = regexp.MustCompile(`(?i)<li(\s[^>]*)?>`)
	breakRe     = regexp.MustCompile(`(?i)<br\s*/?>|</(p|div|li|tr|h[1-6]|table|section|article)>`)
	cellRe      = regexp.MustCompile(`(?i)</t[dh]>`)
	tagRe       = regexp.MustCompile(`<[^>]+>`)
	spaceRe     = regexp.MustCompile(`[ \t\x{00a0}]+`)
)

// StripHTML converts markup to the line-oriented text Parse expects.
// Headings become "# " lines and list items become "- " bullets.
func StripHTML(s string) string {
	s = dropBlockRe.ReplaceAllString(s, "")
	s = headingRe.ReplaceAllString(s, "\n# ")
	s = itemRe.ReplaceAllString(s, "\n- ")
	s = breakRe.ReplaceAllString(s, "\n")
	s = cellRe.ReplaceAllString(s, " ")
	s = tagRe.ReplaceAllString(s, "")
	s = html.UnescapeString(s)

	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		l = strings.TrimSpace(spaceRe.ReplaceAllString(l, " "))
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
