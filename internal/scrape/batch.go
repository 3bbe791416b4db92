package scrape

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxBatchChars bounds a batch when no limit is configured.
const DefaultMaxBatchChars = 12000

// SplitBatches cuts page content into batches of at most maxChars bytes.
// Cuts fall on blank lines first, then on line ends; a single line longer
// than the limit is cut at a rune boundary. Blank batches are dropped.
func SplitBatches(content string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = DefaultMaxBatchChars
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	var (
		batches []string
		cur     strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			batches = append(batches, s)
		}
		cur.Reset()
	}
	add := func(piece, sep string) {
		if cur.Len() > 0 && cur.Len()+len(sep)+len(piece) > maxChars {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteString(sep)
		}
		cur.WriteString(piece)
	}

	for _, para := range strings.Split(content, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len(para) <= maxChars {
			add(para, "\n\n")
			continue
		}
		for _, line := range strings.Split(para, "\n") {
			for len(line) > maxChars {
				cut := runeCut(line, maxChars)
				add(line[:cut], "\n")
				line = line[cut:]
			}
			if line != "" {
				add(line, "\n")
			}
		}
	}
	flush()
	return batches
}

// runeCut returns the largest index <= n that does not split a rune.
func runeCut(s string, n int) int {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	if n == 0 {
		_, size := utf8.DecodeRuneInString(s)
		return size
	}
	return n
}
