package scrape

import (
	"net/url"
	"path"
	"strings"
)

// defaultExcludePatterns skip press material and legal documents that
// dealer sites publish as PDFs next to their price lists.
var defaultExcludePatterns = []string{
	"/press/*",
	"/pressmeddelanden/*",
	"/nyheter/*",
	"/karriar/*",
	"/*villkor*.pdf",
	"/*integritet*.pdf",
	"/*gdpr*.pdf",
}

// PathMatcher filters URLs based on glob-style path patterns. A pattern
// ending in "/*" also matches deeper paths, and a keyword pattern such as
// "/*villkor*.pdf" matches the file name at any depth.
type PathMatcher struct {
	patterns []string
}

// NewPathMatcher creates a PathMatcher from glob patterns such as
// "/press/*". The default patterns are used when none are given.
func NewPathMatcher(patterns []string) *PathMatcher {
	if len(patterns) == 0 {
		patterns = defaultExcludePatterns
	}
	return &PathMatcher{patterns: patterns}
}

// Patterns returns the configured patterns.
func (m *PathMatcher) Patterns() []string {
	return m.patterns
}

// IsExcluded checks whether a URL matches any exclude pattern. Unparseable
// URLs are excluded.
func (m *PathMatcher) IsExcluded(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	p := strings.ToLower(u.Path)
	for _, pattern := range m.patterns {
		if matchSegmented(strings.ToLower(pattern), p) {
			return true
		}
	}
	return false
}

func matchSegmented(pattern, urlPath string) bool {
	if ok, _ := path.Match(pattern, urlPath); ok {
		return true
	}
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if urlPath == prefix || strings.HasPrefix(urlPath, prefix+"/") {
			return true
		}
	}
	// "/*x*.pdf" matches at any depth; a bare "/*.pdf" stays at the root.
	if anyDepth(pattern) {
		if ok, _ := path.Match(pattern[1:], path.Base(urlPath)); ok {
			return true
		}
	}
	return false
}

// anyDepth reports whether pattern is a single-segment glob with a
// wildcard-bounded keyword, such as "/*villkor*.pdf".
func anyDepth(pattern string) bool {
	if !strings.HasPrefix(pattern, "/*") || strings.Contains(pattern[2:], "/") {
		return false
	}
	rest := pattern[2:]
	i := strings.Index(rest, "*")
	return i > 0
}
