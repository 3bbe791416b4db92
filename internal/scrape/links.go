package scrape

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/sells-group/vehicle-catalog/internal/model"
	"github.com/sells-group/vehicle-catalog/internal/textnorm"
)

var (
	mdLinkRe  = regexp.MustCompile(`\[([^\]]*)\]\(\s*<?([^)\s>]+)>?(?:\s+"[^"]*")?\s*\)`)
	hrefRe    = regexp.MustCompile(`(?is)<a\s[^>]*href\s*=\s*["']([^"']+)["'][^>]*>(.*?)</a>`)
	bareURLRe = regexp.MustCompile(`(?i)https?://[^\s<>"'()\[\]]+\.pdf(?:\?[^\s<>"'()\[\]]*)?`)
)

// Keywords are checked in order; the first category with a hit wins, so a
// "prislista" brochure still counts as a price list.
var categoryKeywords = []struct {
	category model.LinkCategory
	words    []string
}{
	{model.CategoryPriceList, []string{"prislista", "prislistor", "pricelist", "price", "priser", "pris"}},
	{model.CategoryBrochure, []string{"broschyr", "brochure", "katalog", "catalogue"}},
	{model.CategorySpec, []string{"specifikation", "specifikationer", "teknisk", "tekniska", "technical", "datasheet", "specs"}},
}

// ClassifyLink assigns a category from the link label and URL path.
func ClassifyLink(label, rawURL string) model.LinkCategory {
	hay := textnorm.Fold(label)
	if u, err := url.Parse(rawURL); err == nil {
		hay += " " + textnorm.Fold(u.Path)
	} else {
		hay += " " + textnorm.Fold(rawURL)
	}
	for _, c := range categoryKeywords {
		for _, w := range c.words {
			if strings.Contains(hay, w) {
				return c.category
			}
		}
	}
	return model.CategoryUnknown
}

// DiscoverPDFLinks finds PDF links in page content and in the reader's
// link summary. Relative links are resolved against base, links matching
// exclude are dropped and each URL is reported once, in URL order.
func DiscoverPDFLinks(base, content string, summary map[string]string, exclude *PathMatcher) []model.PDFLink {
	baseURL, _ := url.Parse(base)
	found := make(map[string]string)
	add := func(label, raw string) {
		abs, ok := resolvePDF(baseURL, raw)
		if !ok {
			return
		}
		if exclude != nil && exclude.IsExcluded(abs) {
			return
		}
		if prev, seen := found[abs]; !seen || (prev == "" && label != "") {
			found[abs] = strings.TrimSpace(label)
		}
	}

	for _, m := range mdLinkRe.FindAllStringSubmatch(content, -1) {
		add(m[1], m[2])
	}
	for _, m := range hrefRe.FindAllStringSubmatch(content, -1) {
		add(stripTags(m[2]), m[1])
	}
	for _, m := range bareURLRe.FindAllString(content, -1) {
		add("", m)
	}
	for label, raw := range summary {
		add(label, raw)
	}

	links := make([]model.PDFLink, 0, len(found))
	for u, label := range found {
		links = append(links, model.PDFLink{URL: u, Label: label, Category: ClassifyLink(label, u)})
	}
	sort.Slice(links, func(i, j int) bool { return links[i].URL < links[j].URL })
	return links
}

func resolvePDF(base *url.URL, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if !strings.HasSuffix(strings.ToLower(u.Path), ".pdf") {
		return "", false
	}
	if !u.IsAbs() {
		if base == nil || !base.IsAbs() {
			return "", false
		}
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	u.Fragment = ""
	return u.String(), true
}

var anyTagRe = regexp.MustCompile(`<[^>]+>`)

func stripTags(s string) string {
	return strings.Join(strings.Fields(anyTagRe.ReplaceAllString(s, " ")), " ")
}
