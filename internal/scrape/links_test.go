package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/vehicle-catalog/internal/model"
)

func TestClassifyLink(t *testing.T) {
	tests := []struct {
		label string
		url   string
		want  model.LinkCategory
	}{
		{"Prislista Ceed", "https://kia.se/a.pdf", model.CategoryPriceList},
		{"", "https://kia.se/docs/ceed-prislista-2025.pdf", model.CategoryPriceList},
		{"Price list", "https://kia.se/a.pdf", model.CategoryPriceList},
		{"Ladda ner broschyr", "https://kia.se/a.pdf", model.CategoryBrochure},
		{"Teknisk data", "https://kia.se/a.pdf", model.CategorySpec},
		{"", "https://kia.se/specifikationer.pdf", model.CategorySpec},
		{"Broschyr och prislista", "https://kia.se/a.pdf", model.CategoryPriceList},
		{"Ladda ner", "https://kia.se/a.pdf", model.CategoryUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.label+tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyLink(tt.label, tt.url))
		})
	}
}

func TestDiscoverPDFLinks(t *testing.T) {
	content := `# Kia Ceed

[Prislista](/files/ceed-prislista.pdf)
[Broschyr](https://kia.se/files/ceed-broschyr.pdf "Broschyr")
<a href="../files/teknisk-data.pdf">Teknisk <b>data</b></a>
Direct: https://cdn.kia.se/ceed/2025.pdf?v=2
[Bilder](/bilder/ceed.jpg)
[Villkor](/files/allmanna-villkor.pdf)
[Prislista igen](https://kia.se/files/ceed-prislista.pdf#page=2)`

	summary := map[string]string{
		"Ladda ner": "https://kia.se/files/ceed-broschyr.pdf",
		"Mail":      "mailto:info@kia.se",
	}

	links := DiscoverPDFLinks("https://kia.se/bilar/ceed", content, summary, NewPathMatcher(nil))
	require.Len(t, links, 4)

	byURL := map[string]model.PDFLink{}
	for _, l := range links {
		byURL[l.URL] = l
	}
	assert.Equal(t, model.CategoryPriceList, byURL["https://kia.se/files/ceed-prislista.pdf"].Category)
	assert.Equal(t, "Prislista", byURL["https://kia.se/files/ceed-prislista.pdf"].Label)
	assert.Equal(t, model.CategoryBrochure, byURL["https://kia.se/files/ceed-broschyr.pdf"].Category)
	assert.Equal(t, model.CategorySpec, byURL["https://kia.se/files/teknisk-data.pdf"].Category)
	assert.Equal(t, "Teknisk data", byURL["https://kia.se/files/teknisk-data.pdf"].Label)
	assert.Equal(t, model.CategoryUnknown, byURL["https://cdn.kia.se/ceed/2025.pdf?v=2"].Category)

	for i := 1; i < len(links); i++ {
		assert.Less(t, links[i-1].URL, links[i].URL)
	}
}

func TestDiscoverPDFLinks_RelativeWithoutBase(t *testing.T) {
	links := DiscoverPDFLinks("", "[Prislista](/a.pdf)", nil, nil)
	assert.Empty(t, links)
}
