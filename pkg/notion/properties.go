package notion

import "github.com/jomei/notionapi"

func text(s string) []notionapi.RichText {
	return []notionapi.RichText{{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: s}}}
}

// Title builds a title property.
func Title(s string) notionapi.TitleProperty {
	return notionapi.TitleProperty{Type: notionapi.PropertyTypeTitle, Title: text(s)}
}

// RichText builds a rich-text property. Notion caps a text object at 2000
// characters, so longer input is cut.
func RichText(s string) notionapi.RichTextProperty {
	if r := []rune(s); len(r) > 2000 {
		s = string(r[:2000])
	}
	return notionapi.RichTextProperty{Type: notionapi.PropertyTypeRichText, RichText: text(s)}
}

// Number builds a number property.
func Number(n float64) notionapi.NumberProperty {
	return notionapi.NumberProperty{Type: notionapi.PropertyTypeNumber, Number: n}
}

// Select builds a select property.
func Select(name string) notionapi.SelectProperty {
	return notionapi.SelectProperty{Type: notionapi.PropertyTypeSelect, Select: notionapi.Option{Name: name}}
}

// URL builds a URL property.
func URL(u string) notionapi.URLProperty {
	return notionapi.URLProperty{Type: notionapi.PropertyTypeURL, URL: u}
}

// PlainText concatenates the plain text of a title or rich-text property.
func PlainText(p notionapi.Property) string {
	var rts []notionapi.RichText
	switch v := p.(type) {
	case *notionapi.TitleProperty:
		rts = v.Title
	case *notionapi.RichTextProperty:
		rts = v.RichText
	case notionapi.TitleProperty:
		rts = v.Title
	case notionapi.RichTextProperty:
		rts = v.RichText
	}
	var out string
	for _, rt := range rts {
		if rt.PlainText != "" {
			out += rt.PlainText
		} else if rt.Text != nil {
			out += rt.Text.Content
		}
	}
	return out
}
