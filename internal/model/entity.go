package model

// Entity is a typed span recognized by a structured OCR extractor.
// Position fields are optional because some engines omit them.
type Entity struct {
	Type         string   `json:"type"`
	Text         string   `json:"text"`
	Confidence   float64  `json:"confidence"`
	TextPosition *int64   `json:"text_position,omitempty"`
	PageIndex    *int     `json:"page_index,omitempty"`
	BoundingBoxY *float64 `json:"bounding_box_y,omitempty"`
}

// HasPosition reports whether the entity carries a text offset.
func (e Entity) HasPosition() bool {
	return e.TextPosition != nil
}
