// Package meme defines the persisted data model for meme template records.
package meme

// Box is a caption bounding box in original-image pixel space.
type Box struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// TextRegion is one caption area within a template. The slice index of a
// region inside Record.TextOptions is the index referenced by the
// content-understanding service, so regions are never inserted or removed
// after scraping.
type TextRegion struct {
	Position        Box    `json:"position"`
	UpdatedPosition *Box   `json:"updated_position,omitempty"`
	Description     string `json:"description"`
}

// Record is a single meme template's metadata, keyed in the collection by
// its template identifier (the last path segment of the generator URL).
type Record struct {
	Name             string `json:"name"`
	URL              string `json:"url"`
	ImageURL         string `json:"image_url"`
	Filename         string `json:"filename"`
	Width            int    `json:"width"`
	Height           int    `json:"height"`
	ImageNameFromSrc string `json:"image_name_from_src,omitempty"`

	// ImageDescription is nil until the enrichment stage has run; it doubles
	// as that stage's completion marker.
	ImageDescription *string `json:"image_description,omitempty"`

	TextOptions []TextRegion `json:"text_options"`

	// HasUpdatedPositions marks the position-update stage complete. It only
	// transitions from false to true.
	HasUpdatedPositions bool `json:"has_updated_positions,omitempty"`
}

// Collection maps template key to record.
type Collection = map[string]*Record

// Annotated reports whether the enrichment stage has run for this record.
func (r *Record) Annotated() bool {
	return r.ImageDescription != nil
}

// Clone returns a deep copy. Workers mutate clones so the canonical
// collection is only ever written by the dispatcher.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	if r.ImageDescription != nil {
		desc := *r.ImageDescription
		out.ImageDescription = &desc
	}
	out.TextOptions = make([]TextRegion, len(r.TextOptions))
	for i, opt := range r.TextOptions {
		out.TextOptions[i] = opt
		if opt.UpdatedPosition != nil {
			pos := *opt.UpdatedPosition
			out.TextOptions[i].UpdatedPosition = &pos
		}
	}
	return &out
}
