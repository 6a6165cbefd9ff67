// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the records that flow through the relevance
// engine: parsed documents, segmented sections, scored sections, the
// persona query, and the output record, plus the engine configuration.
package types

// FontFlags records the emphasis styling of a text block.
type FontFlags uint8

const (
	FlagBold FontFlags = 1 << iota
	FlagItalic
)

// Bold reports whether the bold flag is set.
func (f FontFlags) Bold() bool { return f&FlagBold != 0 }

// Italic reports whether the italic flag is set.
func (f FontFlags) Italic() bool { return f&FlagItalic != 0 }

// BBox is a block's bounding box in page coordinates.
type BBox struct {
	X0 float64 `json:"x0" yaml:"x0"`
	Y0 float64 `json:"y0" yaml:"y0"`
	X1 float64 `json:"x1" yaml:"x1"`
	Y1 float64 `json:"y1" yaml:"y1"`
}

// Block is a styled run of text as produced by a document parser.
type Block struct {
	Text     string    `json:"text" yaml:"text"`
	FontSize float64   `json:"font_size" yaml:"font_size"`
	FontName string    `json:"font_name,omitempty" yaml:"font_name,omitempty"`
	Flags    FontFlags `json:"flags" yaml:"flags"`
	BBox     BBox      `json:"bbox" yaml:"bbox"`
}

// Page is one page of a document. Number is 1-based.
type Page struct {
	Number int     `json:"number" yaml:"number"`
	Blocks []Block `json:"blocks" yaml:"blocks"`
}

// Document is a parsed input file. ID is the file name.
type Document struct {
	ID    string `json:"id" yaml:"id"`
	Pages []Page `json:"pages" yaml:"pages"`
}

// HasPage reports whether n is a valid page number of the document.
func (d Document) HasPage(n int) bool {
	for _, p := range d.Pages {
		if p.Number == n {
			return true
		}
	}
	return false
}

// IsEmpty reports whether the document carries no text at all.
func (d Document) IsEmpty() bool {
	for _, p := range d.Pages {
		for _, b := range p.Blocks {
			if b.Text != "" {
				return false
			}
		}
	}
	return true
}

// LevelNone marks a section that was not introduced by a detected heading.
const LevelNone = 0

// MaxHeadingLevel is the deepest heading level the segmenter assigns.
const MaxHeadingLevel = 3

// Section is a titled, contiguous span of a document. It is the unit of
// ranking.
type Section struct {
	// DocumentID is the file name of the source document.
	DocumentID string `json:"document" yaml:"document"`

	// PageNumber is the page of the section title (the anchor page).
	PageNumber int `json:"page_number" yaml:"page_number"`

	// EndPage is the last page the body reaches.
	EndPage int `json:"end_page" yaml:"end_page"`

	// Title is the cleaned heading text.
	Title string `json:"section_title" yaml:"section_title"`

	// BodyText holds the body blocks joined with newlines.
	BodyText string `json:"body_text" yaml:"body_text"`

	// HeadingLevel is 1 for top-level headings, up to MaxHeadingLevel;
	// LevelNone for page fallback sections.
	HeadingLevel int `json:"heading_level" yaml:"heading_level"`

	// StartOffset is the rune offset of the title within the document text.
	StartOffset int `json:"start_offset" yaml:"start_offset"`

	// TitleFallback is set when the title was derived from the first line
	// of a page instead of a detected heading.
	TitleFallback bool `json:"title_fallback,omitempty" yaml:"title_fallback,omitempty"`

	// UnclassifiedRatio is the share of blocks on the anchor page that the
	// classifier could not place.
	UnclassifiedRatio float64 `json:"unclassified_ratio,omitempty" yaml:"unclassified_ratio,omitempty"`
}

// Text returns the title and body joined for embedding and token overlap.
func (s Section) Text() string {
	if s.BodyText == "" {
		return s.Title
	}
	return s.Title + "\n" + s.BodyText
}
