// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package segment

import (
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/pdiddy/persona-engine/internal/lexicon"
	"github.com/pdiddy/persona-engine/pkg/types"
)

// Classification is the result of Classify: one of HeadingCandidate,
// BodyText or Unclassified.
type Classification interface {
	isClassification()
}

// HeadingCandidate is a block that opens a new section.
type HeadingCandidate struct {
	Title string
	Size  float64
	Bold  bool
}

// BodyText is a block that belongs to the current section body.
type BodyText struct {
	Text string
}

// Unclassified is a block the segmenter ignores, such as a page number or
// a run of symbols. It lowers the confidence of sections on its page.
type Unclassified struct {
	Reason string
}

func (HeadingCandidate) isClassification() {}
func (BodyText) isClassification()         {}
func (Unclassified) isClassification()     {}

// Context carries the document-level facts Classify needs.
type Context struct {
	Baseline float64
	Config   types.SegmentConfig
}

// shortLineCapsRatio is the share of capitalized words a short line needs
// to read as a heading.
const shortLineCapsRatio = 0.5

var pageNumberPattern = regexp.MustCompile(`(?i)^(page\s+)?\d+(\s*(of|/)\s*\d+)?$`)

// Classify decides whether b is a heading, body text, or noise. A heading
// needs title shape plus one typographic cue: a font size at least
// HeadingSizeRatio times the body baseline, bold styling, or a short
// capitalized line.
func Classify(b types.Block, c Context) Classification {
	text := lexicon.CollapseSpace(b.Text)
	switch {
	case text == "":
		return Unclassified{Reason: "empty"}
	case pageNumberPattern.MatchString(text):
		return Unclassified{Reason: "page number"}
	case !hasAlnum(text):
		return Unclassified{Reason: "symbols"}
	}

	title := lexicon.CleanTitle(text)
	if !titleShape(text, title, c.Config) {
		return BodyText{Text: strings.TrimSpace(b.Text)}
	}

	larger := c.Baseline > 0 && b.FontSize >= c.Baseline*c.Config.HeadingSizeRatio
	shortLine := lexicon.WordCount(title) <= c.Config.ShortLineWords &&
		lexicon.CapitalizedRatio(title) >= shortLineCapsRatio &&
		b.FontSize+0.5 >= c.Baseline
	if larger || b.Flags.Bold() || shortLine {
		return HeadingCandidate{Title: title, Size: roundSize(b.FontSize), Bold: b.Flags.Bold()}
	}
	return BodyText{Text: strings.TrimSpace(b.Text)}
}

func titleShape(raw, title string, cfg types.SegmentConfig) bool {
	return lexicon.ValidTitleLength(title) &&
		lexicon.WordCount(title) <= cfg.MaxHeadingWords &&
		!lexicon.EndsSentence(raw) &&
		lexicon.StartsUpper(title)
}

func hasAlnum(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}) >= 0
}

// roundSize buckets font sizes to half points.
func roundSize(size float64) float64 {
	return math.Round(size*2) / 2
}
