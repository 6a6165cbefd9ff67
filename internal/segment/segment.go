// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package segment turns a parsed document into titled sections using
// typography cues: a body font-size baseline, heading classification, and
// relative heading levels.
package segment

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/persona-engine/internal/lexicon"
	"github.com/pdiddy/persona-engine/pkg/types"
)

// ErrEmptyDocument is returned for a document without pages or text.
var ErrEmptyDocument = errors.New("document has no text")

// Result holds the sections of one document and classification counts.
type Result struct {
	Sections []types.Section

	// Baseline is the body font size.
	Baseline float64

	Blocks       int
	Headings     int
	Unclassified int

	// PageFallback is set when no headings were found and the document
	// was split one section per page.
	PageFallback bool
}

// BodyBaseline returns the most common font size in doc, weighting each
// block by its rune count. Sizes are bucketed to half points and ties
// resolve to the smaller size. It returns 0 for a document without text.
func BodyBaseline(doc types.Document) float64 {
	hist := make(map[float64]int)
	for _, p := range doc.Pages {
		for _, b := range p.Blocks {
			if n := utf8.RuneCountInString(strings.TrimSpace(b.Text)); n > 0 && b.FontSize > 0 {
				hist[roundSize(b.FontSize)] += n
			}
		}
	}
	var best float64
	bestCount := 0
	for size, count := range hist {
		if count > bestCount || (count == bestCount && size < best) {
			best, bestCount = size, count
		}
	}
	return best
}

type classified struct {
	page  int
	class Classification
	start int
}

// Segment splits doc into sections. Each heading candidate opens a
// section; body blocks up to the next heading form its body, across page
// breaks, while the section stays anchored to the heading's page. Body
// text ahead of the first heading is grouped per page under a title taken
// from its first line. A document without headings yields one such
// section per page.
func Segment(doc types.Document, cfg types.SegmentConfig) (Result, error) {
	if len(doc.Pages) == 0 || doc.IsEmpty() {
		return Result{}, ErrEmptyDocument
	}

	res := Result{Baseline: BodyBaseline(doc)}
	c := Context{Baseline: res.Baseline, Config: cfg}

	var items []classified
	unclassified := make(map[int]int)
	blocks := make(map[int]int)
	headingSizes := make(map[float64]struct{})
	offset := 0
	for _, p := range doc.Pages {
		for _, b := range p.Blocks {
			class := Classify(b, c)
			items = append(items, classified{page: p.Number, class: class, start: offset})
			offset += utf8.RuneCountInString(b.Text) + 1
			blocks[p.Number]++
			res.Blocks++
			switch h := class.(type) {
			case HeadingCandidate:
				headingSizes[h.Size] = struct{}{}
				res.Headings++
			case Unclassified:
				unclassified[p.Number]++
				res.Unclassified++
			}
		}
	}

	ratio := func(page int) float64 {
		if blocks[page] == 0 {
			return 0
		}
		return float64(unclassified[page]) / float64(blocks[page])
	}
	levels := headingLevels(headingSizes)
	res.PageFallback = res.Headings == 0

	var (
		sections []types.Section
		cur      *types.Section
		body     []string
	)
	flush := func() {
		if cur == nil {
			return
		}
		cur.BodyText = strings.Join(body, "\n")
		sections = append(sections, *cur)
		cur, body = nil, nil
	}

	for _, it := range items {
		switch v := it.class.(type) {
		case HeadingCandidate:
			flush()
			cur = &types.Section{
				DocumentID:        doc.ID,
				PageNumber:        it.page,
				EndPage:           it.page,
				Title:             v.Title,
				HeadingLevel:      levels[v.Size],
				StartOffset:       it.start,
				UnclassifiedRatio: ratio(it.page),
			}
		case BodyText:
			if cur == nil || (cur.TitleFallback && cur.PageNumber != it.page) {
				flush()
				title, rest := fallbackTitle(v.Text, it.page)
				cur = &types.Section{
					DocumentID:        doc.ID,
					PageNumber:        it.page,
					EndPage:           it.page,
					Title:             title,
					HeadingLevel:      types.LevelNone,
					StartOffset:       it.start,
					TitleFallback:     true,
					UnclassifiedRatio: ratio(it.page),
				}
				if rest != "" {
					body = append(body, rest)
				}
				continue
			}
			cur.EndPage = it.page
			body = append(body, v.Text)
		}
	}
	flush()

	res.Sections = sections
	return res, nil
}

// headingLevels maps distinct heading sizes, largest first, to levels
// 1..MaxHeadingLevel.
func headingLevels(sizes map[float64]struct{}) map[float64]int {
	ordered := make([]float64, 0, len(sizes))
	for s := range sizes {
		ordered = append(ordered, s)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(ordered)))
	levels := make(map[float64]int, len(ordered))
	for i, s := range ordered {
		level := i + 1
		if level > types.MaxHeadingLevel {
			level = types.MaxHeadingLevel
		}
		levels[s] = level
	}
	return levels
}

// fallbackTitle takes the first sentence of the first line of text as a
// title. The remaining lines form the body; a single-line block is kept
// whole as the body.
func fallbackTitle(text string, page int) (string, string) {
	first, rest, _ := strings.Cut(text, "\n")
	if sentences := lexicon.SplitSentences(first); len(sentences) > 0 {
		first = sentences[0]
	}
	title := lexicon.Truncate(lexicon.CleanTitle(first), lexicon.MaxTitleLen)
	if title == "" {
		title = fmt.Sprintf("Page %d", page)
	}
	if rest = strings.TrimSpace(rest); rest == "" {
		return title, text
	}
	return title, rest
}
