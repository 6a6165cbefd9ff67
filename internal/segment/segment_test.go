// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/persona-engine/pkg/types"
)

func testConfig() types.SegmentConfig {
	return types.DefaultEngineConfig().Segment
}

func body(text string) types.Block {
	return types.Block{Text: text, FontSize: 10}
}

func heading(text string, size float64) types.Block {
	return types.Block{Text: text, FontSize: size, Flags: types.FlagBold}
}

func TestBodyBaseline(t *testing.T) {
	tests := []struct {
		name   string
		blocks []types.Block
		want   float64
	}{
		{"weighted by runes", []types.Block{
			{Text: "Big Title", FontSize: 20},
			{Text: "Lots of body text in a smaller face for the baseline.", FontSize: 10.2},
		}, 10},
		{"tie goes to smaller", []types.Block{
			{Text: "abcd", FontSize: 14},
			{Text: "efgh", FontSize: 9},
		}, 9},
		{"no text", []types.Block{{Text: "  ", FontSize: 12}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := types.Document{ID: "d.pdf", Pages: []types.Page{{Number: 1, Blocks: tt.blocks}}}
			assert.Equal(t, tt.want, BodyBaseline(doc))
		})
	}
}

func TestClassify(t *testing.T) {
	c := Context{Baseline: 10, Config: testConfig()}
	tests := []struct {
		name  string
		block types.Block
		want  Classification
	}{
		{"bold heading", heading("Introduction", 10), HeadingCandidate{Title: "Introduction", Size: 10, Bold: true}},
		{"large heading", types.Block{Text: "Revenue Growth Strategy", FontSize: 16}, HeadingCandidate{Title: "Revenue Growth Strategy", Size: 16}},
		{"numbered heading", types.Block{Text: "2.1 Market Overview:", FontSize: 14}, HeadingCandidate{Title: "Market Overview", Size: 14}},
		{"short capitalized line", body("Key Findings"), HeadingCandidate{Title: "Key Findings", Size: 10}},
		{"sentence", body("Revenue grew by ten percent in the last quarter."), BodyText{Text: "Revenue grew by ten percent in the last quarter."}},
		{"bold sentence", heading("This is an emphasised sentence.", 10), BodyText{Text: "This is an emphasised sentence."}},
		{"lowercase line", body("continued from above"), BodyText{Text: "continued from above"}},
		{"too many words", types.Block{Text: "One Two Three Four Five Six Seven Eight Nine Ten Eleven Twelve Thirteen", FontSize: 16},
			BodyText{Text: "One Two Three Four Five Six Seven Eight Nine Ten Eleven Twelve Thirteen"}},
		{"small short line", types.Block{Text: "Footer Note", FontSize: 7}, BodyText{Text: "Footer Note"}},
		{"page number", body("12"), Unclassified{Reason: "page number"}},
		{"page of", body("Page 3 of 10"), Unclassified{Reason: "page number"}},
		{"symbols", body("• • •"), Unclassified{Reason: "symbols"}},
		{"empty", body("   "), Unclassified{Reason: "empty"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.block, c))
		})
	}
}

func TestSegmentSingleBoldIntroduction(t *testing.T) {
	doc := types.Document{ID: "intro.pdf", Pages: []types.Page{{Number: 1, Blocks: []types.Block{
		heading("Introduction", 11),
		{Text: "This report covers the first quarter.", FontSize: 11},
		{Text: "Revenue rose across all regions.", FontSize: 11},
		{Text: "Costs stayed flat over the period.", FontSize: 11},
	}}}}

	res, err := Segment(doc, testConfig())
	require.NoError(t, err)
	require.Len(t, res.Sections, 1)

	s := res.Sections[0]
	assert.Equal(t, "Introduction", s.Title)
	assert.Equal(t, 1, s.HeadingLevel)
	assert.Equal(t, 1, s.PageNumber)
	assert.False(t, s.TitleFallback)
	assert.Equal(t, "This report covers the first quarter.\nRevenue rose across all regions.\nCosts stayed flat over the period.", s.BodyText)
	assert.False(t, res.PageFallback)
	assert.Equal(t, 1, res.Headings)
}

func TestSegmentRelativeLevels(t *testing.T) {
	doc := types.Document{ID: "levels.pdf", Pages: []types.Page{{Number: 1, Blocks: []types.Block{
		heading("Annual Report", 20),
		body("Overview of the year and its main events in brief."),
		heading("Revenue", 14),
		body("Revenue grew steadily through the year in every region."),
		heading("Appendix Tables", 12),
		heading("Notes", 11),
		body("Figures are unaudited and subject to change later."),
	}}}}

	res, err := Segment(doc, testConfig())
	require.NoError(t, err)
	require.Len(t, res.Sections, 4)

	var levels []int
	for _, s := range res.Sections {
		levels = append(levels, s.HeadingLevel)
	}
	assert.Equal(t, []int{1, 2, 3, 3}, levels)
	assert.Empty(t, res.Sections[2].BodyText, "heading followed by heading has no body")
}

func TestSegmentBodySpansPages(t *testing.T) {
	doc := types.Document{ID: "span.pdf", Pages: []types.Page{
		{Number: 1, Blocks: []types.Block{
			heading("Market Analysis", 16),
			body("The market expanded during the year."),
		}},
		{Number: 2, Blocks: []types.Block{
			body("Growth continued into the next quarter."),
			body("2"),
		}},
	}}

	res, err := Segment(doc, testConfig())
	require.NoError(t, err)
	require.Len(t, res.Sections, 1)
	s := res.Sections[0]
	assert.Equal(t, 1, s.PageNumber)
	assert.Equal(t, 2, s.EndPage)
	assert.Contains(t, s.BodyText, "next quarter")
	assert.Equal(t, 1, res.Unclassified)
}

func TestSegmentPageFallback(t *testing.T) {
	doc := types.Document{ID: "plain.pdf", Pages: []types.Page{
		{Number: 1, Blocks: []types.Block{
			body("The city offers many hotels near the beach. Prices vary by season."),
			body("Book early for summer."),
		}},
		{Number: 2, Blocks: nil},
		{Number: 3, Blocks: []types.Block{
			body("Restaurants open late in the old town."),
		}},
	}}

	res, err := Segment(doc, testConfig())
	require.NoError(t, err)
	assert.True(t, res.PageFallback)
	require.Len(t, res.Sections, 2)

	first := res.Sections[0]
	assert.Equal(t, "The city offers many hotels near the beach", first.Title)
	assert.True(t, first.TitleFallback)
	assert.Equal(t, types.LevelNone, first.HeadingLevel)
	assert.Equal(t, 1, first.PageNumber)
	assert.Contains(t, first.BodyText, "Book early")

	assert.Equal(t, 3, res.Sections[1].PageNumber)
	assert.Equal(t, "Restaurants open late in the old town", res.Sections[1].Title)
}

func TestSegmentPreambleBeforeFirstHeading(t *testing.T) {
	doc := types.Document{ID: "pre.pdf", Pages: []types.Page{{Number: 1, Blocks: []types.Block{
		body("Prepared for internal use only by the finance team."),
		heading("Summary", 16),
		body("Results were strong this year across the board."),
	}}}}

	res, err := Segment(doc, testConfig())
	require.NoError(t, err)
	require.Len(t, res.Sections, 2)
	assert.True(t, res.Sections[0].TitleFallback)
	assert.Equal(t, "Summary", res.Sections[1].Title)
	assert.Greater(t, res.Sections[1].StartOffset, res.Sections[0].StartOffset)
}

func TestSegmentUnclassifiedRatio(t *testing.T) {
	doc := types.Document{ID: "noisy.pdf", Pages: []types.Page{{Number: 1, Blocks: []types.Block{
		heading("Results", 16),
		body("Results were good in every market we track."),
		body("***"),
		body("4"),
	}}}}

	res, err := Segment(doc, testConfig())
	require.NoError(t, err)
	require.Len(t, res.Sections, 1)
	assert.InDelta(t, 0.5, res.Sections[0].UnclassifiedRatio, 1e-9)
}

func TestSegmentEmptyDocument(t *testing.T) {
	_, err := Segment(types.Document{ID: "none.pdf"}, testConfig())
	assert.ErrorIs(t, err, ErrEmptyDocument)

	_, err = Segment(types.Document{ID: "blank.pdf", Pages: []types.Page{{Number: 1}}}, testConfig())
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestSegmentPageNumbersAreValid(t *testing.T) {
	docs := []types.Document{
		{ID: "a.pdf", Pages: []types.Page{
			{Number: 1, Blocks: []types.Block{heading("Overview", 18), body("Intro text for the guide.")}},
			{Number: 2, Blocks: []types.Block{body("More text on page two.")}},
			{Number: 3, Blocks: []types.Block{heading("Details", 14), body("Detail text here.")}},
		}},
		{ID: "b.pdf", Pages: []types.Page{
			{Number: 4, Blocks: []types.Block{body("Only body text on this page.")}},
			{Number: 7, Blocks: []types.Block{body("And again on a later page.")}},
		}},
	}
	for _, doc := range docs {
		res, err := Segment(doc, testConfig())
		require.NoError(t, err)
		require.NotEmpty(t, res.Sections)
		for _, s := range res.Sections {
			assert.True(t, doc.HasPage(s.PageNumber), "%s page %d", s.DocumentID, s.PageNumber)
			assert.True(t, doc.HasPage(s.EndPage))
			assert.Equal(t, doc.ID, s.DocumentID)
		}
	}
}
