// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package synth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/persona-engine/internal/embedding"
	"github.com/pdiddy/persona-engine/internal/score"
	"github.com/pdiddy/persona-engine/pkg/types"
)

func cand(doc string, page int, title string, rel, conf float64, vec ...float64) score.Candidate {
	return score.Candidate{
		ScoredSection: types.ScoredSection{
			Section:         types.Section{DocumentID: doc, PageNumber: page, Title: title},
			RelevanceScore:  rel,
			ConfidenceScore: conf,
		},
		Embedding: vec,
	}
}

func testConfig() types.SynthConfig {
	return types.DefaultEngineConfig().Synth
}

func titles(secs []types.ScoredSection) []string {
	var out []string
	for _, s := range secs {
		out = append(out, s.Title)
	}
	return out
}

func TestSortTieBreaks(t *testing.T) {
	cands := []score.Candidate{
		cand("b.pdf", 1, "b1", 0.8, 0.9),
		cand("a.pdf", 2, "a2", 0.8, 0.9),
		cand("a.pdf", 1, "a1-late", 0.8, 0.9),
		cand("a.pdf", 1, "a1-early", 0.8, 0.9),
		cand("c.pdf", 1, "conf", 0.8, 1.0),
		cand("z.pdf", 9, "top", 0.95, 0.7),
	}
	cands[2].StartOffset = 50
	cands[3].StartOffset = 10
	Sort(cands)

	var got []string
	for _, c := range cands {
		got = append(got, c.Title)
	}
	assert.Equal(t, []string{"top", "conf", "a1-early", "a1-late", "a2", "b1"}, got)
}

func TestSelectRanksAndCaps(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSections = 3
	s := New(cfg, nil)

	cands := []score.Candidate{
		cand("a.pdf", 1, "One", 0.9, 1, 1, 0, 0, 0),
		cand("a.pdf", 2, "Two", 0.8, 1, 0, 1, 0, 0),
		cand("b.pdf", 1, "Three", 0.7, 1, 0, 0, 1, 0),
		cand("b.pdf", 2, "Four", 0.65, 1, 0, 0, 0, 1),
	}
	selected, res := s.Select(cands)
	require.Len(t, selected, 3)
	assert.Equal(t, []string{"One", "Two", "Three"}, titles(res.Sections))
	for i, sec := range res.Sections {
		assert.Equal(t, i+1, sec.Rank)
		if i > 0 {
			assert.LessOrEqual(t, sec.RelevanceScore, res.Sections[i-1].RelevanceScore)
		}
	}
}

func TestSelectDropsNearDuplicates(t *testing.T) {
	s := New(testConfig(), nil)
	cands := []score.Candidate{
		cand("a.pdf", 1, "Hotels", 0.9, 1, 1, 0),
		cand("b.pdf", 3, "Accommodation", 0.85, 1, 0.99, 0.05),
		cand("b.pdf", 4, "Restaurants", 0.8, 1, 0, 1),
		cand("a.pdf", 1, "hotels", 0.7, 1, 0.5, 0.5),
	}
	selected, res := s.Select(cands)
	assert.Equal(t, []string{"Hotels", "Restaurants"}, titles(res.Sections))
	assert.Equal(t, 2, res.Duplicates)

	for i := range selected {
		for j := i + 1; j < len(selected); j++ {
			assert.Less(t, embedding.Cosine(selected[i].Embedding, selected[j].Embedding), testConfig().DedupThreshold)
		}
	}
}

func TestSelectPerDocumentQuota(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPerDocument = 1
	s := New(cfg, nil)
	cands := []score.Candidate{
		cand("a.pdf", 1, "A1", 0.9, 1, 1, 0, 0),
		cand("a.pdf", 2, "A2", 0.85, 1, 0, 1, 0),
		cand("b.pdf", 1, "B1", 0.8, 1, 0, 0, 1),
	}
	_, res := s.Select(cands)
	assert.Equal(t, []string{"A1", "B1"}, titles(res.Sections))
	assert.Equal(t, 1, res.OverQuota)
}

// termEmbedder maps text to counts of "revenue" and "weather".
type termEmbedder struct {
	calls int
	err   error
}

func (e *termEmbedder) Name() string { return "terms" }

func (e *termEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		l := strings.ToLower(t)
		out[i] = []float64{float64(strings.Count(l, "revenue")), float64(strings.Count(l, "weather"))}
	}
	return out, nil
}

func TestSynthesizeRefinedText(t *testing.T) {
	e := &termEmbedder{}
	s := New(testConfig(), e)
	q := types.PersonaQuery{Embedding: []float64{1, 0}, FocusTerms: []string{"revenue"}}

	first := cand("a.pdf", 2, "Results", 0.9, 1, 1, 0)
	first.BodyText = "The weather was mild. Revenue rose sharply – up 20%. Revenue margins improved. The office moved."
	second := cand("b.pdf", 1, "Revenue Outlook", 0.8, 1, 0, 1)

	res, err := s.Synthesize(context.Background(), []score.Candidate{second, first}, q)
	require.NoError(t, err)
	assert.Equal(t, 1, e.calls, "all sentences embedded in one call")
	require.Len(t, res.Insights, 2)

	assert.Equal(t, types.SubsectionInsight{
		DocumentID:     "a.pdf",
		RefinedText:    "Revenue rose sharply - up 20%. Revenue margins improved.",
		PageNumber:     2,
		RelevanceScore: 1,
	}, res.Insights[0])

	assert.Equal(t, "Revenue Outlook", res.Insights[1].RefinedText, "title stands in for an empty body")
	assert.Equal(t, "b.pdf", res.Insights[1].DocumentID)
}

func TestSynthesizeRespectsMaxChars(t *testing.T) {
	cfg := testConfig()
	cfg.RefinedMaxChars = 30
	s := New(cfg, &termEmbedder{})
	q := types.PersonaQuery{Embedding: []float64{1, 0}}

	c := cand("a.pdf", 1, "Long", 0.9, 1, 1, 0)
	c.BodyText = "Revenue grew in every single region we operate in this year. Revenue also grew last year."
	res, err := s.Synthesize(context.Background(), []score.Candidate{c}, q)
	require.NoError(t, err)
	require.Len(t, res.Insights, 1)
	assert.LessOrEqual(t, len([]rune(res.Insights[0].RefinedText)), 30)
}

func TestSynthesizeEmptyAndErrors(t *testing.T) {
	e := &termEmbedder{}
	res, err := New(testConfig(), e).Synthesize(context.Background(), nil, types.PersonaQuery{})
	require.NoError(t, err)
	assert.Empty(t, res.Sections)
	assert.Empty(t, res.Insights)
	assert.Zero(t, e.calls, "no embedding call without sections")

	bad := &termEmbedder{err: errors.New("down")}
	_, err = New(testConfig(), bad).Synthesize(context.Background(), []score.Candidate{cand("a.pdf", 1, "A", 0.9, 1, 1)}, types.PersonaQuery{})
	assert.ErrorContains(t, err, "down")
}
