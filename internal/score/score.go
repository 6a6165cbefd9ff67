// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package score computes relevance and confidence for sections against a
// persona query.
//
// relevance = Semantic·cos + Lexical·overlap + Structural·salience, with
// fixed weights from configuration. ScoreDocument uses the raw cosine;
// Calibrate then rescales the semantic term by the best cosine of the
// whole collection, so the top match earns the full semantic weight.
// Confidence measures extraction quality and is independent of topic.
package score

import (
	"context"
	"fmt"

	"github.com/pdiddy/persona-engine/internal/embedding"
	"github.com/pdiddy/persona-engine/internal/lexicon"
	"github.com/pdiddy/persona-engine/pkg/types"
)

// Confidence discounts.
const (
	fallbackPenalty     = 0.25
	shortBodyPenalty    = 0.2
	unclassifiedPenalty = 0.2
)

// Salience mix of heading level and position.
const (
	levelShare    = 0.7
	positionShare = 0.3
)

// Cosines below calibrationFloor are not stretched to the full scale.
const calibrationFloor = 0.05

var levelScores = map[int]float64{1: 1.0, 2: 0.75, 3: 0.5, types.LevelNone: 0.25}

// Candidate is a scored section together with its embedding, which the
// synthesizer needs for near-duplicate detection.
type Candidate struct {
	types.ScoredSection
	Embedding []float64

	// Semantic is the clamped cosine with the query; Rest is the weighted
	// lexical and structural share of the relevance.
	Semantic float64
	Rest     float64
}

// Scorer scores the sections of one document at a time.
type Scorer struct {
	cfg      types.ScoreConfig
	weights  types.Weights
	embedder embedding.Embedder
}

// NewScorer returns a Scorer with normalized weights.
func NewScorer(cfg types.ScoreConfig, e embedding.Embedder) *Scorer {
	return &Scorer{cfg: cfg, weights: cfg.Weights.Normalized(), embedder: e}
}

// ScoreDocument embeds all sections of one document in a single batch and
// scores each against q. Sections are expected in document order, which
// drives the position bias.
func (s *Scorer) ScoreDocument(ctx context.Context, sections []types.Section, q types.PersonaQuery) ([]Candidate, error) {
	if len(sections) == 0 {
		return nil, nil
	}
	texts := make([]string, len(sections))
	for i, sec := range sections {
		texts[i] = lexicon.Truncate(sec.Text(), s.cfg.MaxEmbedChars)
	}
	vecs, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding sections: %w", err)
	}
	if len(vecs) != len(sections) {
		return nil, fmt.Errorf("embedding sections: got %d vectors for %d sections", len(vecs), len(sections))
	}

	out := make([]Candidate, len(sections))
	for i, sec := range sections {
		semantic := embedding.Unit(embedding.Cosine(vecs[i], q.Embedding))
		overlap := lexicon.Overlap(lexicon.TermSet(sec.Text()), q.FocusTerms)
		rest := s.weights.Lexical*overlap +
			s.weights.Structural*Salience(sec.HeadingLevel, i, len(sections))
		out[i] = Candidate{
			ScoredSection: types.ScoredSection{
				Section:         sec,
				RelevanceScore:  embedding.Unit(s.weights.Semantic*semantic + rest),
				ConfidenceScore: Confidence(sec, s.cfg.MinBodyWords),
			},
			Embedding: vecs[i],
			Semantic:  semantic,
			Rest:      rest,
		}
	}
	return out, nil
}

// Calibrate rescales the semantic term of every candidate by the highest
// cosine in cands and recomputes relevance in place. It must see all
// candidates of a collection at once.
func (s *Scorer) Calibrate(cands []Candidate) {
	top := calibrationFloor
	for _, c := range cands {
		top = max(top, c.Semantic)
	}
	for i := range cands {
		c := &cands[i]
		c.RelevanceScore = embedding.Unit(s.weights.Semantic*c.Semantic/top + c.Rest)
	}
}

// Passes reports whether c clears both thresholds.
func (s *Scorer) Passes(c Candidate) bool {
	return c.RelevanceScore >= s.cfg.RelevanceThreshold && c.ConfidenceScore >= s.cfg.ConfidenceThreshold
}

// Filter keeps the candidates that pass both thresholds, in order.
func (s *Scorer) Filter(cands []Candidate) []Candidate {
	var kept []Candidate
	for _, c := range cands {
		if s.Passes(c) {
			kept = append(kept, c)
		}
	}
	return kept
}

// Salience favors top-level headings and earlier sections. index is the
// section's position among n sections of its document.
func Salience(level, index, n int) float64 {
	ls, ok := levelScores[level]
	if !ok {
		ls = levelScores[types.MaxHeadingLevel]
	}
	pos := 1.0
	if n > 0 {
		pos = 1 - float64(index)/float64(n)
	}
	return levelShare*ls + positionShare*pos
}

// Confidence starts at 1 and is discounted for a fallback title, a body
// shorter than minBodyWords, and unclassified blocks on the anchor page.
func Confidence(sec types.Section, minBodyWords int) float64 {
	c := 1.0
	if sec.TitleFallback {
		c -= fallbackPenalty
	}
	if words := lexicon.WordCount(sec.BodyText); minBodyWords > 0 && words < minBodyWords {
		c -= shortBodyPenalty * float64(minBodyWords-words) / float64(minBodyWords)
	}
	c -= unclassifiedPenalty * sec.UnclassifiedRatio
	return embedding.Unit(c)
}
