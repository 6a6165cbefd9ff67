// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package synth merges scored sections across the documents of a
// collection: it orders them, drops near-duplicates, enforces quotas,
// assigns ranks, and extracts a refined excerpt per selected section.
package synth

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/persona-engine/internal/embedding"
	"github.com/pdiddy/persona-engine/internal/lexicon"
	"github.com/pdiddy/persona-engine/internal/score"
	"github.com/pdiddy/persona-engine/pkg/types"
)

// Sentence score mix for refined text.
const (
	sentenceSemantic = 0.7
	sentenceLexical  = 0.3
)

// Result is the synthesized output of one collection.
type Result struct {
	// Sections are ranked 1..k.
	Sections []types.ScoredSection

	// Insights hold one refined excerpt per section, in rank order.
	Insights []types.SubsectionInsight

	// Duplicates counts candidates dropped as near-duplicates.
	Duplicates int

	// OverQuota counts candidates dropped by the per-document quota.
	OverQuota int
}

// Synthesizer selects and refines sections.
type Synthesizer struct {
	cfg      types.SynthConfig
	embedder embedding.Embedder
}

// New returns a Synthesizer that embeds sentences with e.
func New(cfg types.SynthConfig, e embedding.Embedder) *Synthesizer {
	return &Synthesizer{cfg: cfg, embedder: e}
}

// Sort orders candidates by relevance, then confidence (both descending),
// then document, page and offset (ascending).
func Sort(cands []score.Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		switch {
		case a.RelevanceScore != b.RelevanceScore:
			return a.RelevanceScore > b.RelevanceScore
		case a.ConfidenceScore != b.ConfidenceScore:
			return a.ConfidenceScore > b.ConfidenceScore
		case a.DocumentID != b.DocumentID:
			return a.DocumentID < b.DocumentID
		case a.PageNumber != b.PageNumber:
			return a.PageNumber < b.PageNumber
		}
		return a.StartOffset < b.StartOffset
	})
}

// Select walks cands in Sort order and keeps each one that is not a
// near-duplicate of a kept section and fits the per-document quota, up
// to MaxSections. Kept sections are ranked in selection order.
func (s *Synthesizer) Select(cands []score.Candidate) ([]score.Candidate, Result) {
	ordered := append([]score.Candidate(nil), cands...)
	Sort(ordered)

	var (
		res      Result
		selected []score.Candidate
	)
	perDoc := make(map[string]int)
	seen := make(map[string]struct{})
	for _, c := range ordered {
		if len(selected) >= s.cfg.MaxSections {
			break
		}
		key := c.DocumentID + "\x00" + strings.ToLower(c.Title) + "\x00" + fmt.Sprint(c.PageNumber)
		if _, dup := seen[key]; dup || s.nearDuplicate(c, selected) {
			res.Duplicates++
			continue
		}
		if s.cfg.MaxPerDocument > 0 && perDoc[c.DocumentID] >= s.cfg.MaxPerDocument {
			res.OverQuota++
			continue
		}
		seen[key] = struct{}{}
		perDoc[c.DocumentID]++
		c.Rank = len(selected) + 1
		selected = append(selected, c)
		res.Sections = append(res.Sections, c.ScoredSection)
	}
	return selected, res
}

func (s *Synthesizer) nearDuplicate(c score.Candidate, selected []score.Candidate) bool {
	for _, other := range selected {
		if embedding.Cosine(c.Embedding, other.Embedding) >= s.cfg.DedupThreshold {
			return true
		}
	}
	return false
}

// Synthesize selects sections and derives their refined excerpts. All
// sentences of the selected sections are embedded in one call.
func (s *Synthesizer) Synthesize(ctx context.Context, cands []score.Candidate, q types.PersonaQuery) (Result, error) {
	selected, res := s.Select(cands)
	if len(selected) == 0 {
		return res, nil
	}

	spans := make([][]string, len(selected))
	var all []string
	for i, c := range selected {
		spans[i] = sentencesOf(c.Section)
		all = append(all, spans[i]...)
	}
	vecs, err := s.embedder.Embed(ctx, all)
	if err != nil {
		return res, fmt.Errorf("embedding sentences: %w", err)
	}
	if len(vecs) != len(all) {
		return res, fmt.Errorf("embedding sentences: got %d vectors for %d sentences", len(vecs), len(all))
	}

	next := 0
	for i, c := range selected {
		scores := make([]float64, len(spans[i]))
		for j, sent := range spans[i] {
			scores[j] = sentenceSemantic*embedding.Unit(embedding.Cosine(vecs[next+j], q.Embedding)) +
				sentenceLexical*lexicon.Overlap(lexicon.TermSet(sent), q.FocusTerms)
		}
		next += len(spans[i])

		text, rel := s.bestWindow(spans[i], scores)
		res.Insights = append(res.Insights, types.SubsectionInsight{
			DocumentID:     c.DocumentID,
			RefinedText:    text,
			PageNumber:     c.PageNumber,
			RelevanceScore: rel,
		})
	}
	return res, nil
}

// sentencesOf splits the body into sentences, falling back to the title
// for a section without body.
func sentencesOf(sec types.Section) []string {
	if sents := lexicon.SplitSentences(sec.BodyText); len(sents) > 0 {
		return sents
	}
	return []string{sec.Title}
}

// bestWindow returns the contiguous run of at most RefinedMaxSentences
// sentences, within RefinedMaxChars, with the highest total score, and
// its mean score. Ties go to the shorter and then the earlier window.
func (s *Synthesizer) bestWindow(sents []string, scores []float64) (string, float64) {
	maxSents := s.cfg.RefinedMaxSentences
	if maxSents <= 0 {
		maxSents = 1
	}
	bestStart, bestLen, bestTotal := 0, 1, -1.0
	for start := range sents {
		total, chars := 0.0, 0
		for n := 1; n <= maxSents && start+n <= len(sents); n++ {
			if n > 1 {
				chars++
			}
			chars += utf8.RuneCountInString(sents[start+n-1])
			if n > 1 && s.cfg.RefinedMaxChars > 0 && chars > s.cfg.RefinedMaxChars {
				break
			}
			total += scores[start+n-1]
			if total > bestTotal || (total == bestTotal && n < bestLen) {
				bestStart, bestLen, bestTotal = start, n, total
			}
		}
	}
	text := strings.Join(sents[bestStart:bestStart+bestLen], " ")
	text = lexicon.Truncate(lexicon.NormalizeSymbols(text), s.cfg.RefinedMaxChars)
	return text, embedding.Unit(bestTotal / float64(bestLen))
}
