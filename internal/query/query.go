// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package query derives the persona query of a collection: a descriptive
// passage, the focus terms used for lexical overlap, and one embedding of
// the passage.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/persona-engine/internal/embedding"
	"github.com/pdiddy/persona-engine/internal/lexicon"
	"github.com/pdiddy/persona-engine/pkg/types"
)

// Passage joins role, expertise, focus areas, task and deliverables into
// one descriptive text.
func Passage(in types.CollectionInput) string {
	var parts []string
	add := func(items ...string) {
		for _, it := range items {
			if it = strings.TrimRight(lexicon.CollapseSpace(it), ". "); it != "" {
				parts = append(parts, it)
			}
		}
	}
	add(in.Persona.Role)
	add(in.Persona.Expertise...)
	add(in.Persona.FocusAreas...)
	add(in.JobToBeDone.Task)
	add(in.JobToBeDone.Deliverables...)
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, ". ") + "."
}

// FocusTerms returns the sorted keyword stems of expertise, focus areas
// and task. When those carry no keywords the role is used.
func FocusTerms(in types.CollectionInput) []string {
	terms := lexicon.SortedSet(
		lexicon.Keywords(strings.Join(in.Persona.Expertise, " ")),
		lexicon.Keywords(strings.Join(in.Persona.FocusAreas, " ")),
		lexicon.Keywords(in.JobToBeDone.Task),
	)
	if len(terms) == 0 {
		terms = lexicon.SortedSet(lexicon.Keywords(in.Persona.Role))
	}
	return terms
}

// Synthesize builds the PersonaQuery with a single embedding call. The
// embedder must already be prepared when it needs a corpus.
func Synthesize(ctx context.Context, in types.CollectionInput, e embedding.Embedder) (types.PersonaQuery, error) {
	q := types.PersonaQuery{
		RoleText:   lexicon.CollapseSpace(in.Persona.Role),
		TaskText:   lexicon.CollapseSpace(in.JobToBeDone.Task),
		FocusTerms: FocusTerms(in),
		Passage:    Passage(in),
	}
	if q.Passage == "" {
		return q, errors.New("empty persona passage")
	}

	vecs, err := e.Embed(ctx, []string{q.Passage})
	if err != nil {
		return q, fmt.Errorf("embedding persona query: %w", err)
	}
	if len(vecs) != 1 {
		return q, fmt.Errorf("embedding persona query: got %d vectors", len(vecs))
	}
	q.Embedding = vecs[0]
	return q, nil
}
