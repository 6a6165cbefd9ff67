// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs the relevance engine over document collections:
// input loading, concurrent parsing and segmentation, query synthesis,
// scoring, cross-document synthesis, and output assembly.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/persona-engine/internal/assemble"
	"github.com/pdiddy/persona-engine/internal/docparse"
	"github.com/pdiddy/persona-engine/internal/embedding"
	"github.com/pdiddy/persona-engine/internal/lexicon"
	"github.com/pdiddy/persona-engine/internal/query"
	"github.com/pdiddy/persona-engine/internal/score"
	"github.com/pdiddy/persona-engine/internal/segment"
	"github.com/pdiddy/persona-engine/internal/synth"
	"github.com/pdiddy/persona-engine/pkg/types"
)

// Runner processes collections with one configuration. It holds no state
// that is shared between collections besides the embedder factory.
type Runner struct {
	cfg      types.EngineConfig
	registry *docparse.Registry
	factory  embedding.Factory
	logger   *slog.Logger

	// Now and NewRunID are the clock and run ID source. Tests replace
	// them to make records reproducible.
	Now      func() time.Time
	NewRunID func() string
}

// NewRunner returns a Runner. A nil logger discards log output.
func NewRunner(cfg types.EngineConfig, registry *docparse.Registry, factory embedding.Factory, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{
		cfg:      cfg,
		registry: registry,
		factory:  factory,
		logger:   logger,
		Now:      time.Now,
		NewRunID: uuid.NewString,
	}
}

// docResult is the outcome of parsing and segmenting one document.
type docResult struct {
	ref      docRef
	sections []types.Section
	warnings []types.Warning
	ok       bool
}

// RunCollection processes the collection in dir and returns its record.
// Unreadable documents become warnings; metadata and embedding failures
// abort the collection.
func (r *Runner) RunCollection(ctx context.Context, dir string) (types.OutputRecord, error) {
	start := r.Now()
	name := filepath.Base(filepath.Clean(dir))
	log := r.logger.With("collection", name)

	in, err := LoadInput(dir)
	if err != nil {
		return types.OutputRecord{}, err
	}
	refs, err := discoverDocuments(dir, in, r.registry)
	if err != nil {
		return types.OutputRecord{}, err
	}
	log.Debug("loaded collection", "documents", len(refs))

	results, err := r.segmentAll(ctx, refs)
	if err != nil {
		return types.OutputRecord{}, err
	}

	var (
		warnings []types.Warning
		perDoc   [][]types.Section
		corpus   []string
		total    int
	)
	for _, res := range results {
		warnings = append(warnings, res.warnings...)
		if !res.ok {
			continue
		}
		perDoc = append(perDoc, res.sections)
		for _, s := range res.sections {
			corpus = append(corpus, lexicon.Truncate(s.Text(), r.cfg.Score.MaxEmbedChars))
		}
		total += len(res.sections)
	}

	assembleInput := assemble.Input{
		Documents:   processedDocs(results),
		Persona:     lexicon.CollapseSpace(in.Persona.Role),
		JobToBeDone: lexicon.CollapseSpace(in.JobToBeDone.Task),
		Started:     start,
		RunID:       r.NewRunID(),
	}

	if total == 0 {
		reason := "no sections survived segmentation"
		if len(refs) == 0 {
			reason = "no documents found"
		}
		empty := &EmptyCollectionError{Collection: name, Reason: reason}
		log.Warn("empty collection", "reason", reason)
		assembleInput.Warnings = append(warnings, types.Warning{Kind: types.WarnEmptyCollection, Message: empty.Error()})
		assembleInput.Elapsed = r.Now().Sub(start)
		return assemble.Assemble(assembleInput), nil
	}

	embedder, err := r.factory()
	if err != nil {
		return types.OutputRecord{}, &EmbeddingServiceError{Err: err}
	}
	if p, ok := embedder.(embedding.Preparer); ok {
		if err := p.Prepare(append(corpus, query.Passage(in))); err != nil {
			return types.OutputRecord{}, &EmbeddingServiceError{Err: err}
		}
	}
	q, err := query.Synthesize(ctx, in, embedder)
	if err != nil {
		return types.OutputRecord{}, &EmbeddingServiceError{Err: err}
	}

	scorer := score.NewScorer(r.cfg.Score, embedder)
	cands, dropped, err := r.scoreAll(ctx, scorer, perDoc, q)
	if err != nil {
		return types.OutputRecord{}, err
	}
	if len(dropped) > 0 {
		warnings = append(warnings, dropped...)
		assembleInput.Documents = removeDocs(assembleInput.Documents, dropped)
	}

	scorer.Calibrate(cands)
	kept := scorer.Filter(cands)
	res, err := synth.New(r.cfg.Synth, embedder).Synthesize(ctx, kept, q)
	if err != nil {
		return types.OutputRecord{}, &EmbeddingServiceError{Err: err}
	}

	assembleInput.Warnings = warnings
	assembleInput.Sections = res.Sections
	assembleInput.Insights = res.Insights
	assembleInput.Elapsed = r.Now().Sub(start)

	log.Info("collection ranked",
		"documents", len(assembleInput.Documents),
		"sections", total,
		"candidates", len(kept),
		"selected", len(res.Sections),
		"duplicates", res.Duplicates,
		"embedder", embedder.Name(),
	)
	return assemble.Assemble(assembleInput), nil
}

// segmentAll parses and segments every document concurrently. Each
// document runs under its own timeout; only cancellation of ctx aborts
// the collection.
func (r *Runner) segmentAll(ctx context.Context, refs []docRef) ([]docResult, error) {
	results := make([]docResult, len(refs))
	var g errgroup.Group
	g.SetLimit(r.concurrency())
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			results[i] = r.segmentOne(ctx, ref)
			return nil
		})
	}
	g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Runner) segmentOne(ctx context.Context, ref docRef) docResult {
	res := docResult{ref: ref}
	doc, err := withTimeout(ctx, r.cfg.DocumentTimeout, func(ctx context.Context) (types.Document, error) {
		if ref.Err != nil {
			return types.Document{}, ref.Err
		}
		return r.registry.Parse(ctx, ref.Path)
	})
	if err != nil {
		perr := &DocumentParseError{Document: ref.ID, Err: err}
		kind := types.WarnParse
		if errors.Is(err, context.DeadlineExceeded) {
			kind = types.WarnTimeout
		}
		r.logger.Warn("skipping document", "document", ref.ID, "error", err)
		res.warnings = append(res.warnings, types.Warning{Document: ref.ID, Kind: kind, Message: perr.Error()})
		return res
	}
	doc.ID = ref.ID

	seg, err := segment.Segment(doc, r.cfg.Segment)
	if err != nil {
		perr := &DocumentParseError{Document: ref.ID, Err: err}
		r.logger.Warn("skipping document", "document", ref.ID, "error", err)
		res.warnings = append(res.warnings, types.Warning{Document: ref.ID, Kind: types.WarnNoSections, Message: perr.Error()})
		return res
	}

	res.ok = true
	res.sections = seg.Sections
	switch {
	case len(seg.Sections) == 0:
		res.warnings = append(res.warnings, types.Warning{
			Document: ref.ID, Kind: types.WarnNoSections,
			Message: fmt.Sprintf("%d blocks, none usable as sections", seg.Blocks),
		})
	case seg.PageFallback:
		res.warnings = append(res.warnings, types.Warning{
			Document: ref.ID, Kind: types.WarnPageFallback,
			Message: fmt.Sprintf("no headings detected; split into %d page sections", len(seg.Sections)),
		})
	default:
		if n := countFallbackTitles(seg.Sections); n > 0 {
			res.warnings = append(res.warnings, types.Warning{
				Document: ref.ID, Kind: types.WarnTitleFallback,
				Message: fmt.Sprintf("%d sections titled from their first line", n),
			})
		}
	}
	r.logger.Debug("segmented document",
		"document", ref.ID,
		"pages", len(doc.Pages),
		"sections", len(seg.Sections),
		"baseline", seg.Baseline,
		"unclassified", seg.Unclassified,
	)
	return res
}

// scoreAll scores each document's sections concurrently. A document whose
// scoring times out is dropped with a warning; any other embedding
// failure aborts the collection.
func (r *Runner) scoreAll(ctx context.Context, scorer *score.Scorer, perDoc [][]types.Section, q types.PersonaQuery) ([]score.Candidate, []types.Warning, error) {
	scored := make([][]score.Candidate, len(perDoc))
	timedOut := make([]bool, len(perDoc))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency())
	for i, secs := range perDoc {
		if len(secs) == 0 {
			continue
		}
		i, secs := i, secs
		g.Go(func() error {
			cands, err := withTimeout(gctx, r.cfg.DocumentTimeout, func(ctx context.Context) ([]score.Candidate, error) {
				return scorer.ScoreDocument(ctx, secs, q)
			})
			switch {
			case err == nil:
				scored[i] = cands
				return nil
			case errors.Is(err, context.DeadlineExceeded) && gctx.Err() == nil:
				timedOut[i] = true
				return nil
			case gctx.Err() != nil && ctx.Err() != nil:
				return ctx.Err()
			}
			return &EmbeddingServiceError{Err: fmt.Errorf("%s: %w", secs[0].DocumentID, err)}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var (
		cands    []score.Candidate
		warnings []types.Warning
	)
	for i, c := range scored {
		if timedOut[i] {
			doc := perDoc[i][0].DocumentID
			perr := &DocumentParseError{Document: doc, Err: context.DeadlineExceeded}
			r.logger.Warn("scoring timed out", "document", doc)
			warnings = append(warnings, types.Warning{Document: doc, Kind: types.WarnTimeout, Message: perr.Error()})
			continue
		}
		cands = append(cands, c...)
	}
	return cands, warnings, nil
}

func (r *Runner) concurrency() int {
	if r.cfg.Concurrency > 0 {
		return r.cfg.Concurrency
	}
	return 1
}

// withTimeout runs fn under a deadline of d. It returns when fn returns or
// the deadline passes, whichever comes first, so a collaborator that
// ignores ctx cannot stall the run. A late result from fn is discarded.
func withTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if d <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{v, err}
	}()
	select {
	case res := <-done:
		return res.val, res.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func countFallbackTitles(secs []types.Section) int {
	n := 0
	for _, s := range secs {
		if s.TitleFallback {
			n++
		}
	}
	return n
}

func processedDocs(results []docResult) []string {
	var out []string
	for _, r := range results {
		if r.ok {
			out = append(out, r.ref.ID)
		}
	}
	return out
}

func removeDocs(docs []string, dropped []types.Warning) []string {
	skip := make(map[string]bool, len(dropped))
	for _, w := range dropped {
		skip[w.Document] = true
	}
	var out []string
	for _, d := range docs {
		if !skip[d] {
			out = append(out, d)
		}
	}
	return out
}
