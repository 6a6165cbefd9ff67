// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package assemble packages ranked sections, refined excerpts and run
// metadata into the output record and encodes it as JSON.
package assemble

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/pdiddy/persona-engine/pkg/types"
)

// Input carries everything the output record is built from.
type Input struct {
	// Documents lists the documents that were processed successfully.
	Documents []string

	Persona     string
	JobToBeDone string

	Started time.Time
	Elapsed time.Duration
	RunID   string

	Warnings []types.Warning
	Sections []types.ScoredSection
	Insights []types.SubsectionInsight
}

// Assemble builds the output record. Scores are rounded to four decimals
// and empty lists encode as [] rather than null.
func Assemble(in Input) types.OutputRecord {
	rec := types.OutputRecord{
		Metadata: types.OutputMetadata{
			InputDocuments:        append([]string{}, in.Documents...),
			Persona:               in.Persona,
			JobToBeDone:           in.JobToBeDone,
			ProcessingTimestamp:   in.Started.UTC().Format(time.RFC3339),
			ProcessingTimeSeconds: roundTo(in.Elapsed.Seconds(), 3),
			RunID:                 in.RunID,
			DocumentsProcessed:    len(in.Documents),
			Warnings:              append([]types.Warning{}, in.Warnings...),
		},
		ExtractedSections:  make([]types.ExtractedSection, 0, len(in.Sections)),
		SubsectionAnalysis: make([]types.SubsectionInsight, 0, len(in.Insights)),
	}
	for _, s := range in.Sections {
		rec.ExtractedSections = append(rec.ExtractedSections, types.ExtractedSection{
			Document:        s.DocumentID,
			SectionTitle:    s.Title,
			ImportanceRank:  s.Rank,
			PageNumber:      s.PageNumber,
			RelevanceScore:  Round(s.RelevanceScore),
			ConfidenceScore: Round(s.ConfidenceScore),
		})
	}
	for _, ins := range in.Insights {
		ins.RelevanceScore = Round(ins.RelevanceScore)
		rec.SubsectionAnalysis = append(rec.SubsectionAnalysis, ins)
	}
	return rec
}

// Round rounds a score to four decimals.
func Round(v float64) float64 {
	return roundTo(v, 4)
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Encode writes rec as two-space indented JSON without HTML escaping.
func Encode(w io.Writer, rec types.OutputRecord) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return fmt.Errorf("encoding output record: %w", err)
	}
	return nil
}
