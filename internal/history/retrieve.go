// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"context"
	"fmt"
	"strings"
)

// QueryOptions holds parameters for history queries.
type QueryOptions struct {
	// Query is the FTS5 search string matched against refined texts.
	Query string

	// Collection filters by collection name.
	Collection string

	// Limit caps the result count. Zero uses the store default.
	Limit int
}

func (q QueryOptions) limit() int {
	if q.Limit > 0 {
		return q.Limit
	}
	return defaultMaxResults
}

// RunSummary describes one stored run.
type RunSummary struct {
	RunID                 string  `json:"run_id" yaml:"run_id"`
	Collection            string  `json:"collection" yaml:"collection"`
	Persona               string  `json:"persona" yaml:"persona"`
	JobToBeDone           string  `json:"job_to_be_done" yaml:"job_to_be_done"`
	Timestamp             string  `json:"processing_timestamp" yaml:"processing_timestamp"`
	ProcessingTimeSeconds float64 `json:"processing_time_seconds" yaml:"processing_time_seconds"`
	Sections              int     `json:"sections" yaml:"sections"`
}

// ListRuns returns stored runs, newest first.
func (s *Store) ListRuns(ctx context.Context, opts QueryOptions) ([]RunSummary, error) {
	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(
		`SELECT r.run_id, r.collection, r.persona, r.job, r.timestamp, r.processing_time,
			(SELECT count(*) FROM sections s WHERE s.run_id = r.run_id)
		FROM runs r
		WHERE 1=1`)
	if opts.Collection != "" {
		qb.WriteString(` AND r.collection = ?`)
		args = append(args, opts.Collection)
	}
	qb.WriteString(` ORDER BY r.timestamp DESC, r.run_id LIMIT ?`)
	args = append(args, opts.limit())

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.Collection, &r.Persona, &r.JobToBeDone,
			&r.Timestamp, &r.ProcessingTimeSeconds, &r.Sections); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Hit is one refined text matched by Search.
type Hit struct {
	RunID          string  `json:"run_id" yaml:"run_id"`
	Collection     string  `json:"collection" yaml:"collection"`
	Persona        string  `json:"persona" yaml:"persona"`
	Document       string  `json:"document" yaml:"document"`
	PageNumber     int     `json:"page_number" yaml:"page_number"`
	RefinedText    string  `json:"refined_text" yaml:"refined_text"`
	RelevanceScore float64 `json:"relevance_score" yaml:"relevance_score"`
}

// Search runs a full-text query over the refined texts of stored runs,
// best match first.
func (s *Store) Search(ctx context.Context, opts QueryOptions) ([]Hit, error) {
	if strings.TrimSpace(opts.Query) == "" {
		return nil, fmt.Errorf("search query is empty")
	}

	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(
		`SELECT i.run_id, r.collection, r.persona, i.document, i.page, i.refined_text, i.relevance
		FROM insights_fts
		JOIN insights i ON i.rowid = insights_fts.rowid
		JOIN runs r ON r.run_id = i.run_id
		WHERE insights_fts MATCH ?`)
	args = append(args, opts.Query)
	if opts.Collection != "" {
		qb.WriteString(` AND r.collection = ?`)
		args = append(args, opts.Collection)
	}
	qb.WriteString(` ORDER BY insights_fts.rank, i.relevance DESC LIMIT ?`)
	args = append(args, opts.limit())

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("searching history: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.RunID, &h.Collection, &h.Persona, &h.Document,
			&h.PageNumber, &h.RefinedText, &h.RelevanceScore); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}
