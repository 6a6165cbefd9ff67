// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/persona-engine/pkg/types"
)

// ExportEntry is one stored run in an export.
type ExportEntry struct {
	Collection string             `json:"collection" yaml:"collection"`
	Record     types.OutputRecord `json:"record" yaml:"record"`
}

const exportLimit = 100000

// ExportYAML writes the records of the runs matching opts to w.
func (s *Store) ExportYAML(ctx context.Context, w io.Writer, opts QueryOptions) error {
	entries, err := s.exportEntries(ctx, opts)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}

// ExportJSON writes the records of the runs matching opts to w.
func (s *Store) ExportJSON(ctx context.Context, w io.Writer, opts QueryOptions) error {
	entries, err := s.exportEntries(ctx, opts)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return nil
}

func (s *Store) exportEntries(ctx context.Context, opts QueryOptions) ([]ExportEntry, error) {
	args := []any{}
	query := `SELECT collection, record FROM runs`
	if opts.Collection != "" {
		query += ` WHERE collection = ?`
		args = append(args, opts.Collection)
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = exportLimit
	}
	query += ` ORDER BY timestamp DESC, run_id LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}
	defer rows.Close()

	entries := []ExportEntry{}
	for rows.Next() {
		var (
			e   ExportEntry
			raw string
		)
		if err := rows.Scan(&e.Collection, &raw); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &e.Record); err != nil {
			return nil, fmt.Errorf("decoding record: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
