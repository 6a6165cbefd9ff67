// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history persists output records of past runs in SQLite, indexes
// their refined texts for full-text search, and doubles as the embedding
// cache of the HTTP embedder.
//
// Full-text search needs mattn/go-sqlite3 built with -tags sqlite_fts5.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/persona-engine/pkg/types"
)

const (
	dbFile            = "history.db"
	defaultMaxResults = 20
)

// Store manages the run history database.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates dir/history.db and its schema.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	dbPath := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Collections save concurrently; one connection serializes writers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			collection TEXT NOT NULL,
			persona TEXT,
			job TEXT,
			timestamp TEXT,
			processing_time REAL,
			record TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_collection ON runs(collection)`,
		`CREATE TABLE IF NOT EXISTS sections (
			run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
			rank INTEGER NOT NULL,
			document TEXT NOT NULL,
			title TEXT,
			page INTEGER,
			relevance REAL,
			confidence REAL,
			PRIMARY KEY (run_id, rank)
		)`,
		`CREATE TABLE IF NOT EXISTS insights (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
			document TEXT NOT NULL,
			page INTEGER,
			refined_text TEXT NOT NULL,
			relevance REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_insights_run_id ON insights(run_id)`,
		`CREATE TABLE IF NOT EXISTS embeddings (
			key TEXT PRIMARY KEY,
			vector TEXT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='insights_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE insights_fts USING fts5(refined_text, content=insights, content_rowid=rowid)`,
			`CREATE TRIGGER insights_ai AFTER INSERT ON insights BEGIN
				INSERT INTO insights_fts(rowid, refined_text) VALUES (new.rowid, new.refined_text);
			END`,
			`CREATE TRIGGER insights_ad AFTER DELETE ON insights BEGIN
				INSERT INTO insights_fts(insights_fts, rowid, refined_text) VALUES('delete', old.rowid, old.refined_text);
			END`,
			`CREATE TRIGGER insights_au AFTER UPDATE ON insights BEGIN
				INSERT INTO insights_fts(insights_fts, rowid, refined_text) VALUES('delete', old.rowid, old.refined_text);
				INSERT INTO insights_fts(rowid, refined_text) VALUES (new.rowid, new.refined_text);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}

	return nil
}

// SaveRun stores rec under its run ID. Saving a run ID again replaces the
// earlier rows.
func (s *Store) SaveRun(ctx context.Context, collection string, rec types.OutputRecord) error {
	if rec.Metadata.RunID == "" {
		return fmt.Errorf("record of %s has no run ID", collection)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	runID := rec.Metadata.RunID
	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("deleting old run: %w", err)
	}

	meta := rec.Metadata
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, collection, persona, job, timestamp, processing_time, record)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, collection, meta.Persona, meta.JobToBeDone,
		meta.ProcessingTimestamp, meta.ProcessingTimeSeconds, string(data),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	secStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO sections (run_id, rank, document, title, page, relevance, confidence)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing section insert: %w", err)
	}
	defer secStmt.Close()

	for _, sec := range rec.ExtractedSections {
		if _, err := secStmt.ExecContext(ctx,
			runID, sec.ImportanceRank, sec.Document, sec.SectionTitle,
			sec.PageNumber, sec.RelevanceScore, sec.ConfidenceScore,
		); err != nil {
			return fmt.Errorf("inserting section %d: %w", sec.ImportanceRank, err)
		}
	}

	insStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO insights (run_id, document, page, refined_text, relevance)
		 VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insight insert: %w", err)
	}
	defer insStmt.Close()

	for _, in := range rec.SubsectionAnalysis {
		if _, err := insStmt.ExecContext(ctx,
			runID, in.DocumentID, in.PageNumber, in.RefinedText, in.RelevanceScore,
		); err != nil {
			return fmt.Errorf("inserting insight for %s: %w", in.DocumentID, err)
		}
	}

	return tx.Commit()
}

// GetEmbedding returns the cached vector for key.
func (s *Store) GetEmbedding(ctx context.Context, key string) ([]float64, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT vector FROM embeddings WHERE key = ?`, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("looking up embedding: %w", err)
	}
	var vec []float64
	if err := json.Unmarshal([]byte(raw), &vec); err != nil {
		return nil, false, fmt.Errorf("decoding embedding %s: %w", key, err)
	}
	return vec, true, nil
}

// PutEmbedding stores vec under key, replacing any earlier vector.
func (s *Store) PutEmbedding(ctx context.Context, key string, vec []float64) error {
	data, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("encoding embedding: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO embeddings (key, vector) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET vector=excluded.vector`,
		key, string(data),
	)
	if err != nil {
		return fmt.Errorf("storing embedding: %w", err)
	}
	return nil
}
