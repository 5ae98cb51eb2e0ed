// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package staging persists crawled works between the crawl and ingest stages.
// Works land here as they are paged out of OpenAlex and leave once they are
// embedded and inserted into the vector database, so an interrupted crawl or
// ingest resumes where it stopped.
package staging

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/expert-engine/pkg/types"
)

const dbFile = "staging.db"

// Store manages the staging SQLite database.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates the staging database at dir/staging.db,
// creating the schema if it does not exist.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}

	dbPath := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening staging database: %w", err)
	}

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
		`CREATE TABLE IF NOT EXISTS works (
			id TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			publication_year INTEGER,
			ingested INTEGER NOT NULL DEFAULT 0,
			crawled_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_works_ingested ON works(ingested)`,
		`CREATE TABLE IF NOT EXISTS crawl_state (
			institution_id TEXT PRIMARY KEY,
			cursor TEXT,
			works_seen INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// SaveWorks upserts a batch of crawled works in one transaction. Re-crawled
// works replace the stored payload and are marked pending again so the next
// ingest picks up the refresh.
func (s *Store) SaveWorks(ctx context.Context, works []types.Work) error {
	if len(works) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO works (id, payload, publication_year, ingested, crawled_at)
		 VALUES (?, ?, ?, 0, ?)
		 ON CONFLICT(id) DO UPDATE SET
			payload=excluded.payload, publication_year=excluded.publication_year,
			ingested=0, crawled_at=excluded.crawled_at`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, w := range works {
		if w.ID == "" {
			return fmt.Errorf("work without id cannot be staged")
		}
		payload, err := json.Marshal(w)
		if err != nil {
			return fmt.Errorf("marshaling work %s: %w", w.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, w.ID, string(payload), w.PublicationYear, now); err != nil {
			return fmt.Errorf("staging work %s: %w", w.ID, err)
		}
	}
	return tx.Commit()
}

// PendingWorks returns up to limit staged works that have not been ingested,
// in id order for deterministic batching.
func (s *Store) PendingWorks(ctx context.Context, limit int) ([]types.Work, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM works WHERE ingested = 0 ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying pending works: %w", err)
	}
	defer rows.Close()

	var works []types.Work
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning work: %w", err)
		}
		var w types.Work
		if err := json.Unmarshal([]byte(payload), &w); err != nil {
			return nil, fmt.Errorf("unmarshaling staged work: %w", err)
		}
		works = append(works, w)
	}
	return works, rows.Err()
}

// MarkIngested flags the given works as ingested so PendingWorks skips them.
func (s *Store) MarkIngested(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE works SET ingested = 1 WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("preparing update: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("marking work %s ingested: %w", id, err)
		}
	}
	return tx.Commit()
}

// SaveCursor checkpoints the crawl position for an institution.
func (s *Store) SaveCursor(ctx context.Context, institutionID, cursor string, worksSeen int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO crawl_state (institution_id, cursor, works_seen, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(institution_id) DO UPDATE SET
			cursor=excluded.cursor, works_seen=excluded.works_seen,
			updated_at=excluded.updated_at`,
		institutionID, cursor, worksSeen, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("saving crawl cursor: %w", err)
	}
	return nil
}

// Cursor returns the checkpointed crawl position for an institution.
// An institution that has never been crawled yields an empty cursor.
func (s *Store) Cursor(ctx context.Context, institutionID string) (string, int, error) {
	var cursor string
	var seen int
	err := s.db.QueryRowContext(ctx,
		`SELECT cursor, works_seen FROM crawl_state WHERE institution_id = ?`,
		institutionID).Scan(&cursor, &seen)
	if err == sql.ErrNoRows {
		return "", 0, nil
	}
	if err != nil {
		return "", 0, fmt.Errorf("reading crawl cursor: %w", err)
	}
	return cursor, seen, nil
}

// Summary holds staging counts.
type Summary struct {
	Total    int `yaml:"total"`
	Pending  int `yaml:"pending"`
	Ingested int `yaml:"ingested"`
}

// Counts reports how many works are staged, pending, and ingested.
func (s *Store) Counts(ctx context.Context) (Summary, error) {
	var sum Summary
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*),
			count(*) FILTER (WHERE ingested = 0),
			count(*) FILTER (WHERE ingested = 1)
		 FROM works`).Scan(&sum.Total, &sum.Pending, &sum.Ingested)
	if err != nil {
		return Summary{}, fmt.Errorf("counting staged works: %w", err)
	}
	return sum, nil
}

// ExportYAML writes every staged work to w as a YAML document, for manual
// inspection of what a crawl produced.
func (s *Store) ExportYAML(ctx context.Context, w io.Writer) error {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM works ORDER BY id`)
	if err != nil {
		return fmt.Errorf("querying works: %w", err)
	}
	defer rows.Close()

	var works []types.Work
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return fmt.Errorf("scanning work: %w", err)
		}
		var work types.Work
		if err := json.Unmarshal([]byte(payload), &work); err != nil {
			return fmt.Errorf("unmarshaling staged work: %w", err)
		}
		works = append(works, work)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(works)
}
