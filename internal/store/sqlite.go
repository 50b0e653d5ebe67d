package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/samobrien878/Williams-Data-Pipline/internal/config"
	apperrors "github.com/samobrien878/Williams-Data-Pipline/internal/errors"
	"github.com/samobrien878/Williams-Data-Pipline/pkg/contracts/domain"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS raw_trials (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		trial_key   TEXT NOT NULL,
		source_file TEXT NOT NULL,
		rat_id      INTEGER NOT NULL,
		doc         TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_raw_trials_key ON raw_trials(trial_key)`,
	`CREATE TABLE IF NOT EXISTS daily_summaries (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		source_file TEXT NOT NULL,
		ingested_at TEXT NOT NULL,
		doc         TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_daily_summaries_source ON daily_summaries(source_file)`,
}

// SQLiteStore keeps JSON documents in an embedded SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	upsert bool
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) the database at path. Use ":memory:" for
// a throwaway store.
func NewSQLiteStore(ctx context.Context, path, writeMode string, logger *slog.Logger) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, apperrors.NewStorageError("open sqlite", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, apperrors.NewStorageError("ping sqlite", err)
	}
	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, apperrors.NewStorageError("create schema", err)
		}
	}

	return &SQLiteStore{
		db:     db,
		upsert: writeMode != config.WriteModeInsert,
		logger: logger.With(slog.String("component", "sqlite_store")),
	}, nil
}

// WriteTrials implements Store. The batch is written in one transaction.
func (s *SQLiteStore) WriteTrials(ctx context.Context, records []domain.TrialRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, apperrors.NewStorageError("begin trials tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, r := range records {
		doc, err := json.Marshal(r)
		if err != nil {
			return 0, apperrors.NewStorageError("encode trial", err)
		}
		key := r.Key()
		if s.upsert {
			if _, err := tx.ExecContext(ctx, `DELETE FROM raw_trials WHERE trial_key = ?`, key); err != nil {
				return 0, apperrors.NewStorageError("replace trial", err).WithContext("key", key)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO raw_trials (trial_key, source_file, rat_id, doc) VALUES (?, ?, ?, ?)`,
			key, r.SourceFile, r.RatID, string(doc)); err != nil {
			return 0, apperrors.NewStorageError("insert trial", err).WithContext("key", key)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, apperrors.NewStorageError("commit trials", err)
	}
	return len(records), nil
}

// WriteSummary implements Store.
func (s *SQLiteStore) WriteSummary(ctx context.Context, doc domain.SummaryDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return apperrors.NewStorageError("encode summary", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewStorageError("begin summary tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	if s.upsert {
		if _, err := tx.ExecContext(ctx, `DELETE FROM daily_summaries WHERE source_file = ?`, doc.SourceFile); err != nil {
			return apperrors.NewStorageError("replace summary", err).WithContext("file", doc.SourceFile)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO daily_summaries (source_file, ingested_at, doc) VALUES (?, ?, ?)`,
		doc.SourceFile, doc.IngestedAt.UTC().Format(time.RFC3339Nano), string(data)); err != nil {
		return apperrors.NewStorageError("insert summary", err).WithContext("file", doc.SourceFile)
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewStorageError("commit summary", err)
	}
	return nil
}

func (s *SQLiteStore) summaryDocuments(ctx context.Context) ([]domain.SummaryDocument, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT doc FROM daily_summaries ORDER BY id`)
	if err != nil {
		return nil, apperrors.NewStorageError("query summaries", err)
	}
	defer rows.Close()

	var docs []domain.SummaryDocument
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, apperrors.NewStorageError("scan summary", err)
		}
		var doc domain.SummaryDocument
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, apperrors.NewStorageError("decode summary", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("iterate summaries", err)
	}
	return docs, nil
}

// ListSummaries implements Store.
func (s *SQLiteStore) ListSummaries(ctx context.Context, filter SummaryFilter) ([]domain.DailySummary, error) {
	docs, err := s.summaryDocuments(ctx)
	if err != nil {
		return nil, err
	}
	return collectSummaries(docs, filter), nil
}

// Subjects implements Store.
func (s *SQLiteStore) Subjects(ctx context.Context) ([]int, error) {
	rows, err := s.ListSummaries(ctx, SummaryFilter{})
	if err != nil {
		return nil, err
	}
	return subjectsOf(rows), nil
}

// CountTrials implements Store.
func (s *SQLiteStore) CountTrials(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM raw_trials`).Scan(&n); err != nil {
		return 0, apperrors.NewStorageError("count trials", err)
	}
	return n, nil
}

// Ping implements Store.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return apperrors.NewStorageError("ping sqlite", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close(_ context.Context) error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	s.logger.Debug("sqlite store closed")
	return nil
}
