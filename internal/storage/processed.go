package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hoanghai1803/minernews/internal/models"
)

// ListProcessed returns every ledger entry ordered by processed_at.
func (s *Store) ListProcessed(ctx context.Context) ([]models.ProcessedArticle, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT url, title, report_path, processed_at
		 FROM processed_articles ORDER BY processed_at, url`)
	if err != nil {
		return nil, fmt.Errorf("querying processed articles: %w", err)
	}
	defer rows.Close()

	var entries []models.ProcessedArticle
	for rows.Next() {
		var (
			e           models.ProcessedArticle
			processedAt string
		)
		if err := rows.Scan(&e.URL, &e.Title, &e.ReportPath, &processedAt); err != nil {
			return nil, fmt.Errorf("scanning processed article: %w", err)
		}
		e.ProcessedAt = parseTime(processedAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating processed articles: %w", err)
	}
	return entries, nil
}

// GetProcessed returns the ledger entry for url.
// Returns nil, ErrNotFound if no matching row exists.
func (s *Store) GetProcessed(ctx context.Context, url string) (*models.ProcessedArticle, error) {
	var (
		e           models.ProcessedArticle
		processedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT url, title, report_path, processed_at
		 FROM processed_articles WHERE url = ?`, url,
	).Scan(&e.URL, &e.Title, &e.ReportPath, &processedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting processed article: %w", err)
	}
	e.ProcessedAt = parseTime(processedAt)
	return &e, nil
}

// UpsertProcessed inserts ledger entries, updating rows whose URL already
// exists. All entries are written in one transaction.
func (s *Store) UpsertProcessed(ctx context.Context, entries []models.ProcessedArticle) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return insertProcessed(ctx, tx, entries)
	})
}

// ReplaceProcessed swaps the whole ledger index for entries in one
// transaction.
func (s *Store) ReplaceProcessed(ctx context.Context, entries []models.ProcessedArticle) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM processed_articles`); err != nil {
			return fmt.Errorf("clearing processed articles: %w", err)
		}
		return insertProcessed(ctx, tx, entries)
	})
}

func insertProcessed(ctx context.Context, tx *sql.Tx, entries []models.ProcessedArticle) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO processed_articles (url, title, report_path, processed_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET
			title        = excluded.title,
			report_path  = excluded.report_path,
			processed_at = excluded.processed_at`)
	if err != nil {
		return fmt.Errorf("preparing processed insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.URL, e.Title, e.ReportPath, formatTime(e.ProcessedAt)); err != nil {
			return fmt.Errorf("upserting processed article %q: %w", e.URL, err)
		}
	}
	return nil
}

// inTx runs fn inside a transaction, committing when fn returns nil.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// formatTime renders t the way every table stores timestamps.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
