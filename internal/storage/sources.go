package storage

import (
	"context"
	"fmt"
	"slices"

	"github.com/hoanghai1803/minernews/internal/models"
)

// defaultSources defines the mining and Bitcoin news feeds seeded into a new
// database.
var defaultSources = []models.FeedSource{
	{Name: "CoinDesk", FeedURL: "https://www.coindesk.com/arc/outboundfeeds/rss/", SiteURL: "https://www.coindesk.com", IsActive: true},
	{Name: "Cointelegraph", FeedURL: "https://cointelegraph.com/rss", SiteURL: "https://cointelegraph.com", IsActive: true},
	{Name: "Bitcoin Magazine", FeedURL: "https://bitcoinmagazine.com/.rss/full/", SiteURL: "https://bitcoinmagazine.com", IsActive: true},
	{Name: "The Block", FeedURL: "https://www.theblock.co/rss.xml", SiteURL: "https://www.theblock.co", IsActive: true},
	{Name: "Decrypt", FeedURL: "https://decrypt.co/feed", SiteURL: "https://decrypt.co", IsActive: true},
	{Name: "TheMinerMag", FeedURL: "https://theminermag.com/feed", SiteURL: "https://theminermag.com", IsActive: true},
	{Name: "Hashrate Index", FeedURL: "https://hashrateindex.com/blog/rss/", SiteURL: "https://hashrateindex.com/blog", IsActive: true},
	{Name: "Bitcoin News", FeedURL: "https://news.bitcoin.com/feed/", SiteURL: "https://news.bitcoin.com", IsActive: true},
}

const sourceColumns = `id, name, feed_url, site_url, is_active, created_at`

// GetAllSources returns all feed sources regardless of active status,
// ordered by name.
func (s *Store) GetAllSources(ctx context.Context) ([]models.FeedSource, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sourceColumns+` FROM feed_sources ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying all sources: %w", err)
	}
	defer rows.Close()

	return scanSources(rows)
}

// GetActiveSources returns all feed sources where is_active = 1, ordered by
// name.
func (s *Store) GetActiveSources(ctx context.Context) ([]models.FeedSource, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sourceColumns+` FROM feed_sources WHERE is_active = 1 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying active sources: %w", err)
	}
	defer rows.Close()

	return scanSources(rows)
}

// AddSource inserts a new feed source, or re-activates it when a source
// with the same feed URL exists. The row ID is returned.
func (s *Store) AddSource(ctx context.Context, src models.FeedSource) (int64, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feed_sources (name, feed_url, site_url, is_active)
		 VALUES (?, ?, ?, 1)
		 ON CONFLICT(feed_url) DO UPDATE SET
			name      = excluded.name,
			site_url  = excluded.site_url,
			is_active = 1`,
		src.Name, src.FeedURL, src.SiteURL,
	)
	if err != nil {
		return 0, fmt.Errorf("adding source %q: %w", src.FeedURL, err)
	}

	var id int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT id FROM feed_sources WHERE feed_url = ?`, src.FeedURL,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("getting source id: %w", err)
	}
	return id, nil
}

// ToggleSource sets the is_active flag for the given source ID.
// It returns ErrNotFound if no source matches the given ID.
func (s *Store) ToggleSource(ctx context.Context, id int64, active bool) error {
	activeInt := 0
	if active {
		activeInt = 1
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE feed_sources SET is_active = ? WHERE id = ?`, activeInt, id)
	if err != nil {
		return fmt.Errorf("toggling source %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected for source %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}

	return nil
}

// SeedDefaults inserts the default feed sources if the feed_sources table is
// empty. All inserts happen within a single transaction. Calling it on a
// non-empty table is a no-op.
func (s *Store) SeedDefaults(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM feed_sources`).Scan(&count); err != nil {
		return fmt.Errorf("counting feed sources: %w", err)
	}

	if count > 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning seed transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO feed_sources (name, feed_url, site_url, is_active)
		 VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing seed statement: %w", err)
	}
	defer stmt.Close()

	for _, src := range defaultSources {
		activeInt := 0
		if src.IsActive {
			activeInt = 1
		}

		if _, err := stmt.ExecContext(ctx, src.Name, src.FeedURL, src.SiteURL, activeInt); err != nil {
			return fmt.Errorf("seeding source %q: %w", src.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing seed transaction: %w", err)
	}

	return nil
}

// scanSources reads all rows from a feed_sources query into a slice.
func scanSources(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
},
) ([]models.FeedSource, error) {
	var sources []models.FeedSource
	for rows.Next() {
		var (
			src       models.FeedSource
			isActive  int
			createdAt string
		)
		if err := rows.Scan(
			&src.ID, &src.Name, &src.FeedURL,
			&src.SiteURL, &isActive, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scanning source row: %w", err)
		}
		src.IsActive = isActive == 1
		src.CreatedAt = parseTime(createdAt)
		sources = append(sources, src)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating source rows: %w", err)
	}

	// Return empty slice instead of nil for consistent JSON serialization.
	if sources == nil {
		sources = []models.FeedSource{}
	}

	return sources, nil
}

// DefaultSources returns a copy of the feeds seeded into a new database.
func DefaultSources() []models.FeedSource {
	return slices.Clone(defaultSources)
}

// DefaultSourceCount returns the number of default feed sources that will be
// seeded into a new database.
func DefaultSourceCount() int {
	return len(defaultSources)
}
