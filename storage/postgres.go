package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"market-scanner/models"
)

// PostgresSink persists canonical listings to PostgreSQL, one row per
// listing URL. The embedding stage reads this table; writing here is what
// triggers downstream indexing.
type PostgresSink struct {
	db *sql.DB
}

// NewPostgresSink opens a connection to PostgreSQL, runs schema migration,
// and returns a ready-to-use sink.
func NewPostgresSink(dsn string) (*PostgresSink, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	s := &PostgresSink{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return s, nil
}

func (s *PostgresSink) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS listings (
			id           SERIAL PRIMARY KEY,
			source       VARCHAR(50)  NOT NULL,
			external_id  TEXT,
			url          TEXT         UNIQUE NOT NULL,
			title        TEXT         NOT NULL DEFAULT '',
			price        NUMERIC(12,2),
			currency     VARCHAR(8)   NOT NULL,
			price_period VARCHAR(16)  NOT NULL,
			bedrooms     INT,
			bathrooms    NUMERIC(4,1),
			size_sqm     NUMERIC(8,1),
			rating       NUMERIC(4,2),
			review_count INT          NOT NULL DEFAULT 0,
			area         TEXT         NOT NULL,
			address      TEXT         NOT NULL DEFAULT '',
			amenities    TEXT[]       NOT NULL DEFAULT '{}',
			scraped_at   TIMESTAMPTZ  NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_listings_area   ON listings(area);
		CREATE INDEX IF NOT EXISTS idx_listings_source ON listings(source);
		CREATE INDEX IF NOT EXISTS idx_listings_price  ON listings(price);
	`)
	return err
}

// Accept upserts one listing by URL, refreshing fields on re-scrape.
func (s *PostgresSink) Accept(ctx context.Context, l *models.Listing) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO listings (
			source, external_id, url, title, price, currency, price_period,
			bedrooms, bathrooms, size_sqm, rating, review_count,
			area, address, amenities, scraped_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (url) DO UPDATE SET
			price        = EXCLUDED.price,
			rating       = EXCLUDED.rating,
			review_count = EXCLUDED.review_count,
			amenities    = EXCLUDED.amenities,
			scraped_at   = EXCLUDED.scraped_at
	`,
		l.Source, nullStr(l.ExternalID), l.URL, l.Title, l.Price, l.Currency,
		string(l.PricePeriod), l.Bedrooms, l.Bathrooms, l.SizeSqm, l.Rating,
		l.ReviewCount, l.Area, l.Address, pq.Array(l.Amenities), l.ScrapedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert listing %q: %w", l.URL, err)
	}
	return nil
}

// FetchAll retrieves all stored listings, newest first.
func (s *PostgresSink) FetchAll(ctx context.Context) ([]*models.Listing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source, COALESCE(external_id, ''), url, title, price, currency,
		       price_period, bedrooms, bathrooms, size_sqm, rating,
		       review_count, area, address, amenities, scraped_at
		FROM listings
		ORDER BY scraped_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch all: %w", err)
	}
	defer rows.Close()

	var listings []*models.Listing
	for rows.Next() {
		l := &models.Listing{}
		var period string
		var amenities pq.StringArray
		if err := rows.Scan(
			&l.Source, &l.ExternalID, &l.URL, &l.Title, &l.Price, &l.Currency,
			&period, &l.Bedrooms, &l.Bathrooms, &l.SizeSqm, &l.Rating,
			&l.ReviewCount, &l.Area, &l.Address, &amenities, &l.ScrapedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		l.PricePeriod = models.PricePeriod(period)
		l.Amenities = amenities
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// Close closes the database connection.
func (s *PostgresSink) Close() error {
	return s.db.Close()
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
