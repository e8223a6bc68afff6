// Package sqlite archives completed lead batches in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/storm-leads/internal/domain"
	_ "modernc.org/sqlite"
)

// Store implements pipeline.BatchLoader on top of modernc.org/sqlite.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dsn and configures WAL mode.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: exec %s: %w", pragma, err)
		}
	}
	return &Store{db: db}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS batches (
	id              TEXT PRIMARY KEY,
	started_at      TEXT NOT NULL,
	completed_at    TEXT NOT NULL,
	years           TEXT NOT NULL,
	skipped_years   TEXT NOT NULL,
	events_fetched  INTEGER NOT NULL,
	events_geocoded INTEGER NOT NULL,
	lead_count      INTEGER NOT NULL,
	degraded        INTEGER NOT NULL,
	source_counts   TEXT NOT NULL,
	lead_report     TEXT NOT NULL,
	portfolio       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS leads (
	id             TEXT PRIMARY KEY,
	batch_id       TEXT NOT NULL REFERENCES batches(id),
	rank           INTEGER NOT NULL,
	event_id       TEXT NOT NULL,
	event_type     TEXT NOT NULL,
	region_code    TEXT NOT NULL,
	region_name    TEXT NOT NULL,
	place          TEXT NOT NULL,
	lat            REAL,
	lon            REAL,
	magnitude      REAL NOT NULL,
	begin_time     TEXT NOT NULL,
	owner_name     TEXT NOT NULL,
	owner_phone    TEXT NOT NULL,
	owner_email    TEXT NOT NULL,
	property_address TEXT NOT NULL,
	property_value REAL,
	property_type  TEXT NOT NULL,
	source         TEXT NOT NULL,
	confidence     REAL NOT NULL,
	score          INTEGER NOT NULL,
	created_at     TEXT NOT NULL,
	assessment     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_leads_batch_rank ON leads(batch_id, rank);
CREATE INDEX IF NOT EXISTS idx_leads_region ON leads(region_name);
CREATE INDEX IF NOT EXISTS idx_batches_started_at ON batches(started_at);
`

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, migration); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// LoadBatch stores the batch and its assessed leads in one transaction.
// Loading the same batch twice fails on the primary key.
func (s *Store) LoadBatch(ctx context.Context, batch *domain.Batch) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err := insertBatch(ctx, tx, batch); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO leads (
		id, batch_id, rank, event_id, event_type, region_code, region_name, place,
		lat, lon, magnitude, begin_time, owner_name, owner_phone, owner_email, property_address,
		property_value, property_type, source, confidence, score, created_at, assessment
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare lead insert: %w", err)
	}
	defer stmt.Close()

	for i, a := range batch.Assessed {
		l := a.Lead
		assessment, err := json.Marshal(a.Assessment)
		if err != nil {
			return fmt.Errorf("sqlite: marshal assessment %s: %w", l.ID, err)
		}
		var lat, lon sql.NullFloat64
		if l.Geo != nil {
			lat = sql.NullFloat64{Float64: l.Geo.Lat, Valid: true}
			lon = sql.NullFloat64{Float64: l.Geo.Lon, Valid: true}
		}
		var value sql.NullFloat64
		if l.PropertyValue != nil {
			value = sql.NullFloat64{Float64: *l.PropertyValue, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			l.ID, batch.ID, i, l.EventID, l.EventType, l.RegionCode, l.RegionName, l.Place,
			lat, lon, l.Magnitude, formatTime(l.BeginTime), l.OwnerName, l.OwnerPhone, l.OwnerEmail, l.PropertyAddress,
			value, l.PropertyType, l.Source, l.Confidence, l.Score, formatTime(l.CreatedAt), string(assessment),
		); err != nil {
			return fmt.Errorf("sqlite: insert lead %s: %w", l.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

func insertBatch(ctx context.Context, tx *sql.Tx, batch *domain.Batch) error {
	encoded := make([]string, 0, 5)
	for _, v := range []any{batch.Years, batch.SkippedYears, batch.SourceCounts, batch.LeadReport, batch.Portfolio} {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("sqlite: marshal batch %s: %w", batch.ID, err)
		}
		encoded = append(encoded, string(data))
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO batches (
		id, started_at, completed_at, years, skipped_years, events_fetched, events_geocoded,
		lead_count, degraded, source_counts, lead_report, portfolio
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		batch.ID, formatTime(batch.StartedAt), formatTime(batch.CompletedAt), encoded[0], encoded[1],
		batch.EventsFetched, batch.EventsGeocoded, len(batch.Leads), batch.Degraded(),
		encoded[2], encoded[3], encoded[4],
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert batch %s: %w", batch.ID, err)
	}
	return nil
}

// RecentBatches returns up to limit batches, newest first.
func (s *Store) RecentBatches(ctx context.Context, limit int) ([]domain.BatchSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, started_at, completed_at, events_fetched, lead_count,
		degraded, skipped_years, source_counts FROM batches ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query batches: %w", err)
	}
	defer rows.Close()

	out := make([]domain.BatchSummary, 0)
	for rows.Next() {
		var (
			b                  domain.BatchSummary
			started, completed string
			skipped, sources   string
		)
		if err := rows.Scan(&b.ID, &started, &completed, &b.EventsFetched, &b.LeadCount,
			&b.Degraded, &skipped, &sources); err != nil {
			return nil, fmt.Errorf("sqlite: scan batch: %w", err)
		}
		b.StartedAt = parseTime(started)
		b.CompletedAt = parseTime(completed)
		if err := json.Unmarshal([]byte(skipped), &b.SkippedYears); err != nil {
			return nil, fmt.Errorf("sqlite: decode skipped years %s: %w", b.ID, err)
		}
		if err := json.Unmarshal([]byte(sources), &b.SourceCounts); err != nil {
			return nil, fmt.Errorf("sqlite: decode source counts %s: %w", b.ID, err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Leads returns the assessed leads of a batch in their original ranking.
func (s *Store) Leads(ctx context.Context, batchID string) ([]domain.AssessedLead, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM batches WHERE id = ?`, batchID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrBatchNotFound, batchID)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: lookup batch %s: %w", batchID, err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, batch_id, event_id, event_type, region_code,
		region_name, place, lat, lon, magnitude, begin_time, owner_name, owner_phone, owner_email,
		property_address, property_value, property_type, source, confidence, score, created_at, assessment
		FROM leads WHERE batch_id = ? ORDER BY rank`, batchID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query leads %s: %w", batchID, err)
	}
	defer rows.Close()

	out := make([]domain.AssessedLead, 0)
	for rows.Next() {
		a, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanLead(rows *sql.Rows) (domain.AssessedLead, error) {
	var (
		l               domain.Lead
		lat, lon, value sql.NullFloat64
		begin, created  string
		assessment      string
	)
	if err := rows.Scan(&l.ID, &l.BatchID, &l.EventID, &l.EventType, &l.RegionCode,
		&l.RegionName, &l.Place, &lat, &lon, &l.Magnitude, &begin, &l.OwnerName, &l.OwnerPhone,
		&l.OwnerEmail, &l.PropertyAddress, &value, &l.PropertyType, &l.Source, &l.Confidence, &l.Score, &created,
		&assessment); err != nil {
		return domain.AssessedLead{}, fmt.Errorf("sqlite: scan lead: %w", err)
	}
	if lat.Valid && lon.Valid {
		l.Geo = &domain.Geo{Lat: lat.Float64, Lon: lon.Float64}
	}
	if value.Valid {
		v := value.Float64
		l.PropertyValue = &v
	}
	l.BeginTime = parseTime(begin)
	l.CreatedAt = parseTime(created)

	out := domain.AssessedLead{Lead: l}
	if err := json.Unmarshal([]byte(assessment), &out.Assessment); err != nil {
		return domain.AssessedLead{}, fmt.Errorf("sqlite: decode assessment %s: %w", l.ID, err)
	}
	return out, nil
}

// timeLayout is fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
