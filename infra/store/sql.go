// Package store persists trajectory buckets in SQLite or PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/bustrack/core/model"
	corestore "github.com/kilianp07/bustrack/core/store"
)

const dateColumnLayout = "2006-01-02"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS buckets (
		bucket_key TEXT PRIMARY KEY,
		line TEXT NOT NULL,
		end_station BIGINT NOT NULL,
		day TEXT NOT NULL,
		vehicle_id TEXT NOT NULL,
		journey_id TEXT NOT NULL,
		meta TEXT NOT NULL,
		last_observed BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS buckets_scope ON buckets (line, end_station, day)`,
	`CREATE TABLE IF NOT EXISTS samples (
		bucket_key TEXT NOT NULL,
		observed_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		delay_s INTEGER NOT NULL,
		lat DOUBLE PRECISION NOT NULL,
		lon DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (bucket_key, observed_at)
	)`,
}

// SQLStore is a trajectory store on database/sql. Queries are written with
// "?" placeholders and rebound for drivers using "$n".
type SQLStore struct {
	db     *sql.DB
	dollar bool
}

var (
	_ corestore.Store     = (*SQLStore)(nil)
	_ corestore.KeyLister = (*SQLStore)(nil)
)

func newSQLStore(ctx context.Context, db *sql.DB, dollar bool) (*SQLStore, error) {
	s := &SQLStore{db: db, dollar: dollar}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			if cerr := db.Close(); cerr != nil {
				return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
			}
			return nil, fmt.Errorf("schema: %w", err)
		}
	}
	return s, nil
}

func (s *SQLStore) q(query string) string {
	if !s.dollar {
		return query
	}
	return rebind(query)
}

// rebind turns "?" placeholders into "$1", "$2", ...
func rebind(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Append adds a sample and replaces the bucket metadata in one transaction.
// Keys that would not decode are refused with a *store.FormatError.
func (s *SQLStore) Append(ctx context.Context, key corestore.Key, sample model.Sample, meta model.JourneyMeta) (err error) {
	if err := key.Validate(); err != nil {
		return err
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	id := key.String()
	obs := sample.ObservedAt.UnixNano()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var last int64
	switch err = tx.QueryRowContext(ctx, s.q(`SELECT last_observed FROM buckets WHERE bucket_key = ?`), id).Scan(&last); {
	case errors.Is(err, sql.ErrNoRows):
		err = nil
	case err != nil:
		return err
	case obs <= last:
		return corestore.ErrOutOfOrder
	}

	if _, err = tx.ExecContext(ctx, s.q(`INSERT INTO buckets
		(bucket_key, line, end_station, day, vehicle_id, journey_id, meta, last_observed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (bucket_key) DO UPDATE SET meta = excluded.meta, last_observed = excluded.last_observed`),
		id, corestore.Slugify(key.Line), key.EndStation, key.Date.Format(dateColumnLayout),
		corestore.Slugify(key.VehicleID), corestore.Slugify(key.JourneyID), string(metaJSON), obs); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, s.q(`INSERT INTO samples
		(bucket_key, observed_at, updated_at, delay_s, lat, lon) VALUES (?, ?, ?, ?, ?, ?)`),
		id, obs, sample.UpdatedAt.UnixNano(), sample.DelaySeconds, sample.Lat, sample.Lon); err != nil {
		return err
	}
	return tx.Commit()
}

// Keys lists the buckets in scope ordered by their encoded key.
func (s *SQLStore) Keys(ctx context.Context, scope corestore.Scope) ([]corestore.Key, error) {
	query := `SELECT bucket_key FROM buckets WHERE 1=1`
	var args []any
	if scope.Line != "" {
		query += ` AND line = ?`
		args = append(args, corestore.Slugify(scope.Line))
	}
	if scope.EndStation != 0 {
		query += ` AND end_station = ?`
		args = append(args, scope.EndStation)
	}
	if !scope.Date.IsZero() {
		query += ` AND day = ?`
		args = append(args, corestore.Day(scope.Date).Format(dateColumnLayout))
	}
	query += ` ORDER BY bucket_key`
	raw, err := s.queryStrings(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	keys := make([]corestore.Key, 0, len(raw))
	for _, r := range raw {
		k, err := corestore.ParseKey(r)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// RawKeys lists every bucket name.
func (s *SQLStore) RawKeys(ctx context.Context) ([]string, error) {
	return s.queryStrings(ctx, `SELECT bucket_key FROM buckets ORDER BY bucket_key`)
}

func (s *SQLStore) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Load returns the bucket with samples ordered by observation time.
func (s *SQLStore) Load(ctx context.Context, key corestore.Key) (corestore.Bucket, error) {
	id := key.String()
	var metaJSON string
	err := s.db.QueryRowContext(ctx, s.q(`SELECT meta FROM buckets WHERE bucket_key = ?`), id).Scan(&metaJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return corestore.Bucket{}, corestore.ErrNotFound
	}
	if err != nil {
		return corestore.Bucket{}, err
	}
	b := corestore.Bucket{Key: key}
	if err := json.Unmarshal([]byte(metaJSON), &b.Meta); err != nil {
		return corestore.Bucket{}, fmt.Errorf("decode meta of %s: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx, s.q(`SELECT observed_at, updated_at, delay_s, lat, lon
		FROM samples WHERE bucket_key = ? ORDER BY observed_at`), id)
	if err != nil {
		return corestore.Bucket{}, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var (
			obs, upd int64
			smp      model.Sample
		)
		if err := rows.Scan(&obs, &upd, &smp.DelaySeconds, &smp.Lat, &smp.Lon); err != nil {
			return corestore.Bucket{}, err
		}
		smp.ObservedAt = time.Unix(0, obs).UTC()
		smp.UpdatedAt = time.Unix(0, upd).UTC()
		b.Samples = append(b.Samples, smp)
	}
	return b, rows.Err()
}

// Ping checks the database connection.
func (s *SQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close closes the underlying database.
func (s *SQLStore) Close() error { return s.db.Close() }
