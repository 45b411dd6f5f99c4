// Package store persists option-chain snapshots to sqlite so analytics can
// be replayed after a restart and across fetch gaps.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oapi-codegen/runtime/types"

	faststock "github.com/OMCHOKSI108/faststock-go"
	"github.com/OMCHOKSI108/faststock-go/chain"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol            TEXT NOT NULL,
	expiry            TEXT NOT NULL,
	underlying_value  REAL NOT NULL,
	fetched_at        TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_symbol_expiry
	ON snapshots (symbol, expiry, fetched_at DESC);

CREATE TABLE IF NOT EXISTS snapshot_records (
	snapshot_id    INTEGER NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
	strike         REAL NOT NULL,
	side           TEXT NOT NULL,
	open_interest  INTEGER NOT NULL,
	last_price     REAL,
	volume         INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_snapshot
	ON snapshot_records (snapshot_id);
`

// SQLiteStore persists snapshots in a local sqlite database
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (and migrates) a snapshot store. Use ":memory:" for tests.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets the poller write while the API reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveSnapshot stores one snapshot with all its records atomically
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *chain.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (symbol, expiry, underlying_value, fetched_at) VALUES (?, ?, ?, ?)`,
		snap.UnderlyingSymbol,
		snap.Expiry.Format(types.DateFormat),
		snap.UnderlyingValue,
		snap.FetchedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	snapID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("snapshot id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO snapshot_records (snapshot_id, strike, side, open_interest, last_price, volume)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare records: %w", err)
	}
	defer stmt.Close()

	for _, r := range snap.Records {
		var lastPrice interface{}
		if r.HasLastPrice {
			lastPrice = r.LastPrice
		}
		if _, err := stmt.ExecContext(ctx, snapID, r.Strike, r.Side.String(), r.OpenInterest, lastPrice, r.Volume); err != nil {
			return fmt.Errorf("insert record: %w", err)
		}
	}

	return tx.Commit()
}

// LatestSnapshot returns the most recently fetched snapshot for a symbol,
// any expiry
func (s *SQLiteStore) LatestSnapshot(ctx context.Context, symbol string) (*chain.Snapshot, error) {
	return s.querySnapshot(ctx,
		`SELECT id, symbol, expiry, underlying_value, fetched_at
		 FROM snapshots WHERE symbol = ?
		 ORDER BY fetched_at DESC, id DESC LIMIT 1`, symbol)
}

// LatestSnapshotForExpiry returns the most recent snapshot for a
// symbol+expiry pair
func (s *SQLiteStore) LatestSnapshotForExpiry(ctx context.Context, symbol string, expiry time.Time) (*chain.Snapshot, error) {
	return s.querySnapshot(ctx,
		`SELECT id, symbol, expiry, underlying_value, fetched_at
		 FROM snapshots WHERE symbol = ? AND expiry = ?
		 ORDER BY fetched_at DESC, id DESC LIMIT 1`,
		symbol, expiry.Format(types.DateFormat))
}

func (s *SQLiteStore) querySnapshot(ctx context.Context, query string, args ...interface{}) (*chain.Snapshot, error) {
	var (
		id         int64
		symbol     string
		expiryStr  string
		underlying float64
		fetchedAt  time.Time
	)
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&id, &symbol, &expiryStr, &underlying, &fetchedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("snapshot: %w", faststock.ErrNoData)
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}

	expiry, err := time.Parse(types.DateFormat, expiryStr)
	if err != nil {
		return nil, fmt.Errorf("bad stored expiry %q: %w", expiryStr, err)
	}

	records, err := s.loadRecords(ctx, id)
	if err != nil {
		return nil, err
	}

	snap := chain.NewSnapshot(symbol, expiry, underlying, records)
	snap.FetchedAt = fetchedAt.UTC()
	return snap, nil
}

func (s *SQLiteStore) loadRecords(ctx context.Context, snapshotID int64) ([]chain.OptionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT strike, side, open_interest, last_price, volume
		 FROM snapshot_records WHERE snapshot_id = ? ORDER BY strike, side`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []chain.OptionRecord
	for rows.Next() {
		var (
			r         chain.OptionRecord
			sideStr   string
			lastPrice sql.NullFloat64
		)
		if err := rows.Scan(&r.Strike, &sideStr, &r.OpenInterest, &lastPrice, &r.Volume); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		side, err := chain.ParseSide(sideStr)
		if err != nil {
			return nil, fmt.Errorf("bad stored side %q: %w", sideStr, err)
		}
		r.Side = side
		if lastPrice.Valid {
			r.LastPrice = lastPrice.Float64
			r.HasLastPrice = true
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Expiries returns the distinct stored expiries for a symbol, ascending
func (s *SQLiteStore) Expiries(ctx context.Context, symbol string) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT expiry FROM snapshots WHERE symbol = ? ORDER BY expiry`, symbol)
	if err != nil {
		return nil, fmt.Errorf("query expiries: %w", err)
	}
	defer rows.Close()

	var expiries []time.Time
	for rows.Next() {
		var expiryStr string
		if err := rows.Scan(&expiryStr); err != nil {
			return nil, fmt.Errorf("scan expiry: %w", err)
		}
		expiry, err := time.Parse(types.DateFormat, expiryStr)
		if err != nil {
			return nil, fmt.Errorf("bad stored expiry %q: %w", expiryStr, err)
		}
		expiries = append(expiries, expiry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(expiries) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, faststock.ErrNoData)
	}
	return expiries, nil
}

// PruneBefore deletes snapshots fetched before the cutoff and returns how
// many were removed
func (s *SQLiteStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE fetched_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return res.RowsAffected()
}
