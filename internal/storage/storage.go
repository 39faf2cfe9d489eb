// Package storage provides SQLite-backed persistence for pairs, snapshot
// history, alerts, and the notification cooldown ledger.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"dexwatch/internal/models"
)

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db              *sql.DB
	maxPairs        int
	maxSnapsPerPair int
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/dexwatch/data.db.
func New(maxPairs, maxSnapsPerPair int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "dexwatch", "data.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	s := &Storage{db: db, maxPairs: maxPairs, maxSnapsPerPair: maxSnapsPerPair}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS pairs (
			id               TEXT PRIMARY KEY,
			chain_id         TEXT NOT NULL,
			pair_address     TEXT NOT NULL,
			base_symbol      TEXT,
			base_name        TEXT,
			base_address     TEXT,
			quote_symbol     TEXT,
			creator          TEXT,
			price_usd        REAL NOT NULL DEFAULT 0,
			liquidity_usd    REAL NOT NULL DEFAULT 0,
			volume_24h       REAL NOT NULL DEFAULT 0,
			price_change_24h REAL NOT NULL DEFAULT 0,
			pair_created_at  INTEGER NOT NULL DEFAULT 0,
			observed_at      INTEGER NOT NULL,
			first_seen       INTEGER NOT NULL,
			last_updated     INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			pair_id          TEXT NOT NULL REFERENCES pairs(id) ON DELETE CASCADE,
			price_usd        REAL NOT NULL,
			liquidity_usd    REAL NOT NULL,
			volume_24h       REAL NOT NULL,
			price_change_24h REAL NOT NULL,
			observed_at      INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS seen_events (
			pair_id       TEXT NOT NULL REFERENCES pairs(id) ON DELETE CASCADE,
			kind          TEXT NOT NULL,
			last_notified INTEGER NOT NULL,
			PRIMARY KEY (pair_id, kind)
		)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id               TEXT PRIMARY KEY,
			pair_id          TEXT NOT NULL REFERENCES pairs(id) ON DELETE CASCADE,
			kind             TEXT NOT NULL,
			chain_id         TEXT NOT NULL,
			base_symbol      TEXT,
			reason           TEXT,
			liquidity_usd    REAL NOT NULL,
			volume_24h       REAL NOT NULL,
			price_change_24h REAL NOT NULL,
			detected_at      INTEGER NOT NULL,
			notified         INTEGER DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_pair_observed ON snapshots(pair_id, observed_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_detected_at ON alerts(detected_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SavePairSnapshot upserts the pair row with the latest observation.
// first_seen is written once on insert and preserved on update.
func (s *Storage) SavePairSnapshot(snap *models.PairSnapshot) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("invalid snapshot: %w", err)
	}

	now := time.Now().UnixNano()
	res, err := s.db.Exec(`
		UPDATE pairs SET
			base_symbol=?, base_name=?, base_address=?, quote_symbol=?, creator=?,
			price_usd=?, liquidity_usd=?, volume_24h=?, price_change_24h=?,
			observed_at=?, last_updated=?
		WHERE id=?`,
		snap.BaseSymbol, snap.BaseName, snap.BaseAddress, snap.QuoteSymbol, snap.Creator,
		snap.PriceUSD, snap.LiquidityUSD, snap.Volume24h, snap.PriceChange24h,
		snap.ObservedAt.UnixNano(), now,
		snap.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update pair: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var createdAtNano int64
	if !snap.PairCreatedAt.IsZero() {
		createdAtNano = snap.PairCreatedAt.UnixNano()
	}
	_, err = s.db.Exec(`
		INSERT INTO pairs
			(id, chain_id, pair_address, base_symbol, base_name, base_address,
			 quote_symbol, creator, price_usd, liquidity_usd, volume_24h,
			 price_change_24h, pair_created_at, observed_at, first_seen, last_updated)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		snap.ID, snap.ChainID, snap.PairAddress, snap.BaseSymbol, snap.BaseName, snap.BaseAddress,
		snap.QuoteSymbol, snap.Creator, snap.PriceUSD, snap.LiquidityUSD, snap.Volume24h,
		snap.PriceChange24h, createdAtNano, snap.ObservedAt.UnixNano(), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert pair: %w", err)
	}
	return nil
}

// LastSnapshot returns the most recent stored observation for the pair, or
// nil when the pair has never been seen.
func (s *Storage) LastSnapshot(pairID string) (*models.PairSnapshot, error) {
	row := s.db.QueryRow(`
		SELECT id, chain_id, pair_address, base_symbol, base_name, base_address,
		       quote_symbol, creator, price_usd, liquidity_usd, volume_24h,
		       price_change_24h, pair_created_at, observed_at
		FROM pairs WHERE id = ?`, pairID)

	var snap models.PairSnapshot
	var createdAtNano, observedAtNano int64
	err := row.Scan(
		&snap.ID, &snap.ChainID, &snap.PairAddress, &snap.BaseSymbol, &snap.BaseName, &snap.BaseAddress,
		&snap.QuoteSymbol, &snap.Creator, &snap.PriceUSD, &snap.LiquidityUSD, &snap.Volume24h,
		&snap.PriceChange24h, &createdAtNano, &observedAtNano,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	if createdAtNano > 0 {
		snap.PairCreatedAt = time.Unix(0, createdAtNano)
	}
	snap.ObservedAt = time.Unix(0, observedAtNano)
	return &snap, nil
}

// AppendHistory records the observation in the per-pair history and prunes
// rows beyond the configured cap. The pair row must already exist.
func (s *Storage) AppendHistory(snap *models.PairSnapshot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`
		INSERT INTO snapshots (pair_id, price_usd, liquidity_usd, volume_24h, price_change_24h, observed_at)
		VALUES (?,?,?,?,?,?)`,
		snap.ID, snap.PriceUSD, snap.LiquidityUSD, snap.Volume24h, snap.PriceChange24h,
		snap.ObservedAt.UnixNano(),
	); err != nil {
		return fmt.Errorf("failed to insert history row: %w", err)
	}

	if _, err := tx.Exec(`
		DELETE FROM snapshots WHERE pair_id = ? AND id NOT IN (
			SELECT id FROM snapshots WHERE pair_id = ? ORDER BY observed_at DESC LIMIT ?
		)`, snap.ID, snap.ID, s.maxSnapsPerPair); err != nil {
		return fmt.Errorf("failed to prune history: %w", err)
	}

	return tx.Commit()
}

// History returns up to limit past observations for the pair, newest first.
func (s *Storage) History(pairID string, limit int) ([]models.PairSnapshot, error) {
	rows, err := s.db.Query(`
		SELECT s.price_usd, s.liquidity_usd, s.volume_24h, s.price_change_24h, s.observed_at,
		       p.chain_id, p.pair_address, p.base_symbol
		FROM snapshots s JOIN pairs p ON p.id = s.pair_id
		WHERE s.pair_id = ? ORDER BY s.observed_at DESC LIMIT ?`, pairID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var history []models.PairSnapshot
	for rows.Next() {
		var snap models.PairSnapshot
		var observedAtNano int64
		if err := rows.Scan(
			&snap.PriceUSD, &snap.LiquidityUSD, &snap.Volume24h, &snap.PriceChange24h, &observedAtNano,
			&snap.ChainID, &snap.PairAddress, &snap.BaseSymbol,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		snap.ID = pairID
		snap.ObservedAt = time.Unix(0, observedAtNano)
		history = append(history, snap)
	}
	return history, rows.Err()
}

// RecordAndCheck reports whether a (pair, kind) alert should be notified now.
// It returns true and records the notification time when no prior notification
// exists or the cooldown has elapsed since the last one. Within the cooldown it
// returns false and leaves the recorded time untouched, so the cooldown is
// measured from the last notification, not the last occurrence.
func (s *Storage) RecordAndCheck(pairID string, kind models.AlertKind, now time.Time, cooldown time.Duration) (bool, error) {
	row := s.db.QueryRow(`SELECT last_notified FROM seen_events WHERE pair_id = ? AND kind = ?`, pairID, kind)

	var lastNano int64
	err := row.Scan(&lastNano)
	switch {
	case err == sql.ErrNoRows:
		// first notification for this (pair, kind)
	case err != nil:
		return false, fmt.Errorf("failed to load seen event: %w", err)
	default:
		if now.Sub(time.Unix(0, lastNano)) < cooldown {
			return false, nil
		}
	}

	if _, err := s.db.Exec(`
		INSERT INTO seen_events (pair_id, kind, last_notified) VALUES (?,?,?)
		ON CONFLICT(pair_id, kind) DO UPDATE SET last_notified = excluded.last_notified`,
		pairID, kind, now.UnixNano(),
	); err != nil {
		return false, fmt.Errorf("failed to record seen event: %w", err)
	}
	return true, nil
}

// AddAlert stores an emitted alert record.
func (s *Storage) AddAlert(alert *models.Alert) error {
	_, err := s.db.Exec(`
		INSERT INTO alerts
			(id, pair_id, kind, chain_id, base_symbol, reason,
			 liquidity_usd, volume_24h, price_change_24h, detected_at, notified)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		alert.ID, alert.Pair.ID, alert.Kind, alert.Pair.ChainID, alert.Pair.BaseSymbol, alert.Reason,
		alert.Pair.LiquidityUSD, alert.Pair.Volume24h, alert.Pair.PriceChange24h,
		alert.DetectedAt.UnixNano(), boolToInt(alert.Notified),
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// RecentAlerts returns up to limit stored alerts, newest first.
func (s *Storage) RecentAlerts(limit int) ([]models.Alert, error) {
	rows, err := s.db.Query(`
		SELECT id, pair_id, kind, chain_id, base_symbol, reason,
		       liquidity_usd, volume_24h, price_change_24h, detected_at, notified
		FROM alerts ORDER BY detected_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		var a models.Alert
		var detectedAtNano int64
		var notified int
		if err := rows.Scan(
			&a.ID, &a.Pair.ID, &a.Kind, &a.Pair.ChainID, &a.Pair.BaseSymbol, &a.Reason,
			&a.Pair.LiquidityUSD, &a.Pair.Volume24h, &a.Pair.PriceChange24h,
			&detectedAtNano, &notified,
		); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.DetectedAt = time.Unix(0, detectedAtNano)
		a.Notified = notified != 0
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// RotatePairs keeps at most maxPairs newest pairs by last_updated.
// Cascading deletes remove associated history, seen events, and alerts.
func (s *Storage) RotatePairs() error {
	_, err := s.db.Exec(`
		DELETE FROM pairs WHERE id NOT IN (
			SELECT id FROM pairs ORDER BY last_updated DESC LIMIT ?
		)`, s.maxPairs)
	if err != nil {
		return fmt.Errorf("failed to rotate pairs: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
