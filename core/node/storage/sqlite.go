// Package storage persists the node's own bookkeeping: per-user
// balances, single-use receipt nonces, and preprocessing offset
// watermarks, backed by the pure-Go modernc.org/sqlite driver through
// database/sql rather than a cgo sqlite binding.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// ErrNonceReplayed is returned when a receipt nonce has already been
// recorded, the single-use replay defense SPEC_FULL.md names.
var ErrNonceReplayed = errors.New("storage: nonce already used")

// ErrInsufficientBalance is returned when a balance deduction would take
// a user's account negative.
var ErrInsufficientBalance = errors.New("storage: insufficient balance")

const schema = `
CREATE TABLE IF NOT EXISTS balances (
	user_id TEXT PRIMARY KEY,
	amount  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS nonces (
	nonce   TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	used_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS preprocessing_offsets (
	kind      TEXT PRIMARY KEY,
	used      INTEGER NOT NULL,
	generated INTEGER NOT NULL
);
`

// DB wraps a *sql.DB opened against a sqlite file (or ":memory:" for
// tests), with the table set above already migrated.
type DB struct {
	conn *sql.DB
}

// Open migrates path's schema and returns a ready DB. path may be
// ":memory:" for an ephemeral, process-local database.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite at %s: %w", path, err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close releases the underlying connection.
func (d *DB) Close() error { return d.conn.Close() }

// Balance returns userID's current balance, or 0 if the user has none.
func (d *DB) Balance(ctx context.Context, userID string) (int64, error) {
	var amount int64
	err := d.conn.QueryRowContext(ctx, `SELECT amount FROM balances WHERE user_id = ?`, userID).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return amount, err
}

// AddFunds credits userID's balance by amount.
func (d *DB) AddFunds(ctx context.Context, userID string, amount int64) error {
	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO balances (user_id, amount) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET amount = amount + excluded.amount
	`, userID, amount)
	return err
}

// DeductAndRecordNonce atomically deducts fee from userID's balance and
// records nonce as used, inside one database/sql transaction opened with
// sql.LevelSerializable, so a
// PAYMENT/BALANCE precondition failure is returned before any partial
// deduction is visible to a concurrent reader. Returns ErrNonceReplayed
// if nonce was already recorded, or ErrInsufficientBalance if the
// deduction would go negative; either way no row is modified.
func (d *DB) DeductAndRecordNonce(ctx context.Context, userID, nonce string, fee int64, usedAt int64) error {
	tx, err := d.conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM nonces WHERE nonce = ?`, nonce).Scan(&exists)
	if err == nil {
		return ErrNonceReplayed
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	var balance int64
	err = tx.QueryRowContext(ctx, `SELECT amount FROM balances WHERE user_id = ?`, userID).Scan(&balance)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if balance < fee {
		return ErrInsufficientBalance
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO balances (user_id, amount) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET amount = amount - ?
	`, userID, balance-fee, fee); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO nonces (nonce, user_id, used_at) VALUES (?, ?, ?)`, nonce, userID, usedAt); err != nil {
		return err
	}
	return tx.Commit()
}

// PreprocessingOffsets returns the (used, generated) watermark pair
// persisted for kind, or (0, 0) if never recorded.
func (d *DB) PreprocessingOffsets(ctx context.Context, kind string) (used, generated uint64, err error) {
	err = d.conn.QueryRowContext(ctx, `SELECT used, generated FROM preprocessing_offsets WHERE kind = ?`, kind).Scan(&used, &generated)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, nil
	}
	return used, generated, err
}

// SavePreprocessingOffsets persists kind's current watermark pair,
// overwriting whatever was stored before.
func (d *DB) SavePreprocessingOffsets(ctx context.Context, kind string, used, generated uint64) error {
	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO preprocessing_offsets (kind, used, generated) VALUES (?, ?, ?)
		ON CONFLICT(kind) DO UPDATE SET used = excluded.used, generated = excluded.generated
	`, kind, used, generated)
	return err
}
