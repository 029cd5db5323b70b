package preprocessing

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"

	_ "modernc.org/sqlite"

	"github.com/NillionNetwork/nilvm-sub002/core/algebra"
	"github.com/NillionNetwork/nilvm-sub002/core/protocol/compare"
)

// SqliteStore is the production BatchStore named as a gap in the C6
// ledger entry: a durable, pure-Go (modernc.org/sqlite) FIFO queue per
// material kind, so generated preprocessing batches survive a node
// restart instead of living only in MemoryStore's slices. Each row holds
// one element's serialized bytes plus a monotonically increasing id used
// as the FIFO ordering key.
type SqliteStore struct {
	db    *sql.DB
	prime algebra.SafePrime
}

const sqliteStoreSchema = `
CREATE TABLE IF NOT EXISTS random_elements (id INTEGER PRIMARY KEY AUTOINCREMENT, value BLOB NOT NULL);
CREATE TABLE IF NOT EXISTS compare_digits (id INTEGER PRIMARY KEY AUTOINCREMENT, r0 BLOB NOT NULL, r1 BLOB NOT NULL, rr BLOB NOT NULL);
CREATE TABLE IF NOT EXISTS truncation_masks (id INTEGER PRIMARY KEY AUTOINCREMENT, share BLOB NOT NULL, shifted BLOB NOT NULL);
CREATE TABLE IF NOT EXISTS reciprocals (id INTEGER PRIMARY KEY AUTOINCREMENT, divisor TEXT NOT NULL, value BLOB NOT NULL);
`

// OpenSqliteStore migrates path's schema (":memory:" for tests) and
// returns a BatchStore backed by it, for elements over prime.
func OpenSqliteStore(path string, prime algebra.SafePrime) (*SqliteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening preprocessing store %s: %w", path, err)
	}
	if _, err := db.Exec(sqliteStoreSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating preprocessing schema: %w", err)
	}
	return &SqliteStore{db: db, prime: prime}, nil
}

// Close releases the underlying connection.
func (s *SqliteStore) Close() error { return s.db.Close() }

func (s *SqliteStore) PutRandomElements(batch []algebra.Element) error {
	return s.withTx(func(tx *sql.Tx) error {
		for _, e := range batch {
			if _, err := tx.Exec(`INSERT INTO random_elements (value) VALUES (?)`, e.ToBytes()); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SqliteStore) TakeRandomElement() (algebra.Element, bool) {
	var id int64
	var value []byte
	err := s.db.QueryRow(`SELECT id, value FROM random_elements ORDER BY id LIMIT 1`).Scan(&id, &value)
	if err != nil {
		return algebra.Element{}, false
	}
	if _, err := s.db.Exec(`DELETE FROM random_elements WHERE id = ?`, id); err != nil {
		return algebra.Element{}, false
	}
	return algebra.FromBytes(s.prime, value), true
}

func (s *SqliteStore) PutCompareDigits(batch []compare.QuaternaryDigit) error {
	return s.withTx(func(tx *sql.Tx) error {
		for _, d := range batch {
			if _, err := tx.Exec(`INSERT INTO compare_digits (r0, r1, rr) VALUES (?, ?, ?)`, d.R0.ToBytes(), d.R1.ToBytes(), d.RR.ToBytes()); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SqliteStore) TakeCompareDigit() (compare.QuaternaryDigit, bool) {
	var id int64
	var r0, r1, rr []byte
	err := s.db.QueryRow(`SELECT id, r0, r1, rr FROM compare_digits ORDER BY id LIMIT 1`).Scan(&id, &r0, &r1, &rr)
	if err != nil {
		return compare.QuaternaryDigit{}, false
	}
	if _, err := s.db.Exec(`DELETE FROM compare_digits WHERE id = ?`, id); err != nil {
		return compare.QuaternaryDigit{}, false
	}
	return compare.QuaternaryDigit{
		R0: algebra.FromBytes(s.prime, r0),
		R1: algebra.FromBytes(s.prime, r1),
		RR: algebra.FromBytes(s.prime, rr),
	}, true
}

func (s *SqliteStore) PutTruncationMasks(batch []truncationMaskPair) error {
	return s.withTx(func(tx *sql.Tx) error {
		for _, m := range batch {
			if _, err := tx.Exec(`INSERT INTO truncation_masks (share, shifted) VALUES (?, ?)`, m.Share.ToBytes(), m.ShiftedShare.ToBytes()); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SqliteStore) TakeTruncationMask() (truncationMaskPair, bool) {
	var id int64
	var share, shifted []byte
	err := s.db.QueryRow(`SELECT id, share, shifted FROM truncation_masks ORDER BY id LIMIT 1`).Scan(&id, &share, &shifted)
	if err != nil {
		return truncationMaskPair{}, false
	}
	if _, err := s.db.Exec(`DELETE FROM truncation_masks WHERE id = ?`, id); err != nil {
		return truncationMaskPair{}, false
	}
	return truncationMaskPair{Share: algebra.FromBytes(s.prime, share), ShiftedShare: algebra.FromBytes(s.prime, shifted)}, true
}

func (s *SqliteStore) PutReciprocals(divisor *big.Int, batch []algebra.Element) error {
	key := divisor.String()
	return s.withTx(func(tx *sql.Tx) error {
		for _, e := range batch {
			if _, err := tx.Exec(`INSERT INTO reciprocals (divisor, value) VALUES (?, ?)`, key, e.ToBytes()); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SqliteStore) TakeReciprocal(divisor *big.Int) (algebra.Element, bool) {
	key := divisor.String()
	var id int64
	var value []byte
	err := s.db.QueryRow(`SELECT id, value FROM reciprocals WHERE divisor = ? ORDER BY id LIMIT 1`, key).Scan(&id, &value)
	if err != nil {
		return algebra.Element{}, false
	}
	if _, err := s.db.Exec(`DELETE FROM reciprocals WHERE id = ?`, id); err != nil {
		return algebra.Element{}, false
	}
	return algebra.FromBytes(s.prime, value), true
}

func (s *SqliteStore) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
