/*
SQLiteReserveStorage is the ReserveStorage implementation on the shared
bridge database.
*/
package reserve

import (
	"database/sql"
	"errors"

	"github.com/zenz-bridge/bridge-go/common"
	"github.com/zenz-bridge/bridge-go/database"
)

type SQLiteReserveStorage struct {
	db        *sql.DB
	stmtCache *database.StmtCache
}

func NewSQLiteReserveStorage(db *sql.DB) (*SQLiteReserveStorage, error) {
	s := &SQLiteReserveStorage{
		db:        db,
		stmtCache: database.NewStmtCache(db),
	}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteReserveStorage) init() error {
	query := `
	CREATE TABLE IF NOT EXISTS reserves (
		asset TEXT PRIMARY KEY NOT NULL,
		amount BIGINT NOT NULL,
		updated_at INTEGER NOT NULL,
		CONSTRAINT chk_asset CHECK (asset != '')
	);
	`
	_, err := s.db.Exec(query)
	return err
}

// Adjust lands the whole add in one statement, the database serializes
// concurrent callers so no update can be lost.
func (s *SQLiteReserveStorage) Adjust(asset string, delta int64) error {
	if asset == "" {
		return errors.New("empty asset name")
	}
	query := `INSERT INTO reserves (asset, amount, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(asset) DO UPDATE SET
			amount = amount + excluded.amount,
			updated_at = excluded.updated_at`
	stmt := s.stmtCache.MustPrepare(query)
	_, err := stmt.Exec(asset, delta, common.NowMs())
	return err
}

func (s *SQLiteReserveStorage) Get(asset string) (int64, error) {
	query := `SELECT amount FROM reserves WHERE asset = ?`
	stmt := s.stmtCache.MustPrepare(query)

	var amount int64
	err := stmt.QueryRow(asset).Scan(&amount)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return amount, nil
}

func (s *SQLiteReserveStorage) All() (map[string]int64, error) {
	rows, err := s.db.Query(`SELECT asset, amount FROM reserves`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var asset string
		var amount int64
		if err := rows.Scan(&asset, &amount); err != nil {
			return nil, err
		}
		out[asset] = amount
	}
	return out, rows.Err()
}
