/*
SQLiteEventLedger is the EventLedger implementation on the shared
bridge database.
*/
package eventledger

import (
	"database/sql"
	"errors"

	logger "github.com/sirupsen/logrus"

	"github.com/zenz-bridge/bridge-go/common"
	"github.com/zenz-bridge/bridge-go/database"
)

type SQLiteEventLedger struct {
	db        *sql.DB
	stmtCache *database.StmtCache
}

func NewSQLiteEventLedger(db *sql.DB) (*SQLiteEventLedger, error) {
	s := &SQLiteEventLedger{
		db:        db,
		stmtCache: database.NewStmtCache(db),
	}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteEventLedger) init() error {
	query := `
	CREATE TABLE IF NOT EXISTS processed_events (
		event_signature TEXT PRIMARY KEY NOT NULL,
		event_type TEXT NOT NULL,
		wallet_address TEXT,
		amount INTEGER,
		processed_at INTEGER NOT NULL,
		CONSTRAINT chk_event_signature CHECK (event_signature != '')
	);
	CREATE INDEX IF NOT EXISTS idx_processed_events_type ON processed_events(event_type);
	`
	_, err := s.db.Exec(query)
	return err
}

func (s *SQLiteEventLedger) MarkEventProcessed(ev *ProcessedEvent) error {
	if ev.EventSignature == "" {
		return errors.New("empty event signature")
	}
	processedAt := ev.ProcessedAt
	if processedAt == 0 {
		processedAt = common.NowMs()
	}

	// INSERT OR IGNORE makes redelivery a no-op.
	query := `INSERT OR IGNORE INTO processed_events
		(event_signature, event_type, wallet_address, amount, processed_at)
		VALUES (?, ?, ?, ?, ?)`
	stmt := s.stmtCache.MustPrepare(query)
	res, err := stmt.Exec(ev.EventSignature, ev.EventType, ev.WalletAddress, ev.Amount, processedAt)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		logger.WithField("signature", ev.EventSignature).Debug("event already recorded, skip.")
	}
	return nil
}

func (s *SQLiteEventLedger) IsEventProcessed(signature string) (bool, error) {
	query := `SELECT 1 FROM processed_events WHERE event_signature = ?`
	stmt := s.stmtCache.MustPrepare(query)

	var one int
	err := stmt.QueryRow(signature).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteEventLedger) GetEvent(signature string) (*ProcessedEvent, bool, error) {
	query := `SELECT event_signature, event_type, wallet_address, amount, processed_at
		FROM processed_events WHERE event_signature = ?`
	stmt := s.stmtCache.MustPrepare(query)

	var ev ProcessedEvent
	err := stmt.QueryRow(signature).Scan(
		&ev.EventSignature, &ev.EventType, &ev.WalletAddress, &ev.Amount, &ev.ProcessedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &ev, true, nil
}
