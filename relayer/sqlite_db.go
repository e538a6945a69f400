package relayer

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLitePayoutDB implements PayoutDB on the shared bridge database.
//
// Unknown slots are stored as -1 and come back as -1.
type SQLitePayoutDB struct {
	db *sql.DB
}

func NewSQLitePayoutDB(db *sql.DB) (*SQLitePayoutDB, error) {
	s := &SQLitePayoutDB{db: db}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLitePayoutDB) init() error {
	query := `
	CREATE TABLE IF NOT EXISTS monitored_payouts (
		payout_signature TEXT PRIMARY KEY,
		ref_tx_id TEXT NOT NULL,
		kind TEXT NOT NULL CHECK (kind IN ('mint', 'redemption')),
		amount INTEGER NOT NULL,
		submitted_at_slot INTEGER NOT NULL DEFAULT -1,
		found_at_slot INTEGER NOT NULL DEFAULT -1,
		submitted_at INTEGER NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('limbo', 'pending', 'success', 'failed', 'timeout'))
	);
	CREATE INDEX IF NOT EXISTS idx_payout_ref ON monitored_payouts (ref_tx_id);
	CREATE INDEX IF NOT EXISTS idx_payout_status ON monitored_payouts (status);
	`
	_, err := s.db.Exec(query)
	return err
}

func (s *SQLitePayoutDB) InsertMonitoredPayout(p *MonitoredPayout) error {
	submittedAt := p.SubmittedAt
	if submittedAt == 0 {
		submittedAt = time.Now().UnixMilli()
	}
	query := `
	INSERT INTO monitored_payouts
		(payout_signature, ref_tx_id, kind, amount, submitted_at_slot, found_at_slot, submitted_at, status)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?);
	`
	_, err := s.db.Exec(query,
		p.PayoutSignature, p.RefTxID, p.Kind, p.Amount,
		p.SubmittedAtSlot, p.FoundAtSlot, submittedAt, string(p.Status),
	)
	return err
}

func (s *SQLitePayoutDB) GetBySignature(signature string) (*MonitoredPayout, error) {
	row := s.db.QueryRow(`
	SELECT payout_signature, ref_tx_id, kind, amount, submitted_at_slot, found_at_slot, submitted_at, status
	FROM monitored_payouts WHERE payout_signature = ?;`, signature)

	p, err := scanPayout(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func (s *SQLitePayoutDB) GetByRef(refTxID string) ([]*MonitoredPayout, error) {
	rows, err := s.db.Query(`
	SELECT payout_signature, ref_tx_id, kind, amount, submitted_at_slot, found_at_slot, submitted_at, status
	FROM monitored_payouts WHERE ref_tx_id = ? ORDER BY submitted_at;`, refTxID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPayouts(rows)
}

func (s *SQLitePayoutDB) GetByStatus(statuses ...PayoutStatus) ([]*MonitoredPayout, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	marks := strings.Repeat("?, ", len(statuses)-1) + "?"
	args := make([]any, len(statuses))
	for i, st := range statuses {
		args[i] = string(st)
	}
	rows, err := s.db.Query(fmt.Sprintf(`
	SELECT payout_signature, ref_tx_id, kind, amount, submitted_at_slot, found_at_slot, submitted_at, status
	FROM monitored_payouts WHERE status IN (%s) ORDER BY submitted_at;`, marks), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPayouts(rows)
}

func (s *SQLitePayoutDB) UpdateStatus(signature string, status PayoutStatus) error {
	_, err := s.db.Exec(
		`UPDATE monitored_payouts SET status = ? WHERE payout_signature = ?;`,
		string(status), signature,
	)
	return err
}

func (s *SQLitePayoutDB) UpdateFound(signature string, slot int64) error {
	_, err := s.db.Exec(
		`UPDATE monitored_payouts SET found_at_slot = ? WHERE payout_signature = ?;`,
		slot, signature,
	)
	return err
}

func (s *SQLitePayoutDB) Delete(signature string) error {
	_, err := s.db.Exec(
		`DELETE FROM monitored_payouts WHERE payout_signature = ?;`, signature,
	)
	return err
}

type payoutScanner interface {
	Scan(dest ...any) error
}

func scanPayout(row payoutScanner) (*MonitoredPayout, error) {
	var p MonitoredPayout
	var status string
	err := row.Scan(
		&p.PayoutSignature, &p.RefTxID, &p.Kind, &p.Amount,
		&p.SubmittedAtSlot, &p.FoundAtSlot, &p.SubmittedAt, &status,
	)
	if err != nil {
		return nil, err
	}
	p.Status = PayoutStatus(status)
	return &p, nil
}

func collectPayouts(rows *sql.Rows) ([]*MonitoredPayout, error) {
	var out []*MonitoredPayout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
