package txstore

import (
	"database/sql"

	logger "github.com/sirupsen/logrus"

	"github.com/zenz-bridge/bridge-go/common"
	"github.com/zenz-bridge/bridge-go/database"
	"github.com/zenz-bridge/bridge-go/txstatus"
)

var txStoreErrors TxStoreError

type TxStore struct {
	db        *sql.DB
	stmtCache *database.StmtCache
}

func NewTxStore(db *sql.DB) (*TxStore, error) {
	if _, err := db.Exec(transactionsTable + historyTable); err != nil {
		return nil, err
	}
	return &TxStore{
		db:        db,
		stmtCache: database.NewStmtCache(db),
	}, nil
}

// InsertTransaction records a newly observed operation. Empty status
// defaults to pending. Re-inserting an existing id is a no-op, the
// monitors re-observe the same chain transactions all the time.
func (ts *TxStore) InsertTransaction(btx *BridgeTransaction) error {
	status := btx.Status
	if status == "" {
		status = txstatus.StatusPending
	}
	if !txstatus.IsKnownStatus(status) {
		return txStoreErrors.CannotInsertDueToUnknownStatus(btx)
	}
	now := common.NowMs()

	tx, err := ts.db.Begin()
	if err != nil {
		return err
	}

	res, err := tx.Exec(`INSERT OR IGNORE INTO bridge_transactions
		(txId, txType, status, asset, amount, sourceAddress, recipient, payoutSignature, createdAt, updatedAt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		btx.TxID, btx.TxType, status, btx.Asset, btx.Amount,
		btx.SourceAddress, btx.Recipient, btx.PayoutSignature, now, now)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if n == 0 {
		_ = tx.Rollback()
		logger.WithField("txId", common.Shorten(btx.TxID, 8)).Debug("transaction already recorded, skip.")
		return nil
	}

	// creation line of the audit trail
	if _, err := tx.Exec(`INSERT INTO status_history
		(txId, txType, status, previousStatus, notes, createdAt)
		VALUES (?, ?, ?, ?, ?, ?)`,
		btx.TxID, btx.TxType, status, "", "transaction recorded", now); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// UpdateStatus moves the transaction to newStatus after checking the
// move against the status table. The row update and the history line
// land in one database transaction; an illegal move changes nothing
// and comes back wrapping ErrInvalidTransition.
func (ts *TxStore) UpdateStatus(txID, newStatus, notes string) error {
	tx, err := ts.db.Begin()
	if err != nil {
		return err
	}

	var current, txType string
	err = tx.QueryRow(`SELECT status, txType FROM bridge_transactions WHERE txId = ?`, txID).
		Scan(&current, &txType)
	if err == sql.ErrNoRows {
		_ = tx.Rollback()
		return txStoreErrors.CannotUpdateMissingTransaction(txID)
	}
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	if !txstatus.IsValidStatusTransition(current, newStatus) {
		_ = tx.Rollback()
		return txStoreErrors.CannotTransition(txID, current, newStatus)
	}

	now := common.NowMs()
	if _, err := tx.Exec(`UPDATE bridge_transactions SET status = ?, updatedAt = ? WHERE txId = ?`,
		newStatus, now, txID); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.Exec(`INSERT INTO status_history
		(txId, txType, status, previousStatus, notes, createdAt)
		VALUES (?, ?, ?, ?, ?, ?)`,
		txID, txType, newStatus, current, notes, now); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	logger.WithFields(logger.Fields{
		"txId": common.Shorten(txID, 8),
		"from": current,
		"to":   newStatus,
	}).Info("transaction status moved")
	return nil
}

// SetPayoutSignature attaches the chain signature of the payout leg.
// Not a status move, so no history line.
func (ts *TxStore) SetPayoutSignature(txID, signature string) error {
	stmt := ts.stmtCache.MustPrepare(
		`UPDATE bridge_transactions SET payoutSignature = ?, updatedAt = ? WHERE txId = ?`)
	_, err := stmt.Exec(signature, common.NowMs(), txID)
	return err
}

// GetTransaction returns nil without error when the id is unknown.
func (ts *TxStore) GetTransaction(txID string) (*BridgeTransaction, error) {
	stmt := ts.stmtCache.MustPrepare(selectColumns + ` WHERE txId = ?`)
	btx, err := scanTransaction(stmt.QueryRow(txID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return btx, nil
}

func (ts *TxStore) GetByStatus(status string) ([]*BridgeTransaction, error) {
	stmt := ts.stmtCache.MustPrepare(selectColumns + ` WHERE status = ? ORDER BY createdAt`)
	rows, err := stmt.Query(status)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

func (ts *TxStore) GetByStatusAndType(status, txType string) ([]*BridgeTransaction, error) {
	stmt := ts.stmtCache.MustPrepare(selectColumns + ` WHERE status = ? AND txType = ? ORDER BY createdAt`)
	rows, err := stmt.Query(status, txType)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

// GetStatusHistory lists the audit trail oldest first.
func (ts *TxStore) GetStatusHistory(txID string) ([]*StatusHistoryEntry, error) {
	stmt := ts.stmtCache.MustPrepare(`SELECT id, txId, txType, status, previousStatus, notes, createdAt
		FROM status_history WHERE txId = ? ORDER BY id`)
	rows, err := stmt.Query(txID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*StatusHistoryEntry
	for rows.Next() {
		var e StatusHistoryEntry
		if err := rows.Scan(&e.ID, &e.TxID, &e.TxType, &e.Status, &e.PreviousStatus, &e.Notes, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

const selectColumns = `SELECT txId, txType, status, asset, amount, sourceAddress, recipient, payoutSignature, createdAt, updatedAt
	FROM bridge_transactions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*BridgeTransaction, error) {
	var btx BridgeTransaction
	err := row.Scan(&btx.TxID, &btx.TxType, &btx.Status, &btx.Asset, &btx.Amount,
		&btx.SourceAddress, &btx.Recipient, &btx.PayoutSignature, &btx.CreatedAt, &btx.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &btx, nil
}

func collectTransactions(rows *sql.Rows) ([]*BridgeTransaction, error) {
	defer rows.Close()
	var out []*BridgeTransaction
	for rows.Next() {
		btx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, btx)
	}
	return out, rows.Err()
}
