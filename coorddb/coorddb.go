package coorddb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/zenz-bridge/bridge-go/common"
)

const insertRecordQuery = `INSERT INTO coordination_records (
	transactionId, transactionType, processingService, status, startedAt
) VALUES (?, ?, ?, ?, ?) ON CONFLICT(transactionId) DO NOTHING`

// CoordDB gives access to the coordination_records table.
//
// The *sql.DB is shared with the other bridge stores and stays owned
// by the caller; Close here does not close it.
type CoordDB struct {
	db *sql.DB
}

func NewCoordDB(db *sql.DB) (*CoordDB, error) {
	if _, err := db.Exec(coordinationTable + coordinationIndexes); err != nil {
		return nil, err
	}
	return &CoordDB{db: db}, nil
}

func (cdb *CoordDB) Close() error {
	return nil
}

// AcquireLease tries to claim the transaction for the given service.
//
// 1. A conditional insert claims free ids. Among N services racing on
//    the same id the database lets exactly one row in; everyone else
//    falls through to the conflict path.
// 2. On conflict the row is re-read inside an immediate transaction,
//    with the write lock already held, so the branch below cannot race
//    another writer.
// 3. processing and completed rows deny the claim. A failed row denies
//    it until failedRetryAfter has passed since its completedAt, after
//    that the stale row is swapped for a fresh one owned by us.
func (cdb *CoordDB) AcquireLease(ctx context.Context, txID, txType, service string, failedRetryAfter time.Duration) (*LeaseOutcome, error) {
	now := common.NowMs()

	inserted, err := cdb.tryInsert(ctx, nil, txID, txType, service, now)
	if err != nil {
		return nil, err
	}
	if inserted {
		return &LeaseOutcome{Acquired: true}, nil
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	rec, found, err := getRecordTx(ctx, tx, txID)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if !found {
		// Row vanished between the probe and the lock (released or
		// swept). We hold the write lock now, so the insert is ours.
		inserted, err := cdb.tryInsert(ctx, tx, txID, txType, service, now)
		if err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return &LeaseOutcome{Acquired: inserted}, nil
	}

	switch rec.Status {
	case CoordStatusProcessing, CoordStatusCompleted:
		_ = tx.Rollback()
		return &LeaseOutcome{Existing: rec}, nil

	case CoordStatusFailed:
		elapsed := time.Duration(now-rec.CompletedAt) * time.Millisecond
		if elapsed < failedRetryAfter {
			_ = tx.Rollback()
			return &LeaseOutcome{Existing: rec, RetryAfter: failedRetryAfter - elapsed}, nil
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM coordination_records WHERE transactionId = ?`, txID); err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		if _, err := cdb.tryInsert(ctx, tx, txID, txType, service, now); err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return &LeaseOutcome{Acquired: true, Recovered: true, Existing: rec}, nil

	default:
		_ = tx.Rollback()
		return nil, fmt.Errorf("coordination record %s has unexpected status %q", txID, rec.Status)
	}
}

// MarkCompleted seals the record. Only the active lease holder can do
// it; returns false when the condition did not match any row.
func (cdb *CoordDB) MarkCompleted(ctx context.Context, txID, service string) (bool, error) {
	return cdb.finish(ctx, txID, service, CoordStatusCompleted)
}

// MarkFailed records a failed attempt and starts the retry cooldown
// clock. Same holder condition as MarkCompleted.
func (cdb *CoordDB) MarkFailed(ctx context.Context, txID, service string) (bool, error) {
	return cdb.finish(ctx, txID, service, CoordStatusFailed)
}

func (cdb *CoordDB) finish(ctx context.Context, txID, service, status string) (bool, error) {
	query := `UPDATE coordination_records SET status = ?, completedAt = ?
		WHERE transactionId = ? AND processingService = ? AND status = ?`
	res, err := cdb.db.ExecContext(ctx, query, status, common.NowMs(), txID, service, CoordStatusProcessing)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete removes the record regardless of holder. Returns false when
// there was nothing to remove.
func (cdb *CoordDB) Delete(ctx context.Context, txID string) (bool, error) {
	res, err := cdb.db.ExecContext(ctx,
		`DELETE FROM coordination_records WHERE transactionId = ?`, txID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Get reads the record. found=false without error when no row exists.
func (cdb *CoordDB) Get(ctx context.Context, txID string) (*CoordinationRecord, bool, error) {
	row := cdb.db.QueryRowContext(ctx,
		`SELECT transactionId, transactionType, processingService, status, startedAt, completedAt
		FROM coordination_records WHERE transactionId = ?`, txID)
	return scanRecord(row)
}

// SweepExpired removes, in a single statement, terminal records that
// finished before terminalCutoff and processing records that started
// before staleCutoff. Returns the number of removed rows.
func (cdb *CoordDB) SweepExpired(ctx context.Context, terminalCutoff, staleCutoff time.Time) (int64, error) {
	query := `DELETE FROM coordination_records WHERE
		(status IN (?, ?) AND completedAt IS NOT NULL AND completedAt < ?)
		OR (status = ? AND startedAt < ?)`
	res, err := cdb.db.ExecContext(ctx, query,
		CoordStatusCompleted, CoordStatusFailed, terminalCutoff.UnixMilli(),
		CoordStatusProcessing, staleCutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// InsertRecord writes a record as given, completedAt included. The
// bridge itself only creates records through AcquireLease; this is for
// tests and operational tooling that plant rows with crafted
// timestamps.
func (cdb *CoordDB) InsertRecord(ctx context.Context, rec *CoordinationRecord) error {
	completedAt := sql.NullInt64{Int64: rec.CompletedAt, Valid: rec.CompletedAt != 0}
	_, err := cdb.db.ExecContext(ctx, `INSERT INTO coordination_records (
		transactionId, transactionType, processingService, status, startedAt, completedAt
	) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.TransactionID, rec.TransactionType, rec.ProcessingService,
		rec.Status, rec.StartedAt, completedAt)
	return err
}

func (cdb *CoordDB) tryInsert(ctx context.Context, tx *sql.Tx, txID, txType, service string, nowMs int64) (bool, error) {
	var res sql.Result
	var err error
	if tx != nil {
		res, err = tx.ExecContext(ctx, insertRecordQuery, txID, txType, service, CoordStatusProcessing, nowMs)
	} else {
		res, err = cdb.db.ExecContext(ctx, insertRecordQuery, txID, txType, service, CoordStatusProcessing, nowMs)
	}
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func getRecordTx(ctx context.Context, tx *sql.Tx, txID string) (*CoordinationRecord, bool, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT transactionId, transactionType, processingService, status, startedAt, completedAt
		FROM coordination_records WHERE transactionId = ?`, txID)
	return scanRecord(row)
}

func scanRecord(row *sql.Row) (*CoordinationRecord, bool, error) {
	var rec CoordinationRecord
	var completedAt sql.NullInt64
	err := row.Scan(&rec.TransactionID, &rec.TransactionType, &rec.ProcessingService,
		&rec.Status, &rec.StartedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if completedAt.Valid {
		rec.CompletedAt = completedAt.Int64
	}
	return &rec, true, nil
}
