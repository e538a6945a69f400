package relayer

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	logger "github.com/sirupsen/logrus"

	"github.com/zenz-bridge/bridge-go/common"
	"github.com/zenz-bridge/bridge-go/txstatus"
	"github.com/zenz-bridge/bridge-go/txstore"
)

// procedureMints submits zenZEC mints for ingested deposits.
//
// 1. Find deposits waiting for a mint (confirmed) or failed and
//    possibly cooled down.
// 2. Skip those with a payout already in flight.
// 3. Take the lease on the transaction id; a denied lease is a skip
//    (another replica is on it, or the failure cooldown is running).
// 4. Submit the mint and record it as a monitored payout. The lease
//    stays held until the monitor sees the payout finalize.
func (r *Relayer) procedureMints(ctx context.Context) error {
	for _, txType := range []string{txstore.TypeBTCDeposit, txstore.TypeZECDeposit} {
		for _, status := range []string{txstatus.StatusConfirmed, txstatus.StatusFailed} {
			rows, err := r.txStore.GetByStatusAndType(status, txType)
			if err != nil {
				return fmt.Errorf("failed to query %s deposits: %v", status, err)
			}
			for _, row := range rows {
				r.submitMint(ctx, row)
			}
		}
	}
	return nil
}

func (r *Relayer) submitMint(ctx context.Context, row *txstore.BridgeTransaction) {
	fields := logger.Fields{
		"txId":   common.Shorten(row.TxID, 8),
		"txType": row.TxType,
	}

	live, err := r.inFlight(row.TxID, false)
	if err != nil {
		logger.WithFields(fields).Errorf("failed to check in-flight payouts: %v", err)
		return
	}
	if live {
		return
	}

	decision := r.coord.CanProcessTransaction(ctx, row.TxID, row.TxType)
	if !decision.CanProcess {
		logger.WithFields(fields).WithField("reason", decision.Reason).Debug("mint held back")
		return
	}

	recipient, err := solana.PublicKeyFromBase58(row.Recipient)
	if err != nil {
		// Bad recipient is permanent, no payout can ever go out.
		logger.WithFields(fields).Errorf("unusable mint recipient %q: %v", row.Recipient, err)
		r.failTransaction(row.TxID, "mint recipient unusable: "+err.Error())
		return
	}

	// The retry path re-enters processing before resubmitting, so a
	// second failure has a legal move back to failed.
	if row.Status == txstatus.StatusFailed {
		if err := r.txStore.UpdateStatus(row.TxID, txstatus.StatusProcessing, "mint resubmitted"); err != nil {
			logger.WithFields(fields).Errorf("failed to reopen failed deposit: %v", err)
			r.coord.ReleaseTransaction(ctx, row.TxID)
			return
		}
	}

	submittedSlot := int64(-1)
	if slot, err := r.sol.CurrentSlot(ctx); err == nil {
		submittedSlot = int64(slot)
	}

	sig, err := r.sol.MintZenZEC(ctx, recipient, uint64(row.Amount))
	if err != nil {
		logger.WithFields(fields).Errorf("mint submission failed: %v", err)
		r.failTransaction(row.TxID, "mint submission failed: "+err.Error())
		r.coord.MarkTransactionFailed(ctx, row.TxID)
		r.mtr.PayoutFailed(KindMint)
		return
	}

	if err := r.payouts.InsertMonitoredPayout(&MonitoredPayout{
		PayoutSignature: sig.String(),
		RefTxID:         row.TxID,
		Kind:            KindMint,
		Amount:          row.Amount,
		SubmittedAtSlot: submittedSlot,
		FoundAtSlot:     -1,
		SubmittedAt:     time.Now().UnixMilli(),
		Status:          Limbo,
	}); err != nil {
		// The mint is out but we lost track of it. Keep the lease so
		// no replica doubles it, the monitor never resolves it and the
		// sweeper eventually frees the lease for a fresh look.
		logger.WithFields(fields).Errorf("mint submitted but not recorded, signature=%s: %v", sig, err)
		return
	}
	if err := r.txStore.SetPayoutSignature(row.TxID, sig.String()); err != nil {
		logger.WithFields(fields).Errorf("failed to record payout signature: %v", err)
	}

	r.mtr.PayoutSubmitted(KindMint)
	logger.WithFields(fields).WithFields(logger.Fields{
		"signature": common.Shorten(sig.String(), 8),
		"amount":    row.Amount,
		"recipient": common.Shorten(row.Recipient, 8),
	}).Info("mint submitted")
}

// failTransaction moves the bridge transaction to failed, best
// effort. Rejected moves (the row is already failed) are only logged.
func (r *Relayer) failTransaction(txID, notes string) {
	if err := r.txStore.UpdateStatus(txID, txstatus.StatusFailed, notes); err != nil {
		logger.WithField("txId", common.Shorten(txID, 8)).Warnf("could not mark transaction failed: %v", err)
	}
}
