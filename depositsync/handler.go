/*
Package depositsync watches the source chains for bridge deposits and
feeds them into the stores.

Monitors re-observe the same deposits on every restart and both
monitor replicas may hand over the same transaction, so the handler
runs the full guard sequence: event ledger first, then the processing
lease, and only then the writes. The lease is released once the
deposit is ingested, the mint stage acquires its own.
*/
package depositsync

import (
	"context"

	logger "github.com/sirupsen/logrus"

	"github.com/zenz-bridge/bridge-go/common"
	"github.com/zenz-bridge/bridge-go/coordinator"
	"github.com/zenz-bridge/bridge-go/eventledger"
	"github.com/zenz-bridge/bridge-go/metrics"
	"github.com/zenz-bridge/bridge-go/reserve"
	"github.com/zenz-bridge/bridge-go/txstatus"
	"github.com/zenz-bridge/bridge-go/txstore"
)

type DepositHandler struct {
	coord    *coordinator.Coordinator
	ledger   eventledger.EventLedger
	txStore  *txstore.TxStore
	reserves *reserve.Ledger
	mtr      *metrics.BridgeMetrics
}

func NewDepositHandler(
	coord *coordinator.Coordinator,
	ledger eventledger.EventLedger,
	txStore *txstore.TxStore,
	reserves *reserve.Ledger,
	mtr *metrics.BridgeMetrics,
) *DepositHandler {
	return &DepositHandler{
		coord:    coord,
		ledger:   ledger,
		txStore:  txStore,
		reserves: reserves,
		mtr:      mtr,
	}
}

func TxTypeForAsset(asset string) string {
	if asset == reserve.AssetZEC {
		return txstore.TypeZECDeposit
	}
	return txstore.TypeBTCDeposit
}

// HandleVerifiedDeposit ingests one finalized deposit.
//
// 1. Skip if the event ledger has seen the deposit output.
// 2. Take the processing lease on the chain txid. A denied lease is a
//    skip, another service is on it or already finished it.
// 3. Record the transaction as pending, then move it to confirmed:
//    the deposit is final on its source chain and queued for minting.
// 4. Mark the event processed, then credit the reserve. A crash
//    between the two under-credits the reserve, it never mints twice.
// 5. Release the lease, the mint stage takes its own.
func (h *DepositHandler) HandleVerifiedDeposit(ctx context.Context, dep *common.VerifiedDeposit) error {
	txType := TxTypeForAsset(dep.Asset)
	sig := eventledger.DepositSignature(txType, dep.ChainTxID, dep.Vout)

	seen, err := h.ledger.IsEventProcessed(sig)
	if err != nil {
		return err
	}
	if seen {
		logger.WithField("event", common.Shorten(sig, 16)).Debug("deposit already ingested, skip.")
		return nil
	}

	decision := h.coord.CanProcessTransaction(ctx, dep.ChainTxID, txType)
	if !decision.CanProcess {
		logger.WithFields(logger.Fields{
			"txId":   common.Shorten(dep.ChainTxID, 8),
			"reason": decision.Reason,
		}).Debug("deposit held back")
		return nil
	}

	btx := &txstore.BridgeTransaction{
		TxID:      dep.ChainTxID,
		TxType:    txType,
		Asset:     dep.Asset,
		Amount:    dep.Amount,
		Recipient: dep.Recipient.String(),
	}
	if err := h.txStore.InsertTransaction(btx); err != nil {
		h.coord.ReleaseTransaction(ctx, dep.ChainTxID)
		return err
	}
	// Re-read instead of assuming pending: a crash after the status
	// move but before the ledger write lands here again with the row
	// already confirmed.
	row, err := h.txStore.GetTransaction(dep.ChainTxID)
	if err != nil {
		h.coord.ReleaseTransaction(ctx, dep.ChainTxID)
		return err
	}
	if row.Status == txstatus.StatusPending {
		if err := h.txStore.UpdateStatus(dep.ChainTxID, txstatus.StatusConfirmed, "deposit finalized on source chain"); err != nil {
			h.coord.ReleaseTransaction(ctx, dep.ChainTxID)
			return err
		}
	}

	if err := h.ledger.MarkEventProcessed(&eventledger.ProcessedEvent{
		EventSignature: sig,
		EventType:      txType,
		WalletAddress:  dep.Recipient.String(),
		Amount:         dep.Amount,
	}); err != nil {
		h.coord.ReleaseTransaction(ctx, dep.ChainTxID)
		return err
	}
	if err := h.reserves.AddToReserve(dep.Asset, dep.Amount); err != nil {
		h.coord.ReleaseTransaction(ctx, dep.ChainTxID)
		return err
	}

	h.mtr.DepositIngested(dep.Asset)
	h.coord.ReleaseTransaction(ctx, dep.ChainTxID)

	logger.WithFields(logger.Fields{
		"txId":      common.Shorten(dep.ChainTxID, 8),
		"asset":     dep.Asset,
		"amount":    dep.Amount,
		"recipient": common.Shorten(dep.Recipient.String(), 8),
	}).Info("deposit ingested")
	return nil
}
