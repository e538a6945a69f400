package relayer

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	logger "github.com/sirupsen/logrus"

	"github.com/zenz-bridge/bridge-go/common"
	"github.com/zenz-bridge/bridge-go/reserve"
	"github.com/zenz-bridge/bridge-go/txstatus"
)

// procedureMonitor follows every submitted payout until it is final,
// failed or presumed dropped.
func (r *Relayer) procedureMonitor(ctx context.Context) error {
	watching, err := r.payouts.GetByStatus(Limbo, Pending)
	if err != nil {
		return err
	}
	for _, p := range watching {
		switch p.Kind {
		case KindMint:
			r.monitorMint(ctx, p)
		case KindRedemption:
			r.monitorRedemption(ctx, p)
		}
	}
	return nil
}

func (r *Relayer) monitorMint(ctx context.Context, p *MonitoredPayout) {
	fields := logger.Fields{
		"txId":      common.Shorten(p.RefTxID, 8),
		"signature": common.Shorten(p.PayoutSignature, 8),
	}

	sig, err := solana.SignatureFromBase58(p.PayoutSignature)
	if err != nil {
		logger.WithFields(fields).Errorf("monitored payout carries a bad signature: %v", err)
		return
	}
	st, err := r.sol.SignatureStatus(ctx, sig)
	if err != nil {
		logger.WithFields(fields).Errorf("failed to query signature status: %v", err)
		return
	}

	switch {
	case st.Found && st.Failed:
		logger.WithFields(fields).Error("mint failed on chain")
		r.recordPayoutStatus(p.PayoutSignature, Failed)
		r.failTransaction(p.RefTxID, "mint failed on chain")
		r.coord.MarkTransactionFailed(ctx, p.RefTxID)
		r.mtr.PayoutFailed(KindMint)

	case st.Finalized:
		r.recordPayoutStatus(p.PayoutSignature, Success)
		if err := r.payouts.UpdateFound(p.PayoutSignature, int64(st.Slot)); err != nil {
			logger.WithFields(fields).Warnf("failed to record found slot: %v", err)
		}
		if err := r.txStore.UpdateStatus(p.RefTxID, txstatus.StatusProcessed, "mint finalized"); err != nil {
			logger.WithFields(fields).Errorf("failed to mark deposit processed: %v", err)
			return
		}
		if err := r.reserves.AddToReserve(reserve.CounterMinted, p.Amount); err != nil {
			logger.WithFields(fields).Errorf("failed to bump minted counter: %v", err)
		}
		r.coord.MarkTransactionCompleted(ctx, p.RefTxID)
		r.mtr.PayoutFinalized(KindMint)
		logger.WithFields(fields).WithField("slot", st.Slot).Info("mint finalized")

	case st.Found:
		// Seen but not final yet.
		if p.Status == Limbo {
			r.recordPayoutStatus(p.PayoutSignature, Pending)
			if err := r.payouts.UpdateFound(p.PayoutSignature, int64(st.Slot)); err != nil {
				logger.WithFields(fields).Warnf("failed to record found slot: %v", err)
			}
		}

	default:
		// Unknown to the cluster. Past the blockhash lifetime the tx
		// cannot land anymore, safe to retry.
		if time.Now().UnixMilli()-p.SubmittedAt < r.cfg.MintTimeout.Milliseconds() {
			return
		}
		logger.WithFields(fields).Warn("mint unseen past timeout, presumed dropped")
		r.recordPayoutStatus(p.PayoutSignature, Timeout)
		r.mtr.PayoutFailed(KindMint)

		row, err := r.txStore.GetTransaction(p.RefTxID)
		if err != nil {
			logger.WithFields(fields).Errorf("failed to load deposit after timeout: %v", err)
			return
		}
		if row.Status == txstatus.StatusConfirmed {
			// Still queued for minting, free the lease so the next
			// tick resubmits right away.
			r.coord.ReleaseTransaction(ctx, p.RefTxID)
			return
		}
		// A resubmission died too, back to failed and let the
		// cooldown pace further attempts.
		r.failTransaction(p.RefTxID, "mint timed out")
		r.coord.MarkTransactionFailed(ctx, p.RefTxID)
	}
}

func (r *Relayer) monitorRedemption(ctx context.Context, p *MonitoredPayout) {
	fields := logger.Fields{
		"txId":       common.Shorten(p.RefTxID, 8),
		"payoutTxId": common.Shorten(p.PayoutSignature, 8),
	}

	conf, err := r.btc.GetTxConfirmations(p.PayoutSignature)
	if err != nil {
		// The node does not know the tx (or is unreachable). Give it
		// the full window before declaring the payout lost.
		if time.Now().UnixMilli()-p.SubmittedAt < r.cfg.RedeemTimeout.Milliseconds() {
			logger.WithFields(fields).Debugf("btc payout not visible yet: %v", err)
			return
		}
		logger.WithFields(fields).Warn("btc payout unseen past timeout, needs operator review")
		r.recordPayoutStatus(p.PayoutSignature, Timeout)
		r.failTransaction(p.RefTxID, "btc payout timed out, manual review required")
		r.coord.MarkTransactionFailed(ctx, p.RefTxID)
		r.mtr.PayoutFailed(KindRedemption)
		return
	}

	switch {
	case conf >= r.cfg.BTCConfirmations:
		r.recordPayoutStatus(p.PayoutSignature, Success)
		if err := r.txStore.UpdateStatus(p.RefTxID, txstatus.StatusProcessed, "btc payout finalized"); err != nil {
			logger.WithFields(fields).Errorf("failed to mark redemption processed: %v", err)
			return
		}
		r.coord.MarkTransactionCompleted(ctx, p.RefTxID)
		r.mtr.PayoutFinalized(KindRedemption)
		logger.WithFields(fields).WithField("confirmations", conf).Info("btc payout finalized")

	case conf >= 0 && p.Status == Limbo:
		r.recordPayoutStatus(p.PayoutSignature, Pending)
	}
}

func (r *Relayer) recordPayoutStatus(signature string, status PayoutStatus) {
	if err := r.payouts.UpdateStatus(signature, status); err != nil {
		logger.WithField("payout", common.Shorten(signature, 8)).Errorf("failed to update payout status to %s: %v", status, err)
	}
}
