package relayer

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	logger "github.com/sirupsen/logrus"

	"github.com/zenz-bridge/bridge-go/common"
	"github.com/zenz-bridge/bridge-go/mpcman"
	"github.com/zenz-bridge/bridge-go/reserve"
	"github.com/zenz-bridge/bridge-go/txstatus"
	"github.com/zenz-bridge/bridge-go/txstore"
)

// procedureRedemptions pays out accepted burns in BTC.
//
// Same gates as the mint side, plus: a redemption whose payout timed
// out is never resubmitted automatically, the lost BTC tx may still
// confirm and paying again would pay twice. Those sit until an
// operator settles them.
func (r *Relayer) procedureRedemptions(ctx context.Context) error {
	for _, status := range []string{txstatus.StatusPending, txstatus.StatusFailed} {
		rows, err := r.txStore.GetByStatusAndType(status, txstore.TypeRedemption)
		if err != nil {
			return fmt.Errorf("failed to query %s redemptions: %v", status, err)
		}
		for _, row := range rows {
			r.submitRedemption(ctx, row)
		}
	}
	return nil
}

func (r *Relayer) submitRedemption(ctx context.Context, row *txstore.BridgeTransaction) {
	fields := logger.Fields{
		"txId": common.Shorten(row.TxID, 8),
	}

	live, err := r.inFlight(row.TxID, true)
	if err != nil {
		logger.WithFields(fields).Errorf("failed to check in-flight payouts: %v", err)
		return
	}
	if live {
		return
	}

	decision := r.coord.CanProcessTransaction(ctx, row.TxID, txstore.TypeRedemption)
	if !decision.CanProcess {
		logger.WithFields(fields).WithField("reason", decision.Reason).Debug("redemption held back")
		return
	}

	addr, err := r.resolvePayoutAddress(row.Recipient)
	if err != nil {
		logger.WithFields(fields).Errorf("unusable payout address: %v", err)
		r.failTransaction(row.TxID, "payout address unusable: "+err.Error())
		r.coord.MarkTransactionFailed(ctx, row.TxID)
		return
	}

	if row.Status == txstatus.StatusFailed {
		if err := r.txStore.UpdateStatus(row.TxID, txstatus.StatusProcessing, "btc payout resubmitted"); err != nil {
			logger.WithFields(fields).Errorf("failed to reopen failed redemption: %v", err)
			r.coord.ReleaseTransaction(ctx, row.TxID)
			return
		}
	}

	hash, err := r.btc.SendToAddress(addr, row.Amount)
	if err != nil {
		logger.WithFields(fields).Errorf("btc payout submission failed: %v", err)
		r.failTransaction(row.TxID, "btc payout submission failed: "+err.Error())
		r.coord.MarkTransactionFailed(ctx, row.TxID)
		r.mtr.PayoutFailed(KindRedemption)
		return
	}
	txid := hash.String()

	// The BTC left the reserve the moment the wallet broadcast it.
	if err := r.reserves.AddToReserve(reserve.AssetBTC, -row.Amount); err != nil {
		logger.WithFields(fields).Errorf("failed to debit BTC reserve: %v", err)
	}
	if err := r.reserves.AddToReserve(reserve.CounterBurned, row.Amount); err != nil {
		logger.WithFields(fields).Errorf("failed to bump burned counter: %v", err)
	}

	if row.Status == txstatus.StatusPending {
		if err := r.txStore.UpdateStatus(row.TxID, txstatus.StatusProcessing, "btc payout submitted"); err != nil {
			logger.WithFields(fields).Errorf("failed to move redemption to processing: %v", err)
		}
	}
	if err := r.txStore.SetPayoutSignature(row.TxID, txid); err != nil {
		logger.WithFields(fields).Errorf("failed to record payout txid: %v", err)
	}
	if err := r.payouts.InsertMonitoredPayout(&MonitoredPayout{
		PayoutSignature: txid,
		RefTxID:         row.TxID,
		Kind:            KindRedemption,
		Amount:          row.Amount,
		SubmittedAtSlot: -1,
		FoundAtSlot:     -1,
		SubmittedAt:     time.Now().UnixMilli(),
		Status:          Limbo,
	}); err != nil {
		logger.WithFields(fields).Errorf("btc payout submitted but not recorded, txid=%s: %v", txid, err)
		return
	}

	r.mtr.PayoutSubmitted(KindRedemption)
	logger.WithFields(fields).WithFields(logger.Fields{
		"payoutTxId": common.Shorten(txid, 8),
		"amount":     row.Amount,
	}).Info("btc payout submitted")
}

// resolvePayoutAddress turns the stored recipient into a spendable
// address, opening the privacy envelope when the user sealed it.
func (r *Relayer) resolvePayoutAddress(recipient string) (btcutil.Address, error) {
	plain := recipient
	if mpcman.IsEncryptedAddress(recipient) {
		if r.privacy == nil {
			return nil, fmt.Errorf("encrypted payout address but no privacy engine configured")
		}
		env, err := mpcman.DecodeEncryptedAddress(recipient)
		if err != nil {
			return nil, err
		}
		plain, err = r.privacy.DecryptAddress(env)
		if err != nil {
			return nil, fmt.Errorf("failed to open payout envelope: %v", err)
		}
	}
	return btcutil.DecodeAddress(plain, r.chainCfg)
}
