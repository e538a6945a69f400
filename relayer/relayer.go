/*
Package relayer turns ingested bridge transactions into payouts and
watches those payouts until they are final.

Three procedures run on one tick, the way the chain tx managers before
it worked: submit mints for confirmed deposits, submit BTC payouts for
accepted redemptions, and monitor everything submitted until it
finalizes, fails or times out.

Several relayer replicas may run against the same database. Nothing
here relies on in-process locks: every submission is gated by the
coordinator's lease on the bridge transaction id, and the monitored
payout rows keep a second, per-payout guard against resubmitting
something that is still in flight.
*/
package relayer

import (
	"context"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	logger "github.com/sirupsen/logrus"

	"github.com/zenz-bridge/bridge-go/coordinator"
	"github.com/zenz-bridge/bridge-go/metrics"
	"github.com/zenz-bridge/bridge-go/mpcman"
	"github.com/zenz-bridge/bridge-go/reserve"
	"github.com/zenz-bridge/bridge-go/solman"
	"github.com/zenz-bridge/bridge-go/txstore"
)

const (
	DefaultInterval      = 15 * time.Second
	DefaultMintTimeout   = 10 * time.Minute // a Solana tx unseen this long is dead with its blockhash
	DefaultRedeemTimeout = 2 * time.Hour    // a BTC tx unseen this long needs eyes on it
	DefaultBTCFinality   = 6                // confirmations before a payout counts as final
)

type RelayerConfig struct {
	Interval         time.Duration
	MintTimeout      time.Duration
	RedeemTimeout    time.Duration
	BTCConfirmations int64
}

type Relayer struct {
	cfg      *RelayerConfig
	coord    *coordinator.Coordinator
	txStore  *txstore.TxStore
	payouts  PayoutDB
	reserves *reserve.Ledger
	sol      solman.PayoutClient
	btc      BTCPayer
	privacy  mpcman.PrivacyEngine
	chainCfg *chaincfg.Params // for decoding BTC payout addresses
	mtr      *metrics.BridgeMetrics
}

func NewRelayer(
	cfg *RelayerConfig,
	coord *coordinator.Coordinator,
	txStore *txstore.TxStore,
	payouts PayoutDB,
	reserves *reserve.Ledger,
	sol solman.PayoutClient,
	btc BTCPayer,
	privacy mpcman.PrivacyEngine,
	chainCfg *chaincfg.Params,
	mtr *metrics.BridgeMetrics,
) *Relayer {
	if cfg == nil {
		cfg = &RelayerConfig{}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MintTimeout <= 0 {
		cfg.MintTimeout = DefaultMintTimeout
	}
	if cfg.RedeemTimeout <= 0 {
		cfg.RedeemTimeout = DefaultRedeemTimeout
	}
	if cfg.BTCConfirmations <= 0 {
		cfg.BTCConfirmations = DefaultBTCFinality
	}
	return &Relayer{
		cfg:      cfg,
		coord:    coord,
		txStore:  txStore,
		payouts:  payouts,
		reserves: reserves,
		sol:      sol,
		btc:      btc,
		privacy:  privacy,
		chainCfg: chainCfg,
		mtr:      mtr,
	}
}

// The Big Loop.
func (r *Relayer) Loop(ctx context.Context) error {
	logger.Debug("starting relayer")
	defer logger.Debug("stopping relayer")

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick runs one round of submissions and monitoring. Split out of
// Loop so tests and tooling can drive rounds directly.
func (r *Relayer) Tick(ctx context.Context) {
	if err := r.procedureMints(ctx); err != nil {
		logger.Errorf("mint procedure failed: err=%v", err)
	}
	if err := r.procedureRedemptions(ctx); err != nil {
		logger.Errorf("redemption procedure failed: err=%v", err)
	}
	if err := r.procedureMonitor(ctx); err != nil {
		logger.Errorf("monitor procedure failed: err=%v", err)
	}
}

// inFlight reports whether the bridge transaction already has a
// payout that could still land. A timed-out payout counts for
// redemptions only: a Solana tx outliving its blockhash is dead, a
// BTC tx we lost sight of may still confirm, so paying again risks
// paying twice.
func (r *Relayer) inFlight(refTxID string, countTimeout bool) (bool, error) {
	hits, err := r.payouts.GetByRef(refTxID)
	if err != nil {
		return false, err
	}
	for _, p := range hits {
		switch p.Status {
		case Limbo, Pending:
			return true, nil
		case Timeout:
			if countTimeout {
				logger.WithFields(logger.Fields{
					"txId":   refTxID,
					"payout": p.PayoutSignature,
				}).Warn("payout timed out but may still land, holding back resubmission")
				return true, nil
			}
		}
	}
	return false, nil
}
