package depositsync

/*
ZEC monitor polls the explorer for transactions touching the bridge
t-address. The explorer is address-indexed, so instead of a block
cursor the monitor keeps a seen-set; whatever slips through a restart
is caught by the event ledger downstream.
*/

import (
	"context"
	"fmt"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/zenz-bridge/bridge-go/zecman"
)

const DefaultZECScanInterval = 60 * time.Second

type ZECMonitor struct {
	BridgeZECAddress string
	Explorer         *zecman.ExplorerClient
	ConfirmDepth     int64 // confirmations before a deposit counts
	ScanInterval     time.Duration
	sink             DepositSink
	seen             map[string]bool
}

func NewZECMonitor(address string, explorer *zecman.ExplorerClient, sink DepositSink) *ZECMonitor {
	return &ZECMonitor{
		BridgeZECAddress: address,
		Explorer:         explorer,
		ConfirmDepth:     zecman.CONFIRM_SAFE,
		ScanInterval:     DefaultZECScanInterval,
		sink:             sink,
		seen:             make(map[string]bool),
	}
}

// Scan pulls the address history and ingests every finalized deposit
// not yet handled in this process.
func (m *ZECMonitor) Scan(ctx context.Context) error {
	txids, err := m.Explorer.GetAddressTxIDs(ctx, m.BridgeZECAddress)
	if err != nil {
		return fmt.Errorf("failed to list address transactions: %w", err)
	}

	for _, txid := range txids {
		if m.seen[txid] {
			continue
		}
		tx, err := m.Explorer.GetTx(ctx, txid)
		if err != nil {
			logger.WithField("zecTxId", txid).Warnf("failed to fetch tx: %v", err)
			continue
		}
		if tx.Confirmations < m.ConfirmDepth {
			// young, look again next tick
			continue
		}
		if !zecman.IsDepositTx(tx, m.BridgeZECAddress) {
			m.seen[txid] = true
			continue
		}
		deposit, err := zecman.CraftVerifiedDeposit(tx, m.BridgeZECAddress)
		if err != nil {
			logger.WithField("zecTxId", txid).Warnf("failed to craft verified deposit from a maybe deposit: %v", err)
			m.seen[txid] = true
			continue
		}
		logger.WithField("zecTxId", deposit.ChainTxID).Info("deposit found")

		if err := m.sink.HandleVerifiedDeposit(ctx, deposit); err != nil {
			logger.WithField("zecTxId", txid).Warnf("failed to ingest deposit: %v", err)
			continue // not marked seen, retried next tick
		}
		m.seen[txid] = true
	}
	return nil
}

// ScanLoop continuously polls the explorer until the context ends.
func (m *ZECMonitor) ScanLoop(ctx context.Context) error {
	ticker := time.NewTicker(m.ScanInterval)
	defer ticker.Stop()

	logger.WithField("interval", m.ScanInterval).Debug("zec monitor started")
	for {
		select {
		case <-ctx.Done():
			logger.Debug("zec monitor stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := m.Scan(ctx); err != nil {
				logger.Warnf("zec scan error: %v", err)
			}
		}
	}
}
