package depositsync

/*
BTC monitor scans the chain for transfers into the bridge address that
carry the recipient memo. Only blocks ScanOffset deep are fetched, so
every deposit handed to the sink is final by construction.
*/

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	logger "github.com/sirupsen/logrus"

	"github.com/zenz-bridge/bridge-go/btcman/rpc"
	"github.com/zenz-bridge/bridge-go/btcman/utils"
	"github.com/zenz-bridge/bridge-go/common"
)

const DefaultBTCScanInterval = 30 * time.Second

// DepositSink consumes finalized deposits. DepositHandler is the real
// one, tests plug in their own.
type DepositSink interface {
	HandleVerifiedDeposit(ctx context.Context, dep *common.VerifiedDeposit) error
}

type BTCMonitor struct {
	BridgeBTCAddress       btcutil.Address  // btc address of the bridge wallet.
	LastVisitedBlockHeight int64            // newest finalized block already scanned
	ChainConfig            *chaincfg.Params // which btc chain
	RpcClient              *rpc.RpcClient
	ScanOffset             int // blocks of maturity before a deposit counts
	ScanInterval           time.Duration
	sink                   DepositSink
}

func NewBTCMonitor(addressStr string, chainConfig *chaincfg.Params, rpcClient *rpc.RpcClient, startBlock int64, sink DepositSink) (*BTCMonitor, error) {
	_address, err := btcutil.DecodeAddress(addressStr, chainConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to decode address: %v", err)
	}
	return &BTCMonitor{
		BridgeBTCAddress:       _address,
		LastVisitedBlockHeight: startBlock,
		ChainConfig:            chainConfig,
		RpcClient:              rpcClient,
		ScanOffset:             rpc.CONFIRM_SAFE,
		ScanInterval:           DefaultBTCScanInterval,
		sink:                   sink,
	}, nil
}

// Scan represents a single round of scanning the blockchain.
// Scan for blocks,
// Scan each block for txs,
// Scan each tx for bridge deposits and hand them to the sink.
func (m *BTCMonitor) Scan(ctx context.Context) error {
	latestBlockHeight, err := m.RpcClient.GetLatestBlockHeight()
	if err != nil {
		return fmt.Errorf("failed to get latest block height: %v", err)
	}

	// Newest block deep enough to trust.
	newestFinalized := latestBlockHeight - int64(m.ScanOffset)
	if newestFinalized <= m.LastVisitedBlockHeight {
		return nil // no blocks to scan. and no error
	}
	numbersToFetch := newestFinalized - m.LastVisitedBlockHeight

	logger.WithFields(logger.Fields{
		"latestBlockHeight":      latestBlockHeight,
		"lastVisitedBlockHeight": m.LastVisitedBlockHeight,
		"scanOffset":             m.ScanOffset,
		"numbersToFetch":         numbersToFetch,
	}).Debug("scanning btc blocks")

	blocks, err := m.RpcClient.GetBlocks(int(numbersToFetch), m.ScanOffset)
	if err != nil {
		return fmt.Errorf("failed to get finalized blocks: %v", err)
	}

	for _, block := range blocks {
		// skip no transaction blocks
		if len(block.Transactions) == 0 {
			continue
		}
		blockHash := block.BlockHash()
		blockHeight, err := m.RpcClient.GetBlockHeightByHash(&blockHash)
		if err != nil {
			logger.WithField("blockHash", blockHash.String()).
				Warnf("failed to get block height by hash: %v", err)
			continue
		}
		for _, tx := range block.Transactions {
			// check if the BTC tx is a user's bridge deposit
			if !utils.IsDepositTx(tx, m.BridgeBTCAddress, m.ChainConfig) {
				continue
			}
			deposit, err := utils.CraftVerifiedDeposit(tx, blockHeight, block, m.BridgeBTCAddress)
			if err != nil {
				logger.WithFields(logger.Fields{
					"blockNum": blockHeight,
					"btcTxId":  tx.TxHash().String(),
				}).Warnf("failed to craft verified deposit from a maybe deposit: %v", err)
				continue
				// TODO: refund path for deposits with a broken memo
			}
			logger.WithField("btcTxId", deposit.ChainTxID).Info("deposit found")

			if err := m.sink.HandleVerifiedDeposit(ctx, deposit); err != nil {
				// leave the cursor alone so a later scan retries the range
				return fmt.Errorf("failed to ingest deposit %s: %v", deposit.ChainTxID, err)
			}
		}
	}

	// update the newest finalized block visited
	m.LastVisitedBlockHeight = newestFinalized
	return nil
}

// ScanLoop continuously scans the blockchain until the context ends.
func (m *BTCMonitor) ScanLoop(ctx context.Context) error {
	ticker := time.NewTicker(m.ScanInterval)
	defer ticker.Stop()

	logger.WithField("interval", m.ScanInterval).Debug("btc monitor started")
	for {
		select {
		case <-ctx.Done():
			logger.Debug("btc monitor stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := m.Scan(ctx); err != nil {
				logger.Warnf("btc scan error: %v", err)
			}
		}
	}
}
