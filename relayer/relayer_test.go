package relayer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenz-bridge/bridge-go/common"
	"github.com/zenz-bridge/bridge-go/coorddb"
	"github.com/zenz-bridge/bridge-go/coordinator"
	"github.com/zenz-bridge/bridge-go/database"
	"github.com/zenz-bridge/bridge-go/metrics"
	"github.com/zenz-bridge/bridge-go/mpcman"
	"github.com/zenz-bridge/bridge-go/reserve"
	"github.com/zenz-bridge/bridge-go/solman"
	"github.com/zenz-bridge/bridge-go/txstatus"
	"github.com/zenz-bridge/bridge-go/txstore"
)

const (
	testSolRecipient = "7Np41oeYqPefeNQEHSv1UDhYrehxin3NStELsSKCT4K2"
	testBTCAddress   = "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"
)

type relayerFixture struct {
	relayer  *Relayer
	coordDB  *coorddb.CoordDB
	txStore  *txstore.TxStore
	payouts  *SQLitePayoutDB
	reserves *reserve.Ledger
	sol      *solman.SimulatedPayoutClient
	btc      *SimulatedBTCPayer
	privacy  mpcman.PrivacyEngine
}

func newRelayerFixture(t *testing.T) *relayerFixture {
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cdb, err := coorddb.NewCoordDB(db)
	require.NoError(t, err)
	ts, err := txstore.NewTxStore(db)
	require.NoError(t, err)
	pdb, err := NewSQLitePayoutDB(db)
	require.NoError(t, err)
	rs, err := reserve.NewSQLiteReserveStorage(db)
	require.NoError(t, err)

	mtr := metrics.NewBridgeMetrics(prometheus.NewRegistry())
	coord := coordinator.NewCoordinator(cdb, &coordinator.Config{
		ServiceName:         "relayer-test",
		FailedRetryInterval: 50 * time.Millisecond,
	}, mtr)
	reserves := reserve.NewLedger(rs, mtr)

	sol := solman.NewSimulatedPayoutClient()
	btc := NewSimulatedBTCPayer()
	privacy, err := mpcman.NewRandomLocalPrivacyEngine()
	require.NoError(t, err)

	r := NewRelayer(
		&RelayerConfig{Interval: time.Hour}, // ticks driven by hand
		coord, ts, pdb, reserves, sol, btc, privacy,
		&chaincfg.MainNetParams, mtr,
	)
	return &relayerFixture{
		relayer:  r,
		coordDB:  cdb,
		txStore:  ts,
		payouts:  pdb,
		reserves: reserves,
		sol:      sol,
		btc:      btc,
		privacy:  privacy,
	}
}

func (f *relayerFixture) insertDeposit(t *testing.T, recipient string) string {
	txID := common.RandTxID()
	require.NoError(t, f.txStore.InsertTransaction(&txstore.BridgeTransaction{
		TxID:      txID,
		TxType:    txstore.TypeBTCDeposit,
		Asset:     reserve.AssetBTC,
		Amount:    250000,
		Recipient: recipient,
	}))
	require.NoError(t, f.txStore.UpdateStatus(txID, txstatus.StatusConfirmed, "deposit finalized on source chain"))
	return txID
}

func (f *relayerFixture) insertRedemption(t *testing.T, recipient string, amount int64) string {
	txID := common.RandTxID()
	require.NoError(t, f.txStore.InsertTransaction(&txstore.BridgeTransaction{
		TxID:      txID,
		TxType:    txstore.TypeRedemption,
		Asset:     reserve.AssetBTC,
		Amount:    amount,
		Recipient: recipient,
	}))
	return txID
}

func TestMintLifecycle(t *testing.T) {
	f := newRelayerFixture(t)
	ctx := context.Background()
	f.sol.FinalizeAfter = 2 // first poll sees it pending, second finalizes

	txID := f.insertDeposit(t, testSolRecipient)

	// Tick 1: mint submitted, first poll sees it but not final.
	f.relayer.Tick(ctx)

	mints := f.sol.Mints()
	require.Len(t, mints, 1)
	assert.Equal(t, uint64(250000), mints[0].Amount)

	row, err := f.txStore.GetTransaction(txID)
	require.NoError(t, err)
	assert.Equal(t, txstatus.StatusConfirmed, row.Status, "stays confirmed while the payout flies")
	assert.Equal(t, mints[0].Signature.String(), row.PayoutSignature)

	p, err := f.payouts.GetBySignature(row.PayoutSignature)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, Pending, p.Status)

	// Lease held through the flight, no double submission.
	f.relayer.Tick(ctx)
	assert.Len(t, f.sol.Mints(), 1)

	row, err = f.txStore.GetTransaction(txID)
	require.NoError(t, err)
	assert.Equal(t, txstatus.StatusProcessed, row.Status)

	p, err = f.payouts.GetBySignature(row.PayoutSignature)
	require.NoError(t, err)
	assert.Equal(t, Success, p.Status)

	minted, err := f.reserves.GetCurrentReserve(reserve.CounterMinted)
	require.NoError(t, err)
	assert.Equal(t, int64(250000), minted)

	rec, found, err := f.coordDB.Get(ctx, txID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, coorddb.CoordStatusCompleted, rec.Status)
}

func TestMintSubmitFailureAndCooldownRetry(t *testing.T) {
	f := newRelayerFixture(t)
	ctx := context.Background()
	txID := f.insertDeposit(t, testSolRecipient)

	f.sol.SubmitErr = errors.New("rpc unavailable")
	f.relayer.Tick(ctx)

	row, err := f.txStore.GetTransaction(txID)
	require.NoError(t, err)
	assert.Equal(t, txstatus.StatusFailed, row.Status)

	rec, found, err := f.coordDB.Get(ctx, txID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, coorddb.CoordStatusFailed, rec.Status)

	// Cooldown still running, nothing resubmitted.
	f.sol.SubmitErr = nil
	f.relayer.Tick(ctx)
	assert.Empty(t, f.sol.Mints())

	time.Sleep(60 * time.Millisecond)

	// Cooldown elapsed: lease recovered, mint resubmitted and (with
	// FinalizeAfter=1) finalized within the same tick.
	f.relayer.Tick(ctx)
	require.Len(t, f.sol.Mints(), 1)

	row, err = f.txStore.GetTransaction(txID)
	require.NoError(t, err)
	assert.Equal(t, txstatus.StatusProcessed, row.Status)

	history, err := f.txStore.GetStatusHistory(txID)
	require.NoError(t, err)
	var resubmitted bool
	for _, h := range history {
		if h.Notes == "mint resubmitted" {
			resubmitted = true
		}
	}
	assert.True(t, resubmitted, "retry path recorded in the history")
}

func TestMintBadRecipientFailsPermanently(t *testing.T) {
	f := newRelayerFixture(t)
	ctx := context.Background()
	txID := f.insertDeposit(t, "not-a-solana-account")

	f.relayer.Tick(ctx)

	assert.Empty(t, f.sol.Mints())
	row, err := f.txStore.GetTransaction(txID)
	require.NoError(t, err)
	assert.Equal(t, txstatus.StatusFailed, row.Status)
}

func TestRedemptionLifecycle(t *testing.T) {
	f := newRelayerFixture(t)
	ctx := context.Background()
	require.NoError(t, f.reserves.AddToReserve(reserve.AssetBTC, 500000))

	txID := f.insertRedemption(t, testBTCAddress, 100000)

	// Tick 1: payout broadcast, reserve debited, burn recorded.
	f.relayer.Tick(ctx)

	payments := f.btc.Payments()
	require.Len(t, payments, 1)
	assert.Equal(t, testBTCAddress, payments[0].Address)
	assert.Equal(t, int64(100000), payments[0].AmountSat)

	balance, err := f.reserves.GetCurrentReserve(reserve.AssetBTC)
	require.NoError(t, err)
	assert.Equal(t, int64(400000), balance)
	burned, err := f.reserves.GetCurrentReserve(reserve.CounterBurned)
	require.NoError(t, err)
	assert.Equal(t, int64(100000), burned)

	row, err := f.txStore.GetTransaction(txID)
	require.NoError(t, err)
	assert.Equal(t, txstatus.StatusProcessing, row.Status)
	assert.Equal(t, payments[0].TxID, row.PayoutSignature)

	// Unconfirmed: watched, not resubmitted.
	f.relayer.Tick(ctx)
	assert.Len(t, f.btc.Payments(), 1)
	p, err := f.payouts.GetBySignature(payments[0].TxID)
	require.NoError(t, err)
	assert.Equal(t, Pending, p.Status)

	// Deep enough: done.
	f.btc.Confirm(payments[0].TxID, DefaultBTCFinality)
	f.relayer.Tick(ctx)

	row, err = f.txStore.GetTransaction(txID)
	require.NoError(t, err)
	assert.Equal(t, txstatus.StatusProcessed, row.Status)

	rec, found, err := f.coordDB.Get(ctx, txID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, coorddb.CoordStatusCompleted, rec.Status)
}

func TestRedemptionDecryptsSealedAddress(t *testing.T) {
	f := newRelayerFixture(t)
	ctx := context.Background()

	env, err := f.privacy.EncryptAddress(testBTCAddress)
	require.NoError(t, err)
	f.insertRedemption(t, mpcman.EncodeEncryptedAddress(env), 75000)

	f.relayer.Tick(ctx)

	payments := f.btc.Payments()
	require.Len(t, payments, 1)
	assert.Equal(t, testBTCAddress, payments[0].Address, "payout goes to the opened address")
}

func TestRedemptionSubmitFailure(t *testing.T) {
	f := newRelayerFixture(t)
	ctx := context.Background()
	require.NoError(t, f.reserves.AddToReserve(reserve.AssetBTC, 500000))

	txID := f.insertRedemption(t, testBTCAddress, 100000)
	f.btc.FailNext(errors.New("wallet locked"))

	f.relayer.Tick(ctx)

	row, err := f.txStore.GetTransaction(txID)
	require.NoError(t, err)
	assert.Equal(t, txstatus.StatusFailed, row.Status)

	balance, err := f.reserves.GetCurrentReserve(reserve.AssetBTC)
	require.NoError(t, err)
	assert.Equal(t, int64(500000), balance, "nothing left the reserve")
}

func TestTimedOutRedemptionIsNotResubmitted(t *testing.T) {
	f := newRelayerFixture(t)
	ctx := context.Background()

	txID := f.insertRedemption(t, testBTCAddress, 100000)
	require.NoError(t, f.txStore.UpdateStatus(txID, txstatus.StatusFailed, "btc payout timed out, manual review required"))
	require.NoError(t, f.payouts.InsertMonitoredPayout(&MonitoredPayout{
		PayoutSignature: common.RandTxID(),
		RefTxID:         txID,
		Kind:            KindRedemption,
		Amount:          100000,
		SubmittedAtSlot: -1,
		FoundAtSlot:     -1,
		SubmittedAt:     time.Now().Add(-24 * time.Hour).UnixMilli(),
		Status:          Timeout,
	}))

	time.Sleep(60 * time.Millisecond) // past the failure cooldown
	f.relayer.Tick(ctx)

	assert.Empty(t, f.btc.Payments(), "a lost payout may still land, never pay twice")
}

func TestMintFailedOnChain(t *testing.T) {
	f := newRelayerFixture(t)
	ctx := context.Background()
	txID := f.insertDeposit(t, testSolRecipient)
	f.sol.FinalizeAfter = 2

	f.relayer.Tick(ctx)
	mints := f.sol.Mints()
	require.Len(t, mints, 1)

	f.sol.FailSignature(mints[0].Signature)
	f.relayer.Tick(ctx)

	row, err := f.txStore.GetTransaction(txID)
	require.NoError(t, err)
	assert.Equal(t, txstatus.StatusFailed, row.Status)

	p, err := f.payouts.GetBySignature(mints[0].Signature.String())
	require.NoError(t, err)
	assert.Equal(t, Failed, p.Status)

	minted, err := f.reserves.GetCurrentReserve(reserve.CounterMinted)
	require.NoError(t, err)
	assert.Zero(t, minted)
}
