package eventledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenz-bridge/bridge-go/common"
	"github.com/zenz-bridge/bridge-go/database"
)

func newTestLedger(t *testing.T) *SQLiteEventLedger {
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	l, err := NewSQLiteEventLedger(db)
	require.NoError(t, err)
	return l
}

func TestMarkThenCheck(t *testing.T) {
	l := newTestLedger(t)
	sig := DepositSignature("btc_deposit", common.RandTxID(), 0)

	done, err := l.IsEventProcessed(sig)
	require.NoError(t, err)
	assert.False(t, done)

	err = l.MarkEventProcessed(&ProcessedEvent{
		EventSignature: sig,
		EventType:      "btc_deposit",
		WalletAddress:  "tb1qexample",
		Amount:         150_000,
	})
	require.NoError(t, err)

	done, err = l.IsEventProcessed(sig)
	require.NoError(t, err)
	assert.True(t, done)

	ev, found, err := l.GetEvent(sig)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(150_000), ev.Amount)
	assert.NotZero(t, ev.ProcessedAt)
}

func TestDoubleMarkIsNoop(t *testing.T) {
	l := newTestLedger(t)
	sig := RedemptionSignature(common.RandTxID())

	first := &ProcessedEvent{EventSignature: sig, EventType: "redemption", Amount: 10}
	require.NoError(t, l.MarkEventProcessed(first))

	// second mark with different metadata must not overwrite the first
	second := &ProcessedEvent{EventSignature: sig, EventType: "redemption", Amount: 999}
	require.NoError(t, l.MarkEventProcessed(second))

	ev, found, err := l.GetEvent(sig)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(10), ev.Amount)
}

func TestEmptySignatureRejected(t *testing.T) {
	l := newTestLedger(t)
	err := l.MarkEventProcessed(&ProcessedEvent{EventType: "btc_deposit"})
	assert.Error(t, err)
}

func TestSignatureBuilders(t *testing.T) {
	assert.Equal(t, "btc_deposit:abc:1", DepositSignature("btc_deposit", "abc", 1))
	assert.Equal(t, "redemption:sig123", RedemptionSignature("sig123"))
}
