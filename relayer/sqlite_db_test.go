package relayer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenz-bridge/bridge-go/common"
	"github.com/zenz-bridge/bridge-go/database"
)

func newPayoutDB(t *testing.T) *SQLitePayoutDB {
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	pdb, err := NewSQLitePayoutDB(db)
	require.NoError(t, err)
	return pdb
}

func samplePayout(kind string) *MonitoredPayout {
	return &MonitoredPayout{
		PayoutSignature: common.RandTxID(),
		RefTxID:         common.RandTxID(),
		Kind:            kind,
		Amount:          150000,
		SubmittedAtSlot: 1200,
		FoundAtSlot:     -1,
		SubmittedAt:     time.Now().UnixMilli(),
		Status:          Limbo,
	}
}

func TestPayoutInsertAndGet(t *testing.T) {
	pdb := newPayoutDB(t)
	p := samplePayout(KindMint)

	require.NoError(t, pdb.InsertMonitoredPayout(p))

	got, err := pdb.GetBySignature(p.PayoutSignature)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p.RefTxID, got.RefTxID)
	assert.Equal(t, KindMint, got.Kind)
	assert.Equal(t, int64(150000), got.Amount)
	assert.Equal(t, int64(-1), got.FoundAtSlot)
	assert.Equal(t, Limbo, got.Status)

	missing, err := pdb.GetBySignature("no-such-signature")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestPayoutDuplicateSignatureRejected(t *testing.T) {
	pdb := newPayoutDB(t)
	p := samplePayout(KindMint)

	require.NoError(t, pdb.InsertMonitoredPayout(p))
	assert.Error(t, pdb.InsertMonitoredPayout(p))
}

func TestPayoutGetByRef(t *testing.T) {
	pdb := newPayoutDB(t)
	ref := common.RandTxID()

	first := samplePayout(KindMint)
	first.RefTxID = ref
	first.SubmittedAt = 1000
	second := samplePayout(KindMint)
	second.RefTxID = ref
	second.SubmittedAt = 2000

	require.NoError(t, pdb.InsertMonitoredPayout(first))
	require.NoError(t, pdb.InsertMonitoredPayout(second))
	require.NoError(t, pdb.InsertMonitoredPayout(samplePayout(KindMint)))

	hits, err := pdb.GetByRef(ref)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, first.PayoutSignature, hits[0].PayoutSignature, "oldest first")
	assert.Equal(t, second.PayoutSignature, hits[1].PayoutSignature)
}

func TestPayoutGetByStatus(t *testing.T) {
	pdb := newPayoutDB(t)

	limbo := samplePayout(KindMint)
	pending := samplePayout(KindRedemption)
	pending.Status = Pending
	done := samplePayout(KindMint)
	done.Status = Success

	require.NoError(t, pdb.InsertMonitoredPayout(limbo))
	require.NoError(t, pdb.InsertMonitoredPayout(pending))
	require.NoError(t, pdb.InsertMonitoredPayout(done))

	watching, err := pdb.GetByStatus(Limbo, Pending)
	require.NoError(t, err)
	assert.Len(t, watching, 2)

	succeeded, err := pdb.GetByStatus(Success)
	require.NoError(t, err)
	require.Len(t, succeeded, 1)
	assert.Equal(t, done.PayoutSignature, succeeded[0].PayoutSignature)

	none, err := pdb.GetByStatus()
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPayoutUpdates(t *testing.T) {
	pdb := newPayoutDB(t)
	p := samplePayout(KindMint)
	require.NoError(t, pdb.InsertMonitoredPayout(p))

	require.NoError(t, pdb.UpdateStatus(p.PayoutSignature, Pending))
	require.NoError(t, pdb.UpdateFound(p.PayoutSignature, 1234))

	got, err := pdb.GetBySignature(p.PayoutSignature)
	require.NoError(t, err)
	assert.Equal(t, Pending, got.Status)
	assert.Equal(t, int64(1234), got.FoundAtSlot)

	require.NoError(t, pdb.Delete(p.PayoutSignature))
	got, err = pdb.GetBySignature(p.PayoutSignature)
	require.NoError(t, err)
	assert.Nil(t, got)
}
