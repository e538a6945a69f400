package coordinator

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenz-bridge/bridge-go/common"
	"github.com/zenz-bridge/bridge-go/coorddb"
	"github.com/zenz-bridge/bridge-go/database"
)

func newTestCoordDB(t *testing.T) *coorddb.CoordDB {
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cdb, err := coorddb.NewCoordDB(db)
	require.NoError(t, err)
	return cdb
}

func newCoordinator(cdb *coorddb.CoordDB, service string) *Coordinator {
	return NewCoordinator(cdb, &Config{ServiceName: service}, nil)
}

func TestGeneratedServiceName(t *testing.T) {
	cdb := newTestCoordDB(t)
	c := NewCoordinator(cdb, &Config{}, nil)
	assert.NotEmpty(t, c.ServiceName())
	assert.Contains(t, c.ServiceName(), "bridge-")
}

func TestClaimThenContention(t *testing.T) {
	cdb := newTestCoordDB(t)
	a := newCoordinator(cdb, "svc-a")
	b := newCoordinator(cdb, "svc-b")
	ctx := context.Background()
	txID := common.RandTxID()

	d := a.CanProcessTransaction(ctx, txID, "btc_deposit")
	assert.True(t, d.CanProcess)
	assert.Equal(t, ReasonAcquired, d.Reason)
	assert.False(t, d.DatabaseError)

	d = b.CanProcessTransaction(ctx, txID, "btc_deposit")
	assert.False(t, d.CanProcess)
	assert.Equal(t, ReasonProcessing, d.Reason)
	assert.Equal(t, "svc-a", d.ExistingService)
	assert.Zero(t, d.RetryAfter)
}

func TestCompletedIsPermanent(t *testing.T) {
	cdb := newTestCoordDB(t)
	a := newCoordinator(cdb, "svc-a")
	b := newCoordinator(cdb, "svc-b")
	ctx := context.Background()
	txID := common.RandTxID()

	require.True(t, a.CanProcessTransaction(ctx, txID, "btc_deposit").CanProcess)
	a.MarkTransactionCompleted(ctx, txID)

	for _, c := range []*Coordinator{a, b} {
		d := c.CanProcessTransaction(ctx, txID, "btc_deposit")
		assert.False(t, d.CanProcess)
		assert.Equal(t, ReasonCompleted, d.Reason)
		assert.Equal(t, "svc-a", d.ExistingService)
	}
}

func TestCompletionRequiresHolder(t *testing.T) {
	cdb := newTestCoordDB(t)
	a := newCoordinator(cdb, "svc-a")
	b := newCoordinator(cdb, "svc-b")
	ctx := context.Background()
	txID := common.RandTxID()

	require.True(t, a.CanProcessTransaction(ctx, txID, "btc_deposit").CanProcess)

	// b never held the lease, its completion attempt must change nothing
	b.MarkTransactionCompleted(ctx, txID)

	ps, err := a.GetTransactionProcessingStatus(ctx, txID)
	require.NoError(t, err)
	assert.True(t, ps.IsProcessing)
	assert.False(t, ps.IsCompleted)
	assert.Equal(t, "svc-a", ps.ProcessingService)
}

func TestFailedCooldownThenRecovery(t *testing.T) {
	cdb := newTestCoordDB(t)
	a := newCoordinator(cdb, "svc-a")
	b := newCoordinator(cdb, "svc-b")
	ctx := context.Background()
	txID := common.RandTxID()

	require.True(t, a.CanProcessTransaction(ctx, txID, "btc_deposit").CanProcess)
	a.MarkTransactionFailed(ctx, txID)

	// within the interval: denied, with the wait attached
	d := b.CanProcessTransaction(ctx, txID, "btc_deposit")
	assert.False(t, d.CanProcess)
	assert.Equal(t, ReasonCooldown, d.Reason)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, d.RetryAfter, DefaultFailedRetryInterval)

	// rewind the failure past the interval, then the claim goes through
	_, err := cdb.Delete(ctx, txID)
	require.NoError(t, err)
	old := common.NowMs() - (DefaultFailedRetryInterval + time.Minute).Milliseconds()
	require.NoError(t, cdb.InsertRecord(ctx, &coorddb.CoordinationRecord{
		TransactionID:     txID,
		TransactionType:   "btc_deposit",
		ProcessingService: "svc-a",
		Status:            coorddb.CoordStatusFailed,
		StartedAt:         old,
		CompletedAt:       old,
	}))

	d = b.CanProcessTransaction(ctx, txID, "btc_deposit")
	assert.True(t, d.CanProcess)
	assert.Equal(t, ReasonRecovered, d.Reason)
}

func TestReleaseReopensTheID(t *testing.T) {
	cdb := newTestCoordDB(t)
	a := newCoordinator(cdb, "svc-a")
	b := newCoordinator(cdb, "svc-b")
	ctx := context.Background()
	txID := common.RandTxID()

	require.True(t, a.CanProcessTransaction(ctx, txID, "redemption").CanProcess)
	a.ReleaseTransaction(ctx, txID)

	d := b.CanProcessTransaction(ctx, txID, "redemption")
	assert.True(t, d.CanProcess)
}

func TestStoreErrorFailsClosed(t *testing.T) {
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	cdb, err := coorddb.NewCoordDB(db)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	c := newCoordinator(cdb, "svc-a")
	d := c.CanProcessTransaction(context.Background(), common.RandTxID(), "btc_deposit")
	assert.False(t, d.CanProcess)
	assert.True(t, d.DatabaseError)
	assert.Equal(t, ReasonStoreError, d.Reason)

	// best-effort calls must swallow the same failure
	c.MarkTransactionCompleted(context.Background(), "whatever")
	c.ReleaseTransaction(context.Background(), "whatever")
}

func TestProcessingStatusProjection(t *testing.T) {
	cdb := newTestCoordDB(t)
	a := newCoordinator(cdb, "svc-a")
	ctx := context.Background()
	txID := common.RandTxID()

	ps, err := a.GetTransactionProcessingStatus(ctx, txID)
	require.NoError(t, err)
	assert.False(t, ps.IsProcessing)
	assert.False(t, ps.IsCompleted)

	require.True(t, a.CanProcessTransaction(ctx, txID, "btc_deposit").CanProcess)
	ps, err = a.GetTransactionProcessingStatus(ctx, txID)
	require.NoError(t, err)
	assert.True(t, ps.IsProcessing)
	assert.Equal(t, "svc-a", ps.ProcessingService)

	a.MarkTransactionCompleted(ctx, txID)
	ps, err = a.GetTransactionProcessingStatus(ctx, txID)
	require.NoError(t, err)
	assert.False(t, ps.IsProcessing)
	assert.True(t, ps.IsCompleted)
	assert.Equal(t, "svc-a", ps.CompletedService)
}

func TestManyServicesOneWinner(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "coord.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	cdb, err := coorddb.NewCoordDB(db)
	require.NoError(t, err)

	ctx := context.Background()
	txID := common.RandTxID()

	const n = 8
	decisions := make([]*ProcessDecision, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := newCoordinator(cdb, fmt.Sprintf("svc-%d", i))
			decisions[i] = c.CanProcessTransaction(ctx, txID, "btc_deposit")
		}(i)
	}
	wg.Wait()

	winners := 0
	var winner string
	for i, d := range decisions {
		require.NotNil(t, d)
		assert.False(t, d.DatabaseError, "svc-%d", i)
		if d.CanProcess {
			winners++
			winner = fmt.Sprintf("svc-%d", i)
		}
	}
	assert.Equal(t, 1, winners)

	for _, d := range decisions {
		if !d.CanProcess {
			assert.Equal(t, ReasonProcessing, d.Reason)
			assert.Equal(t, winner, d.ExistingService)
		}
	}
}
