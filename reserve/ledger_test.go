package reserve

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenz-bridge/bridge-go/database"
)

func newTestLedger(t *testing.T) *Ledger {
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s, err := NewSQLiteReserveStorage(db)
	require.NoError(t, err)
	return NewLedger(s, nil)
}

func TestUnknownAssetIsZero(t *testing.T) {
	l := newTestLedger(t)
	amount, err := l.GetCurrentReserve("DOGE")
	require.NoError(t, err)
	assert.Zero(t, amount)
}

func TestAddAndRead(t *testing.T) {
	l := newTestLedger(t)

	require.NoError(t, l.AddToReserve(AssetBTC, 50_000))
	require.NoError(t, l.AddToReserve(AssetBTC, 25_000))
	require.NoError(t, l.AddToReserve(AssetZEC, 100))

	btc, err := l.GetCurrentReserve(AssetBTC)
	require.NoError(t, err)
	assert.Equal(t, int64(75_000), btc)

	zec, err := l.GetCurrentReserve(AssetZEC)
	require.NoError(t, err)
	assert.Equal(t, int64(100), zec)
}

func TestNegativeDelta(t *testing.T) {
	l := newTestLedger(t)

	require.NoError(t, l.AddToReserve(AssetBTC, 100))
	require.NoError(t, l.AddToReserve(AssetBTC, -60))

	amount, err := l.GetCurrentReserve(AssetBTC)
	require.NoError(t, err)
	assert.Equal(t, int64(40), amount)

	// the ledger has no opinion on overdrafts, it just records
	require.NoError(t, l.AddToReserve(AssetBTC, -100))
	amount, err = l.GetCurrentReserve(AssetBTC)
	require.NoError(t, err)
	assert.Equal(t, int64(-60), amount)
}

func TestEmptyAssetRejected(t *testing.T) {
	l := newTestLedger(t)
	assert.Error(t, l.AddToReserve("", 1))
}

func TestSnapshot(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.AddToReserve(AssetBTC, 10))
	require.NoError(t, l.AddToReserve(CounterMinted, 10))

	snap, err := l.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{AssetBTC: 10, CounterMinted: 10}, snap)
}

// Concurrent adds must all land; a lost update here is lost money.
func TestConcurrentAddsLoseNothing(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "reserve.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s, err := NewSQLiteReserveStorage(db)
	require.NoError(t, err)
	l := NewLedger(s, nil)

	const workers = 10
	const delta = int64(7)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.AddToReserve(AssetZEC, delta))
		}()
	}
	wg.Wait()

	amount, err := l.GetCurrentReserve(AssetZEC)
	require.NoError(t, err)
	assert.Equal(t, int64(workers)*delta, amount)
}
