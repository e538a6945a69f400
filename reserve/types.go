/*
Package reserve keeps the durable per-asset counters backing zenZEC.

The reserves answer one question, how much of each asset the bridge
currently holds. Deposit flows credit them, redemption payouts debit
them. Every mutation is a single atomic adjust in the store, there is
no read-modify-write anywhere, so concurrent flows cannot lose
updates. Legitimacy of a movement is the caller's business, the ledger
records what it is told.
*/
package reserve

// Asset names and bookkeeping counters. The minted/burned counters
// mirror what the on-chain bridge config tracks, kept here so the
// backend can reconcile against the chain.
const (
	AssetBTC      = "BTC"
	AssetZEC      = "ZEC"
	CounterMinted = "zenzec_minted"
	CounterBurned = "zenzec_burned"
)

// ReserveStorage defines the storage operations for reserve counters.
type ReserveStorage interface {
	// Adjust adds delta (may be negative) to the asset's counter,
	// creating the row at delta when absent. Atomic.
	Adjust(asset string, delta int64) error

	// Get returns the current amount, zero for unknown assets.
	Get(asset string) (int64, error)

	// All returns every known counter.
	All() (map[string]int64, error)
}
