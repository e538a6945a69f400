/*
Package coorddb stores the coordination records bridge services use to
decide who processes which transaction.

One row per transaction id. The row is created by the service that wins
the claim, mutated only by that service, and removed by an explicit
release or by the sweeper (which deletes, never mutates). Timestamps
are unix milliseconds.
*/
package coorddb

import "time"

// Status of a coordination record. This is the lease lifecycle, not
// the business status of the transaction itself.
const (
	CoordStatusProcessing = "processing"
	CoordStatusCompleted  = "completed"
	CoordStatusFailed     = "failed"
)

// CoordinationRecord is one row of the coordination_records table.
type CoordinationRecord struct {
	TransactionID     string
	TransactionType   string // e.g. "btc_deposit", "zec_deposit", "redemption"
	ProcessingService string // lease holder
	Status            string
	StartedAt         int64 // unix ms
	CompletedAt       int64 // unix ms, zero while processing
}

// LeaseOutcome is what AcquireLease found out.
type LeaseOutcome struct {
	Acquired   bool                // the caller now holds the lease
	Recovered  bool                // acquired by replacing a cooled-down failed record
	Existing   *CoordinationRecord // prior record, set whenever one was found
	RetryAfter time.Duration       // >0 when a failed record has not cooled down yet
}
