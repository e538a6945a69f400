/*
Package eventledger remembers which external chain events the bridge
has already ingested.

A chain can hand us the same event many times: rescans after restarts,
two monitor replicas, a user re-submitting a burn signature. The ledger
is checked before any side-effecting work and written right before the
side effects land. It is append-only, nothing deletes from it in
normal operation, so a signature once recorded answers true forever.
*/
package eventledger

import "fmt"

type ProcessedEvent struct {
	EventSignature string // unique, see the builders below
	EventType      string // "btc_deposit", "zec_deposit", "redemption"
	WalletAddress  string // the address the event concerns
	Amount         int64  // base units of the asset
	ProcessedAt    int64  // unix ms
}

// DepositSignature builds the ledger key of a chain deposit output.
func DepositSignature(txType, chainTxID string, vout int) string {
	return fmt.Sprintf("%s:%s:%d", txType, chainTxID, vout)
}

// RedemptionSignature builds the ledger key of a Solana burn.
func RedemptionSignature(burnSignature string) string {
	return "redemption:" + burnSignature
}

type EventLedger interface {
	// MarkEventProcessed records the event. Marking the same signature
	// again does nothing and is not an error.
	MarkEventProcessed(ev *ProcessedEvent) error
	IsEventProcessed(signature string) (bool, error)
	GetEvent(signature string) (*ProcessedEvent, bool, error)
}
