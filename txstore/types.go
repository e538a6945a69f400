/*
Package txstore keeps the business record of every bridging operation
the backend has seen, together with its immutable status history.

The stored status only ever moves along the txstatus table. Every
writer goes through UpdateStatus, which validates the move and appends
the history line in the same database transaction, so the record and
its audit trail cannot drift apart.
*/
package txstore

// Transaction kinds the bridge tracks.
const (
	TypeBTCDeposit = "btc_deposit"
	TypeZECDeposit = "zec_deposit"
	TypeRedemption = "redemption"
)

// BridgeTransaction is one bridging operation.
//
// For deposits TxID is the chain transaction id and Recipient the
// Solana account that gets the minted zenZEC. For redemptions TxID is
// the Solana burn signature and Recipient the BTC payout address.
type BridgeTransaction struct {
	TxID            string
	TxType          string
	Status          string // one of the five txstatus values
	Asset           string // reserve asset the amount is counted in
	Amount          int64  // base units (satoshis / zatoshis)
	SourceAddress   string
	Recipient       string
	PayoutSignature string // mint signature / payout btc txid, once submitted
	CreatedAt       int64  // unix ms
	UpdatedAt       int64  // unix ms
}

// StatusHistoryEntry is one audit line. Appended on creation and on
// every accepted transition, never mutated or deleted.
type StatusHistoryEntry struct {
	ID             int64
	TxID           string
	TxType         string
	Status         string
	PreviousStatus string // empty on the creation line
	Notes          string
	CreatedAt      int64 // unix ms
}
