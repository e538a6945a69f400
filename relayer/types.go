package relayer

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Payout kinds the relayer submits and watches.
const (
	KindMint       = "mint"       // zenZEC mint on Solana, pays out a deposit
	KindRedemption = "redemption" // BTC transfer from the node wallet, pays out a burn
)

// Status of a payout transaction on its chain.
type PayoutStatus string

const (
	Limbo   PayoutStatus = "limbo"   // sent, not seen anywhere yet
	Pending PayoutStatus = "pending" // seen, not final yet
	Success PayoutStatus = "success" // final on its chain
	Failed  PayoutStatus = "failed"  // landed and reverted, or rejected
	Timeout PayoutStatus = "timeout" // unseen for too long, presumed dropped
)

// MonitoredPayout is one payout transaction the relayer has submitted
// and still owes an answer about.
//
// PayoutSignature is the chain identity (Solana signature / BTC txid)
// and the primary key; RefTxID points back at the bridge transaction
// the payout settles. Slots are -1 while unknown (BTC payouts never
// learn them).
type MonitoredPayout struct {
	PayoutSignature string
	RefTxID         string
	Kind            string // KindMint or KindRedemption
	Amount          int64  // base units paid out
	SubmittedAtSlot int64
	FoundAtSlot     int64
	SubmittedAt     int64 // unix ms
	Status          PayoutStatus
}

// PayoutDB stores monitored payouts, regardless of the underlying
// implementation.
type PayoutDB interface {
	// Insert a payout to be monitored. Duplicate signature is an error.
	InsertMonitoredPayout(p *MonitoredPayout) error

	// Get one payout by its chain signature, nil if not found.
	GetBySignature(signature string) (*MonitoredPayout, error)

	// Get payouts referencing a bridge transaction, oldest first.
	GetByRef(refTxID string) ([]*MonitoredPayout, error)

	// Get payouts in any of the given statuses, oldest first.
	GetByStatus(statuses ...PayoutStatus) ([]*MonitoredPayout, error)

	// UpdateStatus moves a payout to the given status.
	UpdateStatus(signature string, status PayoutStatus) error

	// UpdateFound records the slot a payout was first seen at.
	UpdateFound(signature string, slot int64) error

	// Delete a payout by signature.
	Delete(signature string) error
}

// BTCPayer is the bitcoin surface redemption payouts need. The rpc
// package's RpcClient implements it against a node wallet,
// SimulatedBTCPayer in memory.
type BTCPayer interface {
	SendToAddress(dst btcutil.Address, amountSat int64) (*chainhash.Hash, error)
	GetTxConfirmations(txID string) (int64, error)
}
