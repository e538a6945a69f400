package common

import (
	"github.com/gagliardetto/solana-go"
)

// VerifiedDeposit is a finalized deposit to the bridge address,
// observed on the source chain, with the Solana recipient recovered
// from the memo. The monitors craft these; the ingestion flow consumes
// them.
type VerifiedDeposit struct {
	ChainTxID   string // txid on the source chain (no 0x prefix)
	Asset       string // "BTC" or "ZEC"
	Vout        int    // index of the output paying the bridge
	Amount      int64  // base units (satoshi / zatoshi)
	BlockHash   string
	BlockHeight int64
	Recipient   solana.PublicKey // receives the minted zenZEC
}
