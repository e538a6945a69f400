package solman

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
)

// Anchor derives instruction and event discriminators from these names.
const (
	mintInstructionName = "global:mint_zenzec"
	burnToBTCEventName  = "event:BurnToBTCEvent"
)

// Seed of the bridge config PDA.
var configSeed = []byte("config")

// SignatureStatusResult is the finalization view of a submitted payout.
type SignatureStatusResult struct {
	Found     bool // the cluster knows the signature
	Finalized bool
	Failed    bool // landed on chain but errored
	Slot      uint64
}

// BurnVerification is what a burn_for_btc transaction proves: who
// burned how much zenZEC, and where the BTC shall go.
type BurnVerification struct {
	Signature  string
	Burner     solana.PublicKey
	Amount     uint64 // zenZEC base units burned
	BtcAddress string // plain address, or the privacy envelope when Encrypted
	Encrypted  bool
	Slot       uint64
	BlockTime  int64
}

// BurnToBTCEvent mirrors the on-chain event, field order is the borsh
// wire order.
type BurnToBTCEvent struct {
	User           solana.PublicKey
	Amount         uint64
	BtcAddressHash string
	Encrypted      bool
	Timestamp      int64
}

// mintInstructionData builds the mint_zenzec instruction payload:
// 8 byte discriminator + little-endian u64 amount.
func mintInstructionData(amount uint64) []byte {
	disc := sha256.Sum256([]byte(mintInstructionName))
	data := make([]byte, 16)
	copy(data, disc[:8])
	binary.LittleEndian.PutUint64(data[8:], amount)
	return data
}

func burnEventDiscriminator() [8]byte {
	disc := sha256.Sum256([]byte(burnToBTCEventName))
	var out [8]byte
	copy(out[:], disc[:8])
	return out
}
