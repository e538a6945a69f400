package solman

import (
	"context"
	"crypto/rand"
	"errors"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// SimulatedPayoutClient is an in-memory PayoutClient for tests and
// local runs. Mints are recorded instead of submitted, signatures
// finalize after a set number of status polls, burns are planted by
// hand.
type SimulatedPayoutClient struct {
	mu sync.Mutex

	// Number of status polls before a submitted mint reads finalized.
	FinalizeAfter int

	// When set, MintZenZEC fails with this error instead of recording.
	SubmitErr error

	slot     uint64
	balance  uint64
	mints    []SimulatedMint
	polls    map[solana.Signature]int
	failSigs map[solana.Signature]bool
	burns    map[solana.Signature]*BurnVerification
}

type SimulatedMint struct {
	Signature solana.Signature
	Recipient solana.PublicKey
	Amount    uint64
}

func NewSimulatedPayoutClient() *SimulatedPayoutClient {
	return &SimulatedPayoutClient{
		FinalizeAfter: 1,
		slot:          1000,
		balance:       10 * solana.LAMPORTS_PER_SOL,
		polls:         make(map[solana.Signature]int),
		failSigs:      make(map[solana.Signature]bool),
		burns:         make(map[solana.Signature]*BurnVerification),
	}
}

func randomSignature() solana.Signature {
	var b [64]byte
	rand.Read(b[:])
	return solana.SignatureFromBytes(b[:])
}

func (sp *SimulatedPayoutClient) MintZenZEC(_ context.Context, recipient solana.PublicKey, amount uint64) (solana.Signature, error) {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	if sp.SubmitErr != nil {
		return solana.Signature{}, sp.SubmitErr
	}

	sig := randomSignature()
	sp.mints = append(sp.mints, SimulatedMint{Signature: sig, Recipient: recipient, Amount: amount})
	sp.polls[sig] = 0
	sp.slot++
	return sig, nil
}

func (sp *SimulatedPayoutClient) SignatureStatus(_ context.Context, sig solana.Signature) (*SignatureStatusResult, error) {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	n, ok := sp.polls[sig]
	if !ok {
		return &SignatureStatusResult{Found: false}, nil
	}
	n++
	sp.polls[sig] = n

	res := &SignatureStatusResult{Found: true, Slot: sp.slot}
	if sp.failSigs[sig] {
		res.Failed = true
		return res, nil
	}
	if n >= sp.FinalizeAfter {
		res.Finalized = true
	}
	return res, nil
}

func (sp *SimulatedPayoutClient) VerifyBurn(_ context.Context, sig solana.Signature) (*BurnVerification, error) {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	bv, ok := sp.burns[sig]
	if !ok {
		return nil, errors.New("transaction not found in simulation")
	}
	return bv, nil
}

func (sp *SimulatedPayoutClient) AuthorityBalance(_ context.Context) (uint64, error) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.balance, nil
}

func (sp *SimulatedPayoutClient) CurrentSlot(_ context.Context) (uint64, error) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.slot, nil
}

// Mints returns a copy of everything submitted so far.
func (sp *SimulatedPayoutClient) Mints() []SimulatedMint {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	out := make([]SimulatedMint, len(sp.mints))
	copy(out, sp.mints)
	return out
}

// PlantBurn registers a burn the simulation will verify.
func (sp *SimulatedPayoutClient) PlantBurn(sig solana.Signature, bv *BurnVerification) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.burns[sig] = bv
}

// FailSignature makes the given signature read as failed on chain.
func (sp *SimulatedPayoutClient) FailSignature(sig solana.Signature) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.failSigs[sig] = true
}

// AdvanceSlot moves the simulated chain forward.
func (sp *SimulatedPayoutClient) AdvanceSlot(n uint64) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.slot += n
}

// RandomSignature hands tests a plausible signature to plant burns on.
func RandomSignature() solana.Signature {
	return randomSignature()
}
