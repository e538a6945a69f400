package relayer

import (
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// SimulatedBTCPayer is an in-memory BTCPayer for tests. Payments are
// recorded, confirmations start at zero and move when the test says
// so.
type SimulatedBTCPayer struct {
	mu            sync.Mutex
	payments      []SimulatedPayment
	confirmations map[string]int64
	failNext      error
}

type SimulatedPayment struct {
	TxID      string
	Address   string
	AmountSat int64
}

func NewSimulatedBTCPayer() *SimulatedBTCPayer {
	return &SimulatedBTCPayer{
		confirmations: make(map[string]int64),
	}
}

func (sp *SimulatedBTCPayer) SendToAddress(dst btcutil.Address, amountSat int64) (*chainhash.Hash, error) {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	if sp.failNext != nil {
		err := sp.failNext
		sp.failNext = nil
		return nil, err
	}

	var raw [chainhash.HashSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return nil, err
	}
	hash, err := chainhash.NewHash(raw[:])
	if err != nil {
		return nil, err
	}
	sp.payments = append(sp.payments, SimulatedPayment{
		TxID:      hash.String(),
		Address:   dst.EncodeAddress(),
		AmountSat: amountSat,
	})
	sp.confirmations[hash.String()] = 0
	return hash, nil
}

func (sp *SimulatedBTCPayer) GetTxConfirmations(txID string) (int64, error) {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	conf, ok := sp.confirmations[txID]
	if !ok {
		return 0, fmt.Errorf("transaction %s not found", txID)
	}
	return conf, nil
}

// Confirm sets the confirmation depth of a payment.
func (sp *SimulatedBTCPayer) Confirm(txID string, confirmations int64) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.confirmations[txID] = confirmations
}

// FailNext makes the next SendToAddress return the given error.
func (sp *SimulatedBTCPayer) FailNext(err error) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.failNext = err
}

// Payments returns everything sent so far.
func (sp *SimulatedBTCPayer) Payments() []SimulatedPayment {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	out := make([]SimulatedPayment, len(sp.payments))
	copy(out, sp.payments)
	return out
}
