package reserve

import (
	logger "github.com/sirupsen/logrus"

	"github.com/zenz-bridge/bridge-go/metrics"
)

// Ledger is the reserve manager handed to the flows. It uses any
// backend that implements ReserveStorage and keeps the prometheus
// reserve gauge in step with what it writes.
type Ledger struct {
	backend ReserveStorage
	mtr     *metrics.BridgeMetrics
}

func NewLedger(backend ReserveStorage, mtr *metrics.BridgeMetrics) *Ledger {
	return &Ledger{backend: backend, mtr: mtr}
}

// GetCurrentReserve reads the counter fresh from the store every time.
// Nothing caches reserve values, a stale number is worse than a slow
// one here.
func (l *Ledger) GetCurrentReserve(asset string) (int64, error) {
	return l.backend.Get(asset)
}

// AddToReserve moves the counter by delta, negative for withdrawals.
func (l *Ledger) AddToReserve(asset string, delta int64) error {
	if err := l.backend.Adjust(asset, delta); err != nil {
		return err
	}
	logger.WithFields(logger.Fields{
		"asset": asset,
		"delta": delta,
	}).Debug("reserve adjusted")

	// the gauge trails the store on purpose, the store is the authority
	if amount, err := l.backend.Get(asset); err == nil {
		l.mtr.SetReserve(asset, amount)
	}
	return nil
}

// Snapshot returns all counters, for the reserves endpoint.
func (l *Ledger) Snapshot() (map[string]int64, error) {
	return l.backend.All()
}
