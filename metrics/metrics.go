/*
Package metrics holds the prometheus instruments of the bridge.

Construct once per process with the registry the reporter serves;
tests pass their own prometheus.NewRegistry() so parallel tests do not
fight over the default one. A nil *BridgeMetrics is legal everywhere,
the helper methods just do nothing then.
*/
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type BridgeMetrics struct {
	DepositsIngestedTotal        *prometheus.CounterVec
	PayoutsSubmittedTotal        *prometheus.CounterVec
	PayoutsFinalizedTotal        *prometheus.CounterVec
	PayoutsFailedTotal           *prometheus.CounterVec
	RedemptionsAcceptedTotal     prometheus.Counter
	CoordinationDenialsTotal     *prometheus.CounterVec
	CoordinationStoreErrorsTotal prometheus.Counter
	SweeperReclaimedTotal        prometheus.Counter
	ReserveGauge                 *prometheus.GaugeVec
}

func NewBridgeMetrics(reg prometheus.Registerer) *BridgeMetrics {
	f := promauto.With(reg)
	return &BridgeMetrics{
		DepositsIngestedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_deposits_ingested_total",
				Help: "Deposits that passed verification and were credited",
			},
			[]string{"asset"},
		),
		PayoutsSubmittedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_payouts_submitted_total",
				Help: "Payout transactions handed to a chain",
			},
			[]string{"kind"},
		),
		PayoutsFinalizedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_payouts_finalized_total",
				Help: "Payout transactions confirmed final on their chain",
			},
			[]string{"kind"},
		),
		PayoutsFailedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_payouts_failed_total",
				Help: "Payout attempts that ended in failure or timeout",
			},
			[]string{"kind"},
		),
		RedemptionsAcceptedTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "bridge_redemptions_accepted_total",
				Help: "Redemption requests accepted by the API",
			},
		),
		CoordinationDenialsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_coordination_denials_total",
				Help: "Lease claims denied, by decision reason",
			},
			[]string{"reason"},
		),
		CoordinationStoreErrorsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "bridge_coordination_store_errors_total",
				Help: "Coordination store round-trips that errored (fail-closed denials)",
			},
		),
		SweeperReclaimedTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "bridge_sweeper_reclaimed_total",
				Help: "Coordination records removed by the sweeper",
			},
		),
		ReserveGauge: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bridge_reserve",
				Help: "Current reserve per asset, in base units",
			},
			[]string{"asset"},
		),
	}
}

func (m *BridgeMetrics) DepositIngested(asset string) {
	if m == nil {
		return
	}
	m.DepositsIngestedTotal.WithLabelValues(asset).Inc()
}

func (m *BridgeMetrics) PayoutSubmitted(kind string) {
	if m == nil {
		return
	}
	m.PayoutsSubmittedTotal.WithLabelValues(kind).Inc()
}

func (m *BridgeMetrics) PayoutFinalized(kind string) {
	if m == nil {
		return
	}
	m.PayoutsFinalizedTotal.WithLabelValues(kind).Inc()
}

func (m *BridgeMetrics) PayoutFailed(kind string) {
	if m == nil {
		return
	}
	m.PayoutsFailedTotal.WithLabelValues(kind).Inc()
}

func (m *BridgeMetrics) RedemptionAccepted() {
	if m == nil {
		return
	}
	m.RedemptionsAcceptedTotal.Inc()
}

func (m *BridgeMetrics) CoordinationDenied(reason string) {
	if m == nil {
		return
	}
	m.CoordinationDenialsTotal.WithLabelValues(reason).Inc()
}

func (m *BridgeMetrics) StoreError() {
	if m == nil {
		return
	}
	m.CoordinationStoreErrorsTotal.Inc()
}

func (m *BridgeMetrics) SweeperReclaimed(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.SweeperReclaimedTotal.Add(float64(n))
}

func (m *BridgeMetrics) SetReserve(asset string, amount int64) {
	if m == nil {
		return
	}
	m.ReserveGauge.WithLabelValues(asset).Set(float64(amount))
}
