package metrics

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// StakeMetrics exposes counters for the custody lifecycle. Registration is
// process-wide and lazy so any component can grab the handles.
type StakeMetrics struct {
	stakesOpened  prometheus.Counter
	stakesClosed  *prometheus.CounterVec
	feesCollected prometheus.Counter
}

var (
	stakeOnce     sync.Once
	stakeRegistry *StakeMetrics
)

// Stake returns the shared staking metrics registry.
func Stake() *StakeMetrics {
	stakeOnce.Do(func() {
		stakeRegistry = &StakeMetrics{
			stakesOpened: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "stake_opened_total",
				Help: "Count of successfully opened stakes.",
			}),
			stakesClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "stake_closed_total",
				Help: "Count of closed stakes by timing (early or mature).",
			}, []string{"timing"}),
			feesCollected: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "stake_fees_collected_total",
				Help: "Sum of early-withdrawal fees routed to the treasury.",
			}),
		}
		prometheus.MustRegister(
			stakeRegistry.stakesOpened,
			stakeRegistry.stakesClosed,
			stakeRegistry.feesCollected,
		)
	})
	return stakeRegistry
}

// ObserveStakeOpened records a successful open transition.
func (m *StakeMetrics) ObserveStakeOpened() {
	if m == nil {
		return
	}
	m.stakesOpened.Inc()
}

// ObserveStakeClosed records a successful close transition and any fee it
// collected.
func (m *StakeMetrics) ObserveStakeClosed(early bool, fee *big.Int) {
	if m == nil {
		return
	}
	timing := "mature"
	if early {
		timing = "early"
	}
	m.stakesClosed.WithLabelValues(timing).Inc()
	if fee != nil && fee.Sign() > 0 {
		value, _ := new(big.Float).SetInt(fee).Float64()
		m.feesCollected.Add(value)
	}
}
