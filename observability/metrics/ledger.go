package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type LedgerMetrics struct {
	opsApplied  *prometheus.CounterVec
	opsRejected *prometheus.CounterVec
	rollbacks   *prometheus.CounterVec
	minted      *prometheus.CounterVec
	burned      *prometheus.CounterVec
	feesCharged *prometheus.CounterVec
	liveTokens  prometheus.Gauge
}

var (
	ledgerOnce     sync.Once
	ledgerRegistry *LedgerMetrics
)

func Ledger() *LedgerMetrics {
	ledgerOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			opsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "ledger_operations_applied_total",
				Help: "Count of successfully committed ledger operations by kind.",
			}, []string{"op"}),
			opsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "ledger_operations_rejected_total",
				Help: "Count of ledger operations rejected before any state change.",
			}, []string{"op"}),
			rollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "ledger_rollbacks_total",
				Help: "Count of mid-operation failures that triggered a full state restore.",
			}, []string{"op"}),
			minted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "ledger_quantity_minted_total",
				Help: "Total asset quantity minted per asset type.",
			}, []string{"asset"}),
			burned: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "ledger_quantity_burned_total",
				Help: "Total asset quantity burned per asset type.",
			}, []string{"asset"}),
			feesCharged: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "ledger_fees_charged_total",
				Help: "Count of applied fee legs by flow and source.",
			}, []string{"flow", "source"}),
			liveTokens: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "ledger_live_tokens",
				Help: "Number of live token records across all accounts.",
			}),
		}
		prometheus.MustRegister(
			ledgerRegistry.opsApplied,
			ledgerRegistry.opsRejected,
			ledgerRegistry.rollbacks,
			ledgerRegistry.minted,
			ledgerRegistry.burned,
			ledgerRegistry.feesCharged,
			ledgerRegistry.liveTokens,
		)
	})
	return ledgerRegistry
}

func (m *LedgerMetrics) OpApplied(op string) {
	if m == nil {
		return
	}
	m.opsApplied.WithLabelValues(op).Inc()
}

func (m *LedgerMetrics) OpRejected(op string) {
	if m == nil {
		return
	}
	m.opsRejected.WithLabelValues(op).Inc()
}

func (m *LedgerMetrics) Rollback(op string) {
	if m == nil {
		return
	}
	m.rollbacks.WithLabelValues(op).Inc()
}

func (m *LedgerMetrics) Minted(asset string, qty float64) {
	if m == nil {
		return
	}
	m.minted.WithLabelValues(asset).Add(qty)
}

func (m *LedgerMetrics) Burned(asset string, qty float64) {
	if m == nil {
		return
	}
	m.burned.WithLabelValues(asset).Add(qty)
}

func (m *LedgerMetrics) FeeCharged(flow, source string) {
	if m == nil {
		return
	}
	m.feesCharged.WithLabelValues(flow, source).Inc()
}

func (m *LedgerMetrics) SetLiveTokens(n float64) {
	if m == nil {
		return
	}
	m.liveTokens.Set(n)
}
