// Package metrics exposes prometheus instruments for the metering engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

type Metrics struct {
	UsageEventsRecorded     prometheus.Counter
	UsageEventsDeduplicated prometheus.Counter
	UsageEventsDropped      *prometheus.CounterVec
	SettlementsCreated      prometheus.Counter
	SettlementRunSkipped    *prometheus.CounterVec
	OraclePriceFetches      *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		UsageEventsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voiceledger_usage_events_recorded_total",
			Help: "Usage events appended to the ledger.",
		}),
		UsageEventsDeduplicated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voiceledger_usage_events_deduplicated_total",
			Help: "Usage events absorbed by the idempotency key.",
		}),
		UsageEventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voiceledger_usage_events_dropped_total",
			Help: "Usage events not recorded, by reason.",
		}, []string{"reason"}),
		SettlementsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voiceledger_settlements_created_total",
			Help: "Settlement batches created.",
		}),
		SettlementRunSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voiceledger_settlement_runs_skipped_total",
			Help: "Settlement runs that produced no batch, by reason.",
		}, []string{"reason"}),
		OraclePriceFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voiceledger_oracle_price_fetches_total",
			Help: "Price oracle fetch outcomes.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.UsageEventsRecorded,
		m.UsageEventsDeduplicated,
		m.UsageEventsDropped,
		m.SettlementsCreated,
		m.SettlementRunSkipped,
		m.OraclePriceFetches,
	)
	return m
}

func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

func provideRegisterer(reg *prometheus.Registry) prometheus.Registerer { return reg }

var Module = fx.Module("metrics",
	fx.Provide(
		NewRegistry,
		provideRegisterer,
		New,
	),
)
