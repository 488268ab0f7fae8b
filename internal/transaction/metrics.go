// internal/transaction/metrics.go
package transaction

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics счётчики отправки и подтверждения. Nil *Metrics допустим и ничего не пишет.
type Metrics struct {
	submitsTotal      *prometheus.CounterVec
	rebroadcastsTotal prometheus.Counter
	outcomesTotal     *prometheus.CounterVec
	confirmDuration   *prometheus.HistogramVec
	channelErrors     prometheus.Counter
	batchesTotal      *prometheus.CounterVec
}

// NewMetrics регистрирует коллекторы в registry. nil означает prometheus.DefaultRegisterer.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		submitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "candy_mint_tx_submits_total",
				Help: "Initial transaction submissions by status",
			},
			[]string{"status"},
		),
		rebroadcastsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "candy_mint_tx_rebroadcasts_total",
			Help: "Total number of transaction rebroadcasts",
		}),
		outcomesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "candy_mint_tx_outcomes_total",
				Help: "Terminal confirmation outcomes by kind and source",
			},
			[]string{"kind", "source"},
		),
		confirmDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "candy_mint_tx_confirm_duration_seconds",
				Help:    "Time from tracking start to terminal outcome",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 90},
			},
			[]string{"kind"},
		),
		channelErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "candy_mint_push_channel_errors_total",
			Help: "Push subscription setup or receive failures",
		}),
		batchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "candy_mint_batches_total",
				Help: "Completed batches by classification",
			},
			[]string{"classification"},
		),
	}
}

func (m *Metrics) recordSubmit(ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.submitsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) recordRebroadcast() {
	if m == nil {
		return
	}
	m.rebroadcastsTotal.Inc()
}

func (m *Metrics) recordOutcome(o Outcome, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.outcomesTotal.WithLabelValues(string(o.Kind), string(o.Source)).Inc()
	m.confirmDuration.WithLabelValues(string(o.Kind)).Observe(elapsed.Seconds())
}

func (m *Metrics) recordChannelError() {
	if m == nil {
		return
	}
	m.channelErrors.Inc()
}

func (m *Metrics) recordBatch(c Classification) {
	if m == nil {
		return
	}
	m.batchesTotal.WithLabelValues(string(c)).Inc()
}
