package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

// Outcome labels
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

var (
	// Quote requests by provider and outcome
	quoteRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wallet_swap",
			Subsystem: "quote",
			Name:      "requests_total",
			Help:      "Total number of aggregator quote requests",
		},
		[]string{"provider", "outcome"},
	)

	quoteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wallet_swap",
			Subsystem: "quote",
			Name:      "duration_seconds",
			Help:      "Aggregator quote latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	// Swap transactions by chain and status
	swapTransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wallet_swap",
			Subsystem: "swap",
			Name:      "transactions_total",
			Help:      "Total number of submitted swap transactions",
		},
		[]string{"chain", "outcome"},
	)

	// Fee sub-estimates that fell back to a default
	feeFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wallet_swap",
			Subsystem: "fees",
			Name:      "fallbacks_total",
			Help:      "Total number of fee estimates replaced by a default value",
		},
		[]string{"chain", "fee"},
	)

	// Quote results dropped because the input changed while they were in flight
	staleQuotesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wallet_swap",
			Subsystem: "watch",
			Name:      "stale_quotes_total",
			Help:      "Total number of quote results discarded as stale",
		},
	)
)

// RegisterMetrics registers process and swap metrics on the default registry
func RegisterMetrics(logger logrus.FieldLogger) {
	registerIfNotExists(collectors.NewGoCollector(), "go_collector", logger)
	registerIfNotExists(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}), "process_collector", logger)

	registerIfNotExists(quoteRequestsTotal, "quote_requests_total", logger)
	registerIfNotExists(quoteDuration, "quote_duration", logger)
	registerIfNotExists(swapTransactionsTotal, "swap_transactions_total", logger)
	registerIfNotExists(feeFallbacksTotal, "fee_fallbacks_total", logger)
	registerIfNotExists(staleQuotesTotal, "stale_quotes_total", logger)
}

func registerIfNotExists(collector prometheus.Collector, name string, logger logrus.FieldLogger) {
	if err := prometheus.Register(collector); err != nil {
		var alreadyRegErr prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyRegErr) {
			logger.Debugf("%s already registered", name)
		} else {
			logger.Errorf("Failed to register %s: %v", name, err)
		}
	}
}

// ObserveQuote records one quote request
func ObserveQuote(provider, outcome string, started time.Time) {
	quoteRequestsTotal.WithLabelValues(provider, outcome).Inc()
	quoteDuration.WithLabelValues(provider).Observe(time.Since(started).Seconds())
}

// IncSwapTransaction records one submitted swap
func IncSwapTransaction(chain, outcome string) {
	swapTransactionsTotal.WithLabelValues(chain, outcome).Inc()
}

// IncFeeFallback records a fee estimate that used its default
func IncFeeFallback(chain, fee string) {
	feeFallbacksTotal.WithLabelValues(chain, fee).Inc()
}

// IncStaleQuote records a discarded quote result
func IncStaleQuote() {
	staleQuotesTotal.Inc()
}
