package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

const namespace = "ryzan"

var (
	transfersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transfer",
			Name:      "sends_total",
			Help:      "Token transfers by currency and outcome code",
		},
		[]string{"currency", "outcome"},
	)

	transferConfirmDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "transfer",
			Name:      "confirmation_seconds",
			Help:      "Time from submission to receipt",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 34, 60, 120},
		},
		[]string{"currency"},
	)

	estimatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transfer",
			Name:      "estimates_total",
			Help:      "Fee estimates by outcome",
		},
		[]string{"outcome"},
	)

	ledgerWriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transfer",
			Name:      "ledger_write_failures_total",
			Help:      "Confirmed transfers whose ledger record could not be written",
		},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "wallet",
			Name:      "active_sessions",
			Help:      "Wallet sessions currently held in memory",
		},
	)

	rateRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rates",
			Name:      "requests_total",
			Help:      "Exchange rate lookups by source (live, cache, fallback)",
		},
		[]string{"source"},
	)

	reconciledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconciliation",
			Name:      "records_total",
			Help:      "Ledger records processed by the reconciliation job, by resulting status",
		},
		[]string{"status"},
	)
)

// Register registers Go/process collectors and every service collector.
func Register(logger *zap.Logger) {
	registerIfNotExists(collectors.NewGoCollector(), "go_collector", logger)
	registerIfNotExists(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}), "process_collector", logger)
	registerIfNotExists(httpRequestsTotal, "http_requests_total", logger)
	registerIfNotExists(httpRequestDuration, "http_request_duration", logger)
	registerIfNotExists(transfersTotal, "transfer_sends_total", logger)
	registerIfNotExists(transferConfirmDuration, "transfer_confirmation_seconds", logger)
	registerIfNotExists(estimatesTotal, "transfer_estimates_total", logger)
	registerIfNotExists(ledgerWriteFailures, "transfer_ledger_write_failures_total", logger)
	registerIfNotExists(activeSessions, "wallet_active_sessions", logger)
	registerIfNotExists(rateRequestsTotal, "rates_requests_total", logger)
	registerIfNotExists(reconciledTotal, "reconciliation_records_total", logger)
}

func registerIfNotExists(collector prometheus.Collector, name string, logger *zap.Logger) {
	if err := prometheus.Register(collector); err != nil {
		var alreadyRegErr prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyRegErr) {
			logger.Debug("collector already registered", zap.String("name", name))
			return
		}
		logger.Error("failed to register collector", zap.String("name", name), zap.Error(err))
	}
}

func RecordTransfer(currency, outcome string) {
	transfersTotal.WithLabelValues(currency, outcome).Inc()
}

func ObserveConfirmation(currency string, seconds float64) {
	transferConfirmDuration.WithLabelValues(currency).Observe(seconds)
}

func RecordEstimate(outcome string) {
	estimatesTotal.WithLabelValues(outcome).Inc()
}

func RecordLedgerWriteFailure() {
	ledgerWriteFailures.Inc()
}

func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}

func RecordRateLookup(source string) {
	rateRequestsTotal.WithLabelValues(source).Inc()
}

func RecordReconciled(status string) {
	reconciledTotal.WithLabelValues(status).Inc()
}
