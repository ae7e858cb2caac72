package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the import pipeline.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	parseDuration      *prometheus.HistogramVec
	statementsImported *prometheus.CounterVec
	transactionsParsed prometheus.Counter
	duplicateLines     prometheus.Counter
	storeErrors        *prometheus.CounterVec
	observations       prometheus.Counter
}

// ImportSnapshot is a point-in-time view of the import counters, served by
// the GET /v1/metrics/import endpoint.
type ImportSnapshot struct {
	StatementsImported float64 `json:"statements_imported"`
	StatementsSkipped  float64 `json:"statements_skipped"`
	StatementsFailed   float64 `json:"statements_failed"`
	TransactionsParsed float64 `json:"transactions_parsed"`
	DuplicateLines     float64 `json:"duplicate_lines"`
	Observations       float64 `json:"observations"`
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		parseDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "financas_parse_duration_seconds",
				Help:    "Duration of statement parsing by stage.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		statementsImported: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "financas_statements_total",
				Help: "Statements processed, by outcome.",
			},
			[]string{"outcome"},
		),
		transactionsParsed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "financas_transactions_parsed_total",
				Help: "Transactions recovered from statement text.",
			},
		),
		duplicateLines: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "financas_duplicate_lines_total",
				Help: "Parsed lines marked duplicate (hash ordinal > 1).",
			},
		),
		storeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "financas_store_errors_total",
				Help: "Errors from the persistence backend.",
			},
			[]string{"operation"},
		),
		observations: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "financas_header_observations_total",
				Help: "Non-fatal observations recorded on statement headers.",
			},
		),
	}
}

// RecordParseDuration records the duration of one parsing stage.
func (m *Metrics) RecordParseDuration(stage string, d time.Duration) {
	m.parseDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// IncrStatement counts one statement by outcome label.
func (m *Metrics) IncrStatement(outcome string) {
	m.statementsImported.WithLabelValues(outcome).Inc()
}

// AddTransactionsParsed adds to the parsed-transaction counter.
func (m *Metrics) AddTransactionsParsed(n int) {
	m.transactionsParsed.Add(float64(n))
}

// AddDuplicateLines adds to the duplicate-line counter.
func (m *Metrics) AddDuplicateLines(n int) {
	m.duplicateLines.Add(float64(n))
}

// IncrStoreError increments the store error counter for an operation.
func (m *Metrics) IncrStoreError(operation string) {
	m.storeErrors.WithLabelValues(operation).Inc()
}

// AddObservations adds to the header-observation counter.
func (m *Metrics) AddObservations(n int) {
	m.observations.Add(float64(n))
}

// GetImportSnapshot gathers current counter values.
func (m *Metrics) GetImportSnapshot() *ImportSnapshot {
	return &ImportSnapshot{
		StatementsImported: getCounterValue(m.statementsImported, "imported"),
		StatementsSkipped:  getCounterValue(m.statementsImported, "skipped-duplicate-statement"),
		StatementsFailed:   getCounterValue(m.statementsImported, "failed-with-diagnostic"),
		TransactionsParsed: getPlainCounterValue(m.transactionsParsed),
		DuplicateLines:     getPlainCounterValue(m.duplicateLines),
		Observations:       getPlainCounterValue(m.observations),
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

func getPlainCounterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
