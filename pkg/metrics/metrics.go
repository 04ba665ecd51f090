package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// POSMetrics records the till-side counters: sales, fiscal device
// traffic, and shift closures.
type POSMetrics struct {
	saleTotal      *prometheus.CounterVec
	saleDuration   *prometheus.HistogramVec
	fiscalCommands *prometheus.CounterVec
	fiscalDuration *prometheus.HistogramVec
	shiftClosures  *prometheus.CounterVec
}

// NewPOSMetrics registers the POS metrics on the provided registerer.
func NewPOSMetrics(reg prometheus.Registerer) *POSMetrics {
	if reg == nil {
		return &POSMetrics{}
	}
	saleTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_sales_total",
		Help: "Completed and failed POS sales.",
	}, []string{"location", "result"})
	saleDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pos_sale_duration_seconds",
		Help:    "End-to-end duration of a POS sale including fiscalization.",
		Buckets: prometheus.DefBuckets,
	}, []string{"location"})
	fiscalCommands := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_fiscal_commands_total",
		Help: "Commands sent to the fiscal printer by result.",
	}, []string{"command", "result"})
	fiscalDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pos_fiscal_command_duration_seconds",
		Help:    "Duration of fiscal printer commands in seconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
	}, []string{"command"})
	shiftClosures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_shift_closures_total",
		Help: "Shift closures by discrepancy outcome.",
	}, []string{"location", "balanced"})
	reg.MustRegister(saleTotal, saleDuration, fiscalCommands, fiscalDuration, shiftClosures)
	return &POSMetrics{
		saleTotal:      saleTotal,
		saleDuration:   saleDuration,
		fiscalCommands: fiscalCommands,
		fiscalDuration: fiscalDuration,
		shiftClosures:  shiftClosures,
	}
}

// IncSale increments the sale counter for a location and result.
func (m *POSMetrics) IncSale(location, result string) {
	if m == nil || m.saleTotal == nil {
		return
	}
	m.saleTotal.WithLabelValues(normalizeLabel(location), normalizeLabel(result)).Inc()
}

// ObserveSaleDuration records how long a sale took.
func (m *POSMetrics) ObserveSaleDuration(location string, duration time.Duration) {
	if m == nil || m.saleDuration == nil {
		return
	}
	m.saleDuration.WithLabelValues(normalizeLabel(location)).Observe(duration.Seconds())
}

// IncFiscalCommand increments the fiscal command counter.
func (m *POSMetrics) IncFiscalCommand(command, result string) {
	if m == nil || m.fiscalCommands == nil {
		return
	}
	m.fiscalCommands.WithLabelValues(normalizeLabel(command), normalizeLabel(result)).Inc()
}

// ObserveFiscalDuration records the duration of a fiscal command.
func (m *POSMetrics) ObserveFiscalDuration(command string, duration time.Duration) {
	if m == nil || m.fiscalDuration == nil {
		return
	}
	m.fiscalDuration.WithLabelValues(normalizeLabel(command)).Observe(duration.Seconds())
}

// IncShiftClosure increments the shift closure counter. balanced is "true"
// when every difference came out zero.
func (m *POSMetrics) IncShiftClosure(location string, balanced bool) {
	if m == nil || m.shiftClosures == nil {
		return
	}
	label := "false"
	if balanced {
		label = "true"
	}
	m.shiftClosures.WithLabelValues(normalizeLabel(location), label).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
