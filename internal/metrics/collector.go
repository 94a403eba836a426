package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/veridist/compliance-engine/internal/domain"
)

// Collector exposes Prometheus metrics for the validation and override
// paths.
type Collector struct {
	validationsTotal   *prometheus.CounterVec
	violationsTotal    *prometheus.CounterVec
	overridesTotal     *prometheus.CounterVec
	validationDuration prometheus.Histogram
}

// NewCollector registers and returns the metrics collector.
func NewCollector() *Collector {
	return &Collector{
		validationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_validations_total",
			Help: "Total transaction validations by outcome status",
		}, []string{"status"}),
		violationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_violations_total",
			Help: "Total violations raised by code and severity",
		}, []string{"code", "severity"}),
		overridesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_override_decisions_total",
			Help: "Total override decisions by resulting status",
		}, []string{"status"}),
		validationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "compliance_validation_duration_seconds",
			Help:    "Duration of transaction validation runs",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// ObserveValidation implements validation.Observer.
func (c *Collector) ObserveValidation(status domain.ValidationStatus, violations []domain.Violation, duration time.Duration) {
	c.validationsTotal.WithLabelValues(string(status)).Inc()
	for i := range violations {
		c.violationsTotal.WithLabelValues(string(violations[i].Code), string(violations[i].Severity)).Inc()
	}
	c.validationDuration.Observe(duration.Seconds())
}

// ObserveOverride implements override.Observer.
func (c *Collector) ObserveOverride(status domain.OverrideStatus) {
	c.overridesTotal.WithLabelValues(string(status)).Inc()
}
