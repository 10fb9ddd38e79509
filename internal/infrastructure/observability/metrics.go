package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RepositoryCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repository_calls_total",
			Help: "Total number of repository method calls",
		},
		[]string{"method", "status"},
	)

	RepositoryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "repository_duration_seconds",
			Help:    "Duration of repository method calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	DonationsRecorded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "donations_recorded_total",
			Help: "Donations appended to the ledger",
		},
	)

	DonatedAmount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "donations_amount_total",
			Help: "Sum of donation amounts appended to the ledger",
		},
	)

	// Donations in the ledger whose campaign aggregate update failed.
	PartialFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "donation_partial_failures_total",
			Help: "Donations recorded without updating the campaign aggregate",
		},
	)

	Reconciliations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_reconciliations_total",
			Help: "Campaign aggregate rebuilds from the ledger",
		},
		[]string{"drift"},
	)
)

var registerOnce sync.Once

// InitMetrics registers the collectors with the default registry. Safe to
// call more than once.
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RepositoryCalls, RepositoryDuration, DonationsRecorded, DonatedAmount, PartialFailures, Reconciliations)
	})
}

// ObserveRepository records one repository call.
func ObserveRepository(method string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	RepositoryCalls.WithLabelValues(method, status).Inc()
	RepositoryDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}
