package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		requestsCreatedTotal,
		requestsCancelledTotal,
		proofSubmissionsTotal,
		transitionRejectedTotal,
		windowClassificationsTotal,
		passDurationSeconds,
	)
}

var (
	requestsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "billing_requests_created_total",
			Help: "Payment requests created by the renewal orchestrator.",
		},
	)

	requestsCancelledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "billing_requests_cancelled_total",
			Help: "Payment requests cancelled after grace exhaustion.",
		},
	)

	proofSubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_proof_submissions_total",
			Help: "Proof-of-payment submissions by outcome (processing/completed/failed_upload).",
		},
		[]string{"outcome"},
	)

	transitionRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_transitions_rejected_total",
			Help: "Illegal payment request transitions, labeled by attempted target.",
		},
		[]string{"target"},
	)

	windowClassificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_window_classifications_total",
			Help: "Renewal window classifications per evaluation pass, by state.",
		},
		[]string{"state"},
	)

	passDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "billing_pass_duration_seconds",
			Help:    "Duration of full renewal evaluation passes.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		},
	)
)

func AddRequestsCreated(n int) {
	if n > 0 {
		requestsCreatedTotal.Add(float64(n))
	}
}

func AddRequestsCancelled(n int) {
	if n > 0 {
		requestsCancelledTotal.Add(float64(n))
	}
}

func IncProofSubmission(outcome string) {
	proofSubmissionsTotal.WithLabelValues(norm(outcome)).Inc()
}

func IncTransitionRejected(target string) {
	transitionRejectedTotal.WithLabelValues(norm(target)).Inc()
}

func AddWindowClassifications(future, inWindow, expired int) {
	if future > 0 {
		windowClassificationsTotal.WithLabelValues("future").Add(float64(future))
	}
	if inWindow > 0 {
		windowClassificationsTotal.WithLabelValues("in_window").Add(float64(inWindow))
	}
	if expired > 0 {
		windowClassificationsTotal.WithLabelValues("expired").Add(float64(expired))
	}
}

func ObservePassDuration(d time.Duration) {
	passDurationSeconds.Observe(d.Seconds())
}

func norm(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return "unknown"
	}
	return s
}
