// Package metrics provides Prometheus instrumentation for the BioChain
// backend.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// StudiesIngested counts successful study registrations.
	StudiesIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "biochain_studies_ingested_total",
		Help: "Successfully registered study documents",
	})

	// DuplicateRejections counts uploads rejected for an existing content key.
	DuplicateRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "biochain_duplicate_rejections_total",
		Help: "Uploads rejected because the content key already exists",
	})

	// ReportsGenerated counts generated reports.
	ReportsGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "biochain_reports_generated_total",
		Help: "Reports generated",
	})

	// CreditsPurchased counts credits minted through purchases.
	CreditsPurchased = promauto.NewCounter(prometheus.CounterOpts{
		Name: "biochain_credits_purchased_total",
		Help: "Credits minted through purchases",
	})

	// CreditsConsumed counts credits debited by settlement.
	CreditsConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "biochain_credits_consumed_total",
		Help: "Credits consumed by report settlement",
	})

	// PayoutUSDC accumulates contributor payouts in USDC.
	PayoutUSDC = promauto.NewCounter(prometheus.CounterOpts{
		Name: "biochain_payout_usdc_total",
		Help: "Cumulative contributor payouts in USDC",
	})

	// LedgerCallFailures counts ledger calls that failed or timed out.
	LedgerCallFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "biochain_ledger_call_failures_total",
		Help: "Ledger calls that failed or timed out",
	})

	// RateLimitRejections counts requests rejected by the rate limiter.
	RateLimitRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "biochain_rate_limit_rejections_total",
		Help: "Requests rejected by the rate limiter",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "biochain_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "biochain_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
