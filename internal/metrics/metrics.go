// Package metrics provides Prometheus metrics for the notes service
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts total HTTP requests by method, route, and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "epicweb",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route, and status code",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration measures HTTP request duration in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "epicweb",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	// LoginAttemptsTotal counts login attempts by result
	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "epicweb",
			Subsystem: "auth",
			Name:      "login_attempts_total",
			Help:      "Total number of login attempts by result",
		},
		[]string{"result"},
	)

	// TwoFactorChallengesTotal counts two-factor challenges issued
	TwoFactorChallengesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "epicweb",
			Subsystem: "auth",
			Name:      "two_factor_challenges_total",
			Help:      "Total number of two-factor challenges issued",
		},
	)

	// ExternalLoginOutcomesTotal counts OAuth resolution outcomes
	ExternalLoginOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "epicweb",
			Subsystem: "auth",
			Name:      "external_login_outcomes_total",
			Help:      "Total number of external login resolutions by outcome",
		},
		[]string{"provider", "outcome"},
	)
)

// Handler returns the Prometheus scrape endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and durations per chi route pattern
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}

		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(recorder.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
