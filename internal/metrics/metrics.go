// Package metrics exposes Prometheus collectors for the watch service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	watchSweepsTotal           *prometheus.CounterVec
	watchSweepDurationSeconds  prometheus.Histogram
	watchSitesTotal            *prometheus.CounterVec
	watchFetchDurationSeconds  *prometheus.HistogramVec
	watchHeadlessPromotions    prometheus.Counter
	watchDocumentsFoundTotal   *prometheus.CounterVec
	watchNotificationsTotal    *prometheus.CounterVec
	watchRateLimitDelaySeconds *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		watchSweepsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "watch_sweeps_total",
				Help: "Total number of sweeps run, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		watchSweepDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "watch_sweep_duration_seconds",
				Help:    "Histogram of full sweep durations.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		)

		watchSitesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "watch_sites_total",
				Help: "Total number of site visits, labeled by site and result.",
			},
			[]string{"site", "result"},
		)

		watchFetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "watch_fetch_duration_seconds",
				Help:    "Histogram of page fetch latencies, labeled by mode.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"mode"},
		)

		watchHeadlessPromotions = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "watch_headless_promotions_total",
				Help: "Total fetches promoted to the headless browser.",
			},
		)

		watchDocumentsFoundTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "watch_documents_found_total",
				Help: "Total new documents discovered, labeled by site.",
			},
			[]string{"site"},
		)

		watchNotificationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "watch_notifications_total",
				Help: "Total notifications sent, labeled by kind and status.",
			},
			[]string{"kind", "status"},
		)

		watchRateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "watch_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations, labeled by host.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"host"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveSweep records one completed sweep.
func ObserveSweep(outcome string, duration time.Duration) {
	watchSweepsTotal.WithLabelValues(outcome).Inc()
	watchSweepDurationSeconds.Observe(duration.Seconds())
}

// ObserveSiteVisit records the result of reconciling one tracked site.
func ObserveSiteVisit(site, result string) {
	watchSitesTotal.WithLabelValues(SanitizeSite(site), result).Inc()
}

// ObserveFetch records a page fetch latency. Mode is "http" or "headless".
func ObserveFetch(mode string, duration time.Duration) {
	watchFetchDurationSeconds.WithLabelValues(mode).Observe(duration.Seconds())
}

// ObserveHeadlessPromotion counts a probe fetch promoted to the browser.
func ObserveHeadlessPromotion() {
	watchHeadlessPromotions.Inc()
}

// ObserveDocumentsFound counts new documents discovered on a site.
func ObserveDocumentsFound(site string, count int) {
	if count <= 0 {
		return
	}
	watchDocumentsFoundTotal.WithLabelValues(SanitizeSite(site)).Add(float64(count))
}

// ObserveNotification counts one notification attempt.
func ObserveNotification(kind, status string) {
	watchNotificationsTotal.WithLabelValues(kind, status).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	watchRateLimitDelaySeconds.WithLabelValues(host).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
