// Package metrics collects and exposes Prometheus metrics of the auth server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector is the Prometheus implementation of session, auth and HTTP recorders.
type Collector struct {
	sessionsIssued  prometheus.Counter
	sessionsRotated prometheus.Counter
	sessionsEnded   prometheus.Counter
	tokenVerify     *prometheus.CounterVec
	revokes         *prometheus.CounterVec
	revokeQueue     prometheus.Gauge
	authAttempts    *prometheus.CounterVec
	nodesSwept      prometheus.Counter
	httpRequests    *prometheus.CounterVec
	httpLatency     *prometheus.HistogramVec
}

// NewCollector creates a Collector and registers its metrics in reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sessionsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gophauth_sessions_issued_total",
			Help: "Number of session chains started",
		}),
		sessionsRotated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gophauth_sessions_rotated_total",
			Help: "Number of refresh rotations",
		}),
		sessionsEnded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gophauth_sessions_ended_total",
			Help: "Number of session roots revoked by sign-out",
		}),
		tokenVerify: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gophauth_token_verify_total",
			Help: "Token verifications by kind and outcome",
		}, []string{"kind", "outcome"}),
		revokes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gophauth_link_revokes_total",
			Help: "Background revokes of superseded links by outcome",
		}, []string{"outcome"}),
		revokeQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gophauth_revoke_queue_depth",
			Help: "Accepted link revokes not yet processed",
		}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gophauth_auth_attempts_total",
			Help: "Signup and signin attempts by result",
		}, []string{"op", "result"}),
		nodesSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gophauth_chain_nodes_swept_total",
			Help: "Expired chain nodes deleted by the sweeper",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gophauth_http_requests_total",
			Help: "HTTP requests by method, route and status code",
		}, []string{"method", "route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gophauth_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		c.sessionsIssued,
		c.sessionsRotated,
		c.sessionsEnded,
		c.tokenVerify,
		c.revokes,
		c.revokeQueue,
		c.authAttempts,
		c.nodesSwept,
		c.httpRequests,
		c.httpLatency,
	)

	return c
}

// SessionIssued records a new session chain.
func (c *Collector) SessionIssued() {
	c.sessionsIssued.Inc()
}

// SessionRotated records a refresh rotation.
func (c *Collector) SessionRotated() {
	c.sessionsRotated.Inc()
}

// SessionEnded records a sign-out.
func (c *Collector) SessionEnded() {
	c.sessionsEnded.Inc()
}

// TokenVerified records a verify outcome.
func (c *Collector) TokenVerified(kind, outcome string) {
	c.tokenVerify.WithLabelValues(kind, outcome).Inc()
}

// RevokeFinished records a background revoke outcome.
func (c *Collector) RevokeFinished(outcome string) {
	c.revokes.WithLabelValues(outcome).Inc()
}

// SetRevokeQueueDepth sets the revoke queue gauge.
func (c *Collector) SetRevokeQueueDepth(n int) {
	c.revokeQueue.Set(float64(n))
}

// AuthAttempt records a signup or signin result.
func (c *Collector) AuthAttempt(op, result string) {
	c.authAttempts.WithLabelValues(op, result).Inc()
}

// NodesSwept records chain nodes deleted by the sweeper.
func (c *Collector) NodesSwept(count int) {
	c.nodesSwept.Add(float64(count))
}

// RecordHTTPRequest records a served request.
func (c *Collector) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler returns the HTTP handler for Prometheus scraping.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
