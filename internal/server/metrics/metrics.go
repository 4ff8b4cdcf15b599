// Package metrics defines the Prometheus collectors exported by the server.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/passvault/internal/common"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	gatherer prometheus.Gatherer

	Logins          *prometheus.CounterVec
	CredentialOps   *prometheus.CounterVec
	Exports         prometheus.Counter
	RequestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		Logins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "passvault_logins_total",
				Help: "Login attempts by result",
			},
			[]string{"result"},
		),
		CredentialOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "passvault_credential_ops_total",
				Help: "Credential operations by kind and result",
			},
			[]string{"op", "result"},
		),
		Exports: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "passvault_exports_total",
				Help: "Completed plaintext exports",
			},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "passvault_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}

	reg.MustRegister(m.Logins, m.CredentialOps, m.Exports, m.RequestDuration)
	return m
}

// Result classifies err into a low-cardinality label value.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, common.ErrValidation):
		return "invalid"
	case errors.Is(err, common.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, common.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func (m *Metrics) ObserveLogin(err error) {
	m.Logins.WithLabelValues(Result(err)).Inc()
}

func (m *Metrics) ObserveCredentialOp(op string, err error) {
	m.CredentialOps.WithLabelValues(op, Result(err)).Inc()
}

func (m *Metrics) ObserveExport() {
	m.Exports.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware records request latency labelled by the matched route pattern,
// so ids in paths do not blow up cardinality.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
