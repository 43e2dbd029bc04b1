// Package metrics exposes Prometheus instrumentation for the HTTP layer and
// the valuation pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ativosaber/internal/rates"
)

const namespace = "ativosaber"

// Collector owns a private registry so tests can build as many as they need.
type Collector struct {
	registry          *prometheus.Registry
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	valuations        *prometheus.CounterVec
	indexFallbacks    *prometheus.CounterVec
	validationFailure *prometheus.CounterVec
	indexRate         *prometheus.GaugeVec
}

// NewCollector registers every metric on a fresh registry, together with the
// Go runtime and process collectors.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and method",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		valuations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "valuations_total",
			Help:      "Valuations computed by kind and outcome",
		}, []string{"kind", "outcome"}),
		indexFallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asset_index_fallback_total",
			Help:      "Valuations that used the fallback rate for an unknown index code",
		}, []string{"index_code"}),
		validationFailure: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asset_validation_failures_total",
			Help:      "Asset validation failures by field",
		}, []string{"field"}),
		indexRate: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_rate",
			Help:      "Configured annual rate per index code, as a fraction",
		}, []string{"index_code"}),
	}
}

// ObserveValuation counts one valuation.
func (c *Collector) ObserveValuation(kind, outcome string) {
	c.valuations.WithLabelValues(kind, outcome).Inc()
}

// IndexFallback counts a valuation that hit the fallback rate.
func (c *Collector) IndexFallback(code string) {
	c.indexFallbacks.WithLabelValues(code).Inc()
}

// ValidationFailed counts a rejected asset field.
func (c *Collector) ValidationFailed(field string) {
	c.validationFailure.WithLabelValues(field).Inc()
}

// SetIndexRates publishes the rate table in use.
func (c *Collector) SetIndexRates(table *rates.Table) {
	for _, code := range table.Codes() {
		rate, _ := table.Lookup(code)
		f, _ := rate.Float64()
		c.indexRate.WithLabelValues(string(code)).Set(f)
	}
}

// Middleware records request count and latency per matched route. Unmatched
// paths are grouped under one label to keep cardinality bounded.
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := ctx.Request.Method
		c.httpRequests.WithLabelValues(route, method, strconv.Itoa(ctx.Writer.Status())).Inc()
		c.httpDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
