package metrics

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors. A nil *Metrics is a valid no-op.
type Metrics struct {
	registry         *prometheus.Registry
	apiResponseTime  *prometheus.HistogramVec
	apiErrorCounter  *prometheus.CounterVec
	upstreamTime     *prometheus.HistogramVec
	upstreamErrors   *prometheus.CounterVec
	llmFallbacks     prometheus.Counter
	retrievalCache   *prometheus.CounterVec
	rateLimitRejects prometheus.Counter
}

func New(namespace string) *Metrics {
	ns := FmtFixer(namespace)
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		apiResponseTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "api_response_seconds",
			Help:      "API response time by route",
		}, []string{"method", "route"}),
		apiErrorCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "api_errors_total",
			Help:      "API responses with status >= 400",
		}, []string{"method", "route", "status"}),
		upstreamTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "upstream_request_seconds",
			Help:      "Latency of collaborator calls",
		}, []string{"collaborator"}),
		upstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "upstream_errors_total",
			Help:      "Failed collaborator calls",
		}, []string{"collaborator"}),
		llmFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "llm_fallback_total",
			Help:      "Model replies that failed schema validation and were used as raw text",
		}),
		retrievalCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "retrieval_cache_total",
			Help:      "Retrieval cache lookups by result",
		}, []string{"result"}),
		rateLimitRejects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "rate_limit_rejections_total",
			Help:      "Requests rejected by the rate limiter",
		}),
	}

	registry.MustRegister(
		m.apiResponseTime,
		m.apiErrorCounter,
		m.upstreamTime,
		m.upstreamErrors,
		m.llmFallbacks,
		m.retrievalCache,
		m.rateLimitRejects,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ApiResponseTimer(method, route string) *prometheus.Timer {
	if m == nil {
		return prometheus.NewTimer(prometheus.ObserverFunc(func(float64) {}))
	}
	return prometheus.NewTimer(m.apiResponseTime.WithLabelValues(method, route))
}

func (m *Metrics) ApiErrorInc(method, route string, status int) {
	if m == nil {
		return
	}
	m.apiErrorCounter.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

func (m *Metrics) UpstreamTimer(collaborator string) *prometheus.Timer {
	if m == nil {
		return prometheus.NewTimer(prometheus.ObserverFunc(func(float64) {}))
	}
	return prometheus.NewTimer(m.upstreamTime.WithLabelValues(collaborator))
}

func (m *Metrics) UpstreamErrorInc(collaborator string) {
	if m == nil {
		return
	}
	m.upstreamErrors.WithLabelValues(collaborator).Inc()
}

func (m *Metrics) LLMFallbackInc() {
	if m == nil {
		return
	}
	m.llmFallbacks.Inc()
}

func (m *Metrics) RetrievalCacheInc(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.retrievalCache.WithLabelValues(result).Inc()
}

func (m *Metrics) RateLimitRejectInc() {
	if m == nil {
		return
	}
	m.rateLimitRejects.Inc()
}

// ExportHandler serves the registry in the prometheus text format.
func (m *Metrics) ExportHandler() gin.HandlerFunc {
	h := promhttp.InstrumentMetricHandler(m.registry, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

func FmtFixer(in string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(in)
}
