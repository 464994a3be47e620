package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"

	"github.com/selimozcann/statuspeek/internal/model"
)

// Outcome label values of resolutions_total.
const (
	OutcomeSafe   = "safe"
	OutcomeUnsafe = "unsafe"
	OutcomeError  = "error"
)

// Collector records resolution outcomes. It satisfies trace.Observer.
type Collector struct {
	resolutionsTotal   *prometheus.CounterVec
	hopsTotal          prometheus.Counter
	resolutionDuration prometheus.Histogram
	errorsTotal        *prometheus.CounterVec
	findingsTotal      *prometheus.CounterVec

	logger      *zap.Logger
	httpHandler func(*fasthttp.RequestCtx)
}

// New creates a Collector registered on a fresh private registry.
func New(namespace string, logger *zap.Logger) *Collector {
	return NewWithRegistry(namespace, prometheus.NewRegistry(), logger)
}

// NewWithRegistry creates a Collector registered on registerer. When the
// registerer is not also a Gatherer the default gatherer is exposed.
func NewWithRegistry(namespace string, registerer prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{logger: logger}

	c.resolutionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "resolutions_total",
		Help:      "Total number of resolved inputs by outcome",
	}, []string{"outcome"}) // outcome: safe, unsafe, error

	c.hopsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "hops_total",
		Help:      "Total number of redirect hops followed",
	})

	c.resolutionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "resolution_duration_seconds",
		Help:      "Wall-clock time spent resolving one input",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 13), // 10ms to ~40s
	})

	c.errorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transport_errors_total",
		Help:      "Total failed resolutions by error kind",
	}, []string{"kind"})

	c.findingsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "findings_total",
		Help:      "Total hop findings by type",
	}, []string{"type"})

	registerer.MustRegister(
		c.resolutionsTotal,
		c.hopsTotal,
		c.resolutionDuration,
		c.errorsTotal,
		c.findingsTotal,
	)

	gatherer, ok := registerer.(prometheus.Gatherer)
	if !ok {
		gatherer = prometheus.DefaultGatherer
	}
	c.httpHandler = fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	logger.Debug("Prometheus metrics initialized", zap.String("namespace", namespace))
	return c
}

// ObserveResult records one finished resolution.
func (c *Collector) ObserveResult(res model.CheckResult) {
	c.resolutionsTotal.WithLabelValues(outcome(res)).Inc()
	c.hopsTotal.Add(float64(len(res.Hops)))
	c.resolutionDuration.Observe((time.Duration(res.DurationMs) * time.Millisecond).Seconds())
	if res.Failed() {
		c.errorsTotal.WithLabelValues(res.ErrorString()).Inc()
	}
	for _, f := range res.Findings {
		c.findingsTotal.WithLabelValues(f.Type).Inc()
	}
}

// ServeHTTP exposes the registry in the Prometheus text format.
func (c *Collector) ServeHTTP(ctx *fasthttp.RequestCtx) {
	c.httpHandler(ctx)
}

func outcome(res model.CheckResult) string {
	switch {
	case res.Failed():
		return OutcomeError
	case res.IsSafe:
		return OutcomeSafe
	default:
		return OutcomeUnsafe
	}
}
