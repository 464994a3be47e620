package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/selimozcann/statuspeek/internal/model"
)

func intPtr(v int) *int { return &v }

func kindPtr(k model.ErrorKind) *model.ErrorKind { return &k }

func TestCollector_ObserveResult(t *testing.T) {
	registry := prometheus.NewRegistry()
	c := NewWithRegistry("statuspeek", registry, zap.NewNop())

	c.ObserveResult(model.CheckResult{
		FinalStatus: intPtr(200),
		IsSafe:      true,
		Hops: []model.RedirectHop{
			{Status: 301, URL: "https://a.example/"},
			{Status: 302, URL: "http://b.example/"},
		},
		Findings:   []model.Finding{{Type: "https_downgrade", AtHop: 1}},
		DurationMs: 120,
	})
	c.ObserveResult(model.CheckResult{FinalStatus: intPtr(404), InitialStatus: 404})
	c.ObserveResult(model.CheckResult{Error: kindPtr(model.ErrDNSFailure)})
	c.ObserveResult(model.CheckResult{Error: kindPtr(model.ErrDNSFailure)})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.resolutionsTotal.WithLabelValues(OutcomeSafe)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.resolutionsTotal.WithLabelValues(OutcomeUnsafe)))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.resolutionsTotal.WithLabelValues(OutcomeError)))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.hopsTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.errorsTotal.WithLabelValues(string(model.ErrDNSFailure))))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.findingsTotal.WithLabelValues("https_downgrade")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.resolutionDuration))
}

func TestCollector_ServeHTTP(t *testing.T) {
	registry := prometheus.NewRegistry()
	c := NewWithRegistry("statuspeek", registry, zap.NewNop())
	c.ObserveResult(model.CheckResult{FinalStatus: intPtr(200), IsSafe: true})

	ctx := &fasthttp.RequestCtx{}
	ctx.Request.SetRequestURI("/metrics")
	ctx.Request.Header.SetMethod("GET")

	c.ServeHTTP(ctx)

	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	body := string(ctx.Response.Body())
	assert.Contains(t, body, `statuspeek_resolutions_total{outcome="safe"} 1`)
	assert.Contains(t, body, "statuspeek_resolution_duration_seconds")
}

func TestNew_PrivateRegistry(t *testing.T) {
	// Two collectors with the same namespace must not collide.
	assert.NotPanics(t, func() {
		New("statuspeek", nil)
		New("statuspeek", nil)
	})
}
