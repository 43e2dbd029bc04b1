package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ativosaber/internal/rates"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestCollector_Counters(t *testing.T) {
	c := NewCollector()

	c.ObserveValuation("expected_yield", "ok")
	c.ObserveValuation("expected_yield", "ok")
	c.ObserveValuation("redemption", "before_issue")
	c.IndexFallback("CDX")
	c.ValidationFailed("tax_rate")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.valuations.WithLabelValues("expected_yield", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.valuations.WithLabelValues("redemption", "before_issue")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.indexFallbacks.WithLabelValues("CDX")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.validationFailure.WithLabelValues("tax_rate")))
}

func TestCollector_SetIndexRates(t *testing.T) {
	c := NewCollector()
	c.SetIndexRates(rates.Default())

	assert.InDelta(t, 0.13, testutil.ToFloat64(c.indexRate.WithLabelValues("CDI")), 1e-9)
	assert.InDelta(t, 0.04, testutil.ToFloat64(c.indexRate.WithLabelValues("IPCA")), 1e-9)
}

func TestCollector_MiddlewareAndHandler(t *testing.T) {
	c := NewCollector()

	r := gin.New()
	r.Use(c.Middleware())
	r.GET("/assets/:id", func(ctx *gin.Context) { ctx.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(c.Handler()))

	for _, path := range []string{"/assets/a", "/assets/b", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, http.NoBody))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(c.httpRequests.WithLabelValues("/assets/:id", "GET", "204")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequests.WithLabelValues("unmatched", "GET", "404")))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `ativosaber_http_requests_total{method="GET",route="/assets/:id",status="204"} 2`), body)
	assert.Contains(t, body, "go_goroutines")
}
