package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Miraines/MoonyAndStarry/telegram-service/internal/infra/metrics"
)

func TestRequestLogger_RequestIDAndRedaction(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.DebugLevel)

	r := gin.New()
	r.Use(RequestLogger(zap.New(core)))
	r.POST("/hook", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/hook", nil)
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("X-Telegram-Bot-Api-Secret-Token", "s3cret")
	req.Header.Set(RequestIDHeader, "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, "req-1", w.Header().Get(RequestIDHeader))

	in := logs.FilterMessage("incoming request").All()
	require.Len(t, in, 1)
	hdr := in[0].ContextMap()["hdr"].(string)
	require.NotContains(t, hdr, "secret")
	require.NotContains(t, hdr, "s3cret")
	require.Contains(t, hdr, "[redacted]")

	done := logs.FilterMessage("completed").All()
	require.Len(t, done, 1)
	require.Equal(t, "req-1", done[0].ContextMap()["request_id"])
}

func TestRequestLogger_GeneratesID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(zap.NewNop()))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Len(t, w.Header().Get(RequestIDHeader), 36)
}

func TestMetrics_CountsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics())
	r.GET("/things/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	counter := metrics.RequestsTotal.WithLabelValues(http.MethodGet, "/things/:id", "204")
	before := testutil.ToFloat64(counter)

	for _, p := range []string{"/things/1", "/things/2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}
	require.Equal(t, before+2, testutil.ToFloat64(counter))
}
