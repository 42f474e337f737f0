package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.POST("/webhook", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "Webhook received"}) })

	baseOK := testutil.ToFloat64(httpReqs.WithLabelValues("POST", "/webhook", "200"))
	base404 := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/missing", "404"))
	baseLat := testutil.CollectAndCount(httpLat)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/webhook", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	if got := testutil.ToFloat64(httpReqs.WithLabelValues("POST", "/webhook", "200")); got != baseOK+1 {
		t.Fatalf("webhook counter = %v; want %v", got, baseOK+1)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/missing", "404")); got != base404+1 {
		t.Fatalf("404 counter = %v; want %v", got, base404+1)
	}
	if got := testutil.CollectAndCount(httpLat); got < baseLat {
		t.Fatalf("latency series shrank: %d < %d", got, baseLat)
	}
	if got := testutil.ToFloat64(httpInflight); got != 0 {
		t.Fatalf("inflight should return to 0, got %v", got)
	}
}
