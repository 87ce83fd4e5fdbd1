package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP series are labelled with the route template, so todo ids never reach
// label values.
var (
	httpReqs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by method, route and status code.",
	}, []string{"method", "path", "status"})

	httpLat = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: []float64{.002, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"method", "path"})

	httpInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "http_requests_inflight",
		Help: "Requests currently being served.",
	})

	httpRespSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_response_size_bytes",
		Help:    "HTTP response body size by method and route.",
		Buckets: prometheus.ExponentialBuckets(128, 4, 8), // 128B .. 2MiB
	}, []string{"method", "path"})

	httpRateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_rate_limited_total",
		Help: "Requests rejected by the rate limiter, by route.",
	}, []string{"path"})
)

// routeLabel is the matched route template, or the raw path for unmatched
// requests.
func routeLabel(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return c.Request.URL.Path
}

// Metrics records count, latency, in-flight and response size per request.
// Responses without a body (204, 304) are left out of the size histogram.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		httpInflight.Inc()
		start := time.Now()
		defer func() {
			httpInflight.Dec()
			method, path := c.Request.Method, routeLabel(c)
			httpReqs.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
			httpLat.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
			if n := c.Writer.Size(); n >= 0 {
				httpRespSize.WithLabelValues(method, path).Observe(float64(n))
			}
		}()
		c.Next()
	}
}
