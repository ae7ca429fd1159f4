package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// ExamProcessingCounter 试卷处理结果计数（completed / failed）
	ExamProcessingCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_processing_total",
			Help: "Total number of exam processing runs by final status",
		},
		[]string{"status"},
	)

	// StageDuration 管线各阶段耗时
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "exam_processing_stage_seconds",
			Help:    "Duration of exam extraction pipeline stages",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 180},
		},
		[]string{"stage"},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(ExamProcessingCounter)
	prometheus.MustRegister(StageDuration)
}

// ObserveStage 记录单个管线阶段耗时
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
