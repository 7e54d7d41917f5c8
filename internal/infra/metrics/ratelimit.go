package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(rateLimitRejections, rateLimitSwept) }

var (
	rateLimitRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratelimit_rejections_total",
			Help: "Chat messages rejected by the fixed-window limiter.",
		},
		[]string{"backend"},
	)

	rateLimitSwept = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ratelimit_swept_total",
			Help: "Expired in-memory rate-limit records removed by the sweep.",
		},
	)
)

func IncRateLimitRejection(backend string) { rateLimitRejections.WithLabelValues(norm(backend)).Inc() }

func AddRateLimitSwept(n int) {
	if n > 0 {
		rateLimitSwept.Add(float64(n))
	}
}
