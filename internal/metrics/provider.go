package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(providerRequestsTotal, providerLatencyMs, restaurantCacheTotal) }

var (
	providerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablewatch_provider_requests_total",
			Help: "Reservation provider calls by operation and success.",
		},
		[]string{"provider", "operation", "success"},
	)

	providerLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tablewatch_provider_latency_ms",
			Help:    "Reservation provider call latency in milliseconds.",
			Buckets: []float64{50, 100, 200, 400, 800, 1600, 3000, 5000, 10000, 20000},
		},
		[]string{"provider", "operation"},
	)

	restaurantCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablewatch_restaurant_cache_total",
			Help: "Restaurant lookups served from the cache or the provider.",
		},
		[]string{"provider", "result"}, // 'hit', 'miss'
	)
)

// ObserveProviderCall records one provider request started at start.
func ObserveProviderCall(provider, operation string, start time.Time, err error) {
	providerRequestsTotal.WithLabelValues(norm(provider), operation, strconv.FormatBool(err == nil)).Inc()
	providerLatencyMs.WithLabelValues(norm(provider), operation).Observe(float64(time.Since(start).Milliseconds()))
}

func IncRestaurantCache(provider, result string) {
	restaurantCacheTotal.WithLabelValues(norm(provider), norm(result)).Inc()
}
