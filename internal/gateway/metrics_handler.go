package gateway

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metricsHandler exposes the default prometheus registry at /metrics
// (pkg/metrics registers collectors against it via promauto).
func metricsHandler() http.Handler {
	return promhttp.Handler()
}
