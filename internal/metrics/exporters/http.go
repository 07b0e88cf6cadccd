// Package exporters serves metrics over HTTP and publishes periodic
// snapshots onto the event bus.
package exporters

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPHandler returns the Prometheus handler for every promauto metric.
func HTTPHandler() http.Handler {
	return promhttp.Handler()
}
