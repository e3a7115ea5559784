// Package adaxtools instruments the Adax API client.
package adaxtools

import (
	"github.com/clambin/adax-monitor/pkg/adax"
	"github.com/clambin/go-common/http/metrics"
	"github.com/clambin/go-common/http/roundtripper"
	"github.com/prometheus/client_golang/prometheus"
	"net/http"
	"strconv"
	"strings"
)

const apiPrefix = "/client-api"

// NewInstrumentedClient returns an Adax client that records every API call in the provided RequestMetrics.
func NewInstrumentedClient(credentials adax.Credentials, metrics metrics.RequestMetrics, options ...adax.Option) *adax.Client {
	options = append(options, adax.WithRoundTripper(InstrumentedRoundTripper(http.DefaultTransport, metrics)))
	return adax.New(credentials, options...)
}

// InstrumentedRoundTripper wraps rt, recording each request in metrics.
func InstrumentedRoundTripper(rt http.RoundTripper, metrics metrics.RequestMetrics) http.RoundTripper {
	return roundtripper.New(
		roundtripper.WithRequestMetrics(metrics),
		roundtripper.WithRoundTripper(rt),
	)
}

// NewAdaxCallMetrics returns the RequestMetrics for calls to the Adax API. Paths are reported relative to the API root.
func NewAdaxCallMetrics(namespace, subsystem string, labels prometheus.Labels) metrics.RequestMetrics {
	return metrics.NewRequestMetrics(metrics.Options{
		Namespace:   namespace,
		Subsystem:   subsystem,
		ConstLabels: labels,
		LabelValues: func(request *http.Request, code int) (string, string, string) {
			path := strings.TrimPrefix(request.URL.Path, apiPrefix)
			if path == "" {
				path = "/"
			}
			return request.Method, path, strconv.Itoa(code)
		},
	})
}
