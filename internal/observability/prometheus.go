package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "workrecap"

// NewPrometheusMetrics builds the Metrics instruments on a Prometheus-backed
// OTel meter and returns the /metrics scrape handler alongside them. Each call
// creates an independent Prometheus registry to avoid collector conflicts when
// called multiple times.
func NewPrometheusMetrics() (*Metrics, http.Handler, error) {
	registry := prometheus.NewRegistry()

	exporter, err := promexporter.New(
		promexporter.WithRegisterer(registry),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	// The exporter acts as the reader: instruments created from this provider
	// are collected on each scrape, no periodic flushing involved.
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))

	metrics, err := NewMetrics(provider.Meter(meterName))
	if err != nil {
		return nil, nil, err
	}

	return metrics, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), nil
}
