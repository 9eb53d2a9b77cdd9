package telemetry

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// buildOTLPMetricExporter exports metrics over OTLP/HTTP. The endpoint is
// host:port, optionally prefixed with a scheme; plain http is the default.
func buildOTLPMetricExporter(ctx context.Context, endpoint string) (sdkmetric.Exporter, error) {
	if host, ok := strings.CutPrefix(endpoint, "https://"); ok {
		return otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpoint(host))
	}
	host := strings.TrimPrefix(endpoint, "http://")
	return otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpoint(host),
		otlpmetrichttp.WithInsecure(),
	)
}
