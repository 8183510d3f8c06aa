package observability

import (
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
)

// PrometheusHandler returns an [http.Handler] serving the registry in the
// Prometheus exposition format.
func PrometheusHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// WriteMetrics gathers the registry and writes it to out in the Prometheus
// text format.
func WriteMetrics(out io.Writer, registry *prometheus.Registry) error {
	families, err := registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	for _, family := range families {
		_, err = expfmt.MetricFamilyToText(out, family)
		if err != nil {
			return fmt.Errorf("write metric family %s: %w", family.GetName(), err)
		}
	}

	return nil
}
