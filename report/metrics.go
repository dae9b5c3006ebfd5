package report

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/YuminosukeSato/claimrate/metrics"
	"github.com/YuminosukeSato/claimrate/pkg/errors"
	"github.com/YuminosukeSato/claimrate/pkg/log"
)

// MetricsExporter holds the evaluation gauges of one run in a private registry.
// WriteTextfile writes them in the node-exporter textfile format.
type MetricsExporter struct {
	registry *prometheus.Registry

	rms          prometheus.Gauge
	rSquared     prometheus.Gauge
	l1           prometheus.Gauge
	l2           prometheus.Gauge
	samples      prometheus.Gauge
	features     prometheus.Gauge
	trainSeconds prometheus.Gauge
	info         *prometheus.GaugeVec
}

// NewMetricsExporter registers the claimrate gauges.
func NewMetricsExporter() *MetricsExporter {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	gauge := func(name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "claimrate",
			Name:      name,
			Help:      help,
		})
	}

	return &MetricsExporter{
		registry:     reg,
		rms:          gauge("evaluation_rms", "Root mean squared error on the evaluation records"),
		rSquared:     gauge("evaluation_r_squared", "Coefficient of determination on the evaluation records"),
		l1:           gauge("evaluation_l1", "Mean absolute error on the evaluation records"),
		l2:           gauge("evaluation_l2", "Mean squared error on the evaluation records"),
		samples:      gauge("training_samples", "Number of training records"),
		features:     gauge("training_features", "Width of the feature vector"),
		trainSeconds: gauge("training_duration_seconds", "Wall time of the learner fit"),
		info: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "claimrate",
			Name:      "model_info",
			Help:      "Trained learner, always 1",
		}, []string{"trainer", "model"}),
	}
}

// Observe records the results of one run.
func (e *MetricsExporter) Observe(m metrics.RegressionMetrics, samples, features int, train time.Duration, trainer, model string) {
	e.rms.Set(m.RMS)
	e.rSquared.Set(m.RSquared)
	e.l1.Set(m.L1)
	e.l2.Set(m.L2)
	e.samples.Set(float64(samples))
	e.features.Set(float64(features))
	e.trainSeconds.Set(train.Seconds())
	e.info.Reset()
	e.info.WithLabelValues(trainer, model).Set(1)
}

// Registry exposes the private registry, e.g. for an HTTP handler.
func (e *MetricsExporter) Registry() *prometheus.Registry {
	return e.registry
}

// WriteTextfile atomically writes the gauges to path.
func (e *MetricsExporter) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, e.registry); err != nil {
		return errors.Wrapf(err, "write metrics textfile %s", path)
	}
	log.GetLoggerWithName("report").Info("Metrics textfile written", log.PathKey, path)
	return nil
}
