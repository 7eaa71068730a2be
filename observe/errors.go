package observe

import "errors"

var (
	ErrMissingServiceName     = errors.New("observe: service_name is required")
	ErrInvalidSamplePct       = errors.New("observe: tracing.sample_pct must be within [0, 1]")
	ErrInvalidTracingExporter = errors.New("observe: unsupported tracing exporter")
	ErrInvalidMetricsExporter = errors.New("observe: unsupported metrics exporter")
	ErrInvalidLogLevel        = errors.New("observe: unsupported log level")

	// ErrNilObserver is returned by constructors that derive from an Observer.
	ErrNilObserver = errors.New("observe: nil observer")
)

// Exporter names accepted by Config. An empty name behaves like "none".
const (
	ExporterNone       = "none"
	ExporterStdout     = "stdout"
	ExporterOTLP       = "otlp"
	ExporterJaeger     = "jaeger"
	ExporterPrometheus = "prometheus"
)

var (
	tracingExporters = []string{"", ExporterNone, ExporterStdout, ExporterOTLP, ExporterJaeger}
	metricsExporters = []string{"", ExporterNone, ExporterStdout, ExporterOTLP, ExporterPrometheus}
)

// redactedKeys are log field keys whose values never reach the output.
// Cached payloads are logged under "value" and rule event payloads under
// "event.data"; both may carry user data.
var redactedKeys = []string{
	"value",
	"event.data",
	"password",
	"secret",
	"token",
	"credential",
}
