// Package observability provides structured logging, OpenTelemetry metrics
// and tracing for the rbtree tooling.
package observability

import "log/slog"

// AppMode identifies how the binary was launched.
type AppMode string

const (
	// ModeRun executes an operation script.
	ModeRun AppMode = "run"
	// ModeStress runs the randomized workload.
	ModeStress AppMode = "stress"
)

const (
	defaultServiceName        = "rbtree"
	defaultShutdownTimeoutSec = 5
)

// Config holds all observability configuration.
type Config struct {
	// ServiceName is the OTel resource service name.
	ServiceName string

	// ServiceVersion is the version of the running binary.
	ServiceVersion string

	// Mode identifies how the binary was launched.
	Mode AppMode

	// OTLPEndpoint is the OTLP gRPC collector address (e.g. "localhost:4317").
	// Empty disables OTLP export; metrics are still collected for Prometheus.
	OTLPEndpoint string

	// OTLPInsecure disables TLS for the OTLP gRPC connection.
	OTLPInsecure bool

	// LogLevel controls the minimum slog severity.
	LogLevel slog.Level

	// LogJSON enables JSON-formatted log output.
	LogJSON bool

	// ShutdownTimeoutSec is the maximum seconds to wait for flush on shutdown.
	ShutdownTimeoutSec int
}

// DefaultConfig returns a Config usable without any setup.
func DefaultConfig() Config {
	return Config{
		ServiceName:        defaultServiceName,
		Mode:               ModeRun,
		LogLevel:           slog.LevelInfo,
		ShutdownTimeoutSec: defaultShutdownTimeoutSec,
	}
}
