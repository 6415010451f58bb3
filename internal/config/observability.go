package config

// ObservabilityConfig holds OpenTelemetry bootstrap configuration, shared by
// both the server and worker binaries.
type ObservabilityConfig struct {
	OTelEnabled bool   `env:"MONO_OTEL_ENABLED"`
	ServiceName string `env:"OTEL_SERVICE_NAME"`
}
