package telemetry

// Config holds OpenTelemetry configuration.
type Config struct {
	Enabled bool

	// ServiceName is reported as service.name on every span.
	ServiceName    string
	ServiceVersion string

	// Endpoint is the OTLP gRPC collector address (e.g. "localhost:4317").
	Endpoint string
	Insecure bool

	// SampleRate is the fraction of reconciliations traced, 0.0 to 1.0.
	SampleRate float64
}

// DefaultConfig returns tracing disabled with a local collector endpoint.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "rolesync",
		ServiceVersion: "dev",
		Endpoint:       "localhost:4317",
		Insecure:       true,
		SampleRate:     1.0,
	}
}
