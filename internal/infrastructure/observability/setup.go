package observability

import "context"

// Setup initialises logging, metrics and tracing for serviceName and returns
// the tracer shutdown hook.
func Setup(ctx context.Context, serviceName, logLevel, otlpEndpoint string) func(context.Context) error {
	InitLogger(logLevel)
	InitMetrics()
	return InitTracing(ctx, serviceName, otlpEndpoint)
}
