package observability

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestNewTracerProviderInstallsGlobalProvider(t *testing.T) {
	shutdown, err := NewTracerProvider(context.Background(), TraceConfig{ServiceName: "agentcore-test", ServiceVersion: "0.0.0"})
	if err != nil {
		t.Fatal(err)
	}
	defer shutdown(context.Background())

	tracer := otel.Tracer("agentcore/test")
	_, span := tracer.Start(context.Background(), "test-span")
	span.End()
}
