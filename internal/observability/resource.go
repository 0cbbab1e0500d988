package observability

import (
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func newResource(service string) *resource.Resource {
	return resource.NewSchemaless(semconv.ServiceName(service))
}
