package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys for domain operations.
const (
	TripIDKey   = attribute.Key("trip.id")
	UserIDKey   = attribute.Key("user.id")
	DriverIDKey = attribute.Key("driver.id")
	ProviderKey = attribute.Key("route.provider")
	CacheHitKey = attribute.Key("route.cache_hit")
	SeatsKey    = attribute.Key("reservation.seats")
)

// TraceExternalAPI wraps an upstream provider call in a client span.
func TraceExternalAPI(ctx context.Context, tracerName, serviceName, operation string, fn func(context.Context) error) error {
	ctx, span := StartSpan(ctx, tracerName, fmt.Sprintf("%s.%s", serviceName, operation),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	span.SetAttributes(
		attribute.String("external.service", serviceName),
		attribute.String("external.operation", operation),
	)

	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	return err
}
