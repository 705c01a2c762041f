package metrics

import "context"

// Tracer is the distributed-tracing port.
type Tracer interface {
	// StartSpan starts a span named name with the given attributes.
	// The returned function ends the span; call it in a defer.
	StartSpan(ctx context.Context, name string, attributes map[string]interface{}) (context.Context, func())

	// RecordError records err on the span in ctx.
	RecordError(ctx context.Context, module string, err error)

	// RecordEvent adds a named event to the span in ctx.
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})
}
