package metrics

import (
	"context"
	"time"
)

// CompositeRecorder fans every call out to several recorders.
type CompositeRecorder struct {
	recorders []MetricRecorder
}

// NewCompositeRecorder creates a CompositeRecorder. Nil recorders are skipped.
func NewCompositeRecorder(recorders ...MetricRecorder) *CompositeRecorder {
	c := &CompositeRecorder{}
	for _, r := range recorders {
		if r != nil {
			c.recorders = append(c.recorders, r)
		}
	}
	return c
}

func (c *CompositeRecorder) RecordBatch(ctx context.Context, entity string, accepted, rejected int) {
	for _, r := range c.recorders {
		r.RecordBatch(ctx, entity, accepted, rejected)
	}
}

func (c *CompositeRecorder) RecordRejection(ctx context.Context, entity string, reason string) {
	for _, r := range c.recorders {
		r.RecordRejection(ctx, entity, reason)
	}
}

func (c *CompositeRecorder) RecordExport(ctx context.Context, table string, rows int, duration time.Duration) {
	for _, r := range c.recorders {
		r.RecordExport(ctx, table, rows, duration)
	}
}

func (c *CompositeRecorder) RecordRestore(ctx context.Context, table string, restored, rejected int, duration time.Duration) {
	for _, r := range c.recorders {
		r.RecordRestore(ctx, table, restored, rejected, duration)
	}
}

func (c *CompositeRecorder) RecordFailure(ctx context.Context, operation string, kind string) {
	for _, r := range c.recorders {
		r.RecordFailure(ctx, operation, kind)
	}
}

func (c *CompositeRecorder) RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	for _, r := range c.recorders {
		r.RecordHTTPRequest(ctx, method, route, status, duration)
	}
}

func (c *CompositeRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	for _, r := range c.recorders {
		r.RecordDuration(ctx, name, duration, tags)
	}
}

var _ MetricRecorder = (*CompositeRecorder)(nil)
