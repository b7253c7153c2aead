package transport

import (
	"context"
	"sync/atomic"
)

type contextKey string

const (
	opKey       contextKey = "platform_op"
	recorderKey contextKey = "status_recorder"
)

// statusRecorder holds the last HTTP status seen during one attempt. Libraries that
// wrap HTTP errors in their own types still get classified from it.
type statusRecorder struct {
	status atomic.Int64
}

func (r *statusRecorder) set(status int) {
	r.status.Store(int64(status))
}

func (r *statusRecorder) get() int {
	return int(r.status.Load())
}

func withRecorder(ctx context.Context, rec *statusRecorder) context.Context {
	return context.WithValue(ctx, recorderKey, rec)
}

func recorderFrom(ctx context.Context) *statusRecorder {
	rec, _ := ctx.Value(recorderKey).(*statusRecorder)
	return rec
}

func withOp(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, opKey, op)
}

func opFrom(ctx context.Context) string {
	if op, ok := ctx.Value(opKey).(string); ok {
		return op
	}
	return "unknown"
}
