// Package telemetry carries per request trace ids through the context.
package telemetry

import (
	"context"

	"github.com/jrazmi/allmyducks/sdk/cryptids"
)

type telKey int

const (
	traceIDKey telKey = iota + 1
)

// NoTrace is returned when the context carries no trace id.
const NoTrace = "--------NOTRACE--------"

type Telemetry struct{}

// Creates a new telemetry instance
func NewTelemetry() Telemetry {
	return Telemetry{}
}

// SetTraceID stores a freshly generated trace id on the context.
func (t Telemetry) SetTraceID(ctx context.Context) context.Context {
	tid, err := cryptids.GenerateID()
	if err != nil {
		return context.WithValue(ctx, traceIDKey, NoTrace)
	}
	return context.WithValue(ctx, traceIDKey, tid)
}

// WithTraceID stores a caller supplied trace id, used by background jobs that
// want their log lines grouped under one run id.
func (t Telemetry) WithTraceID(ctx context.Context, tid string) context.Context {
	return context.WithValue(ctx, traceIDKey, tid)
}

func (t Telemetry) GetTraceID(ctx context.Context) string {
	v, ok := ctx.Value(traceIDKey).(string)
	if !ok {
		return NoTrace
	}
	return v
}
