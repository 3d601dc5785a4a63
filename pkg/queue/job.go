package queue

import (
	"context"
	"fmt"
	"strings"
)

// Job is the single-method contract every job type implements
type Job interface {
	Handle(ctx context.Context, payload Payload) error
}

// JobFunc adapts a plain function to the Job interface
type JobFunc func(ctx context.Context, payload Payload) error

func (f JobFunc) Handle(ctx context.Context, payload Payload) error {
	return f(ctx, payload)
}

// Typed adapts a handler taking a typed payload. The stored payload is bound into T
// before the handler runs, so decoding errors surface as job failures.
func Typed[T any](handler func(ctx context.Context, payload T) error) JobFunc {
	return func(ctx context.Context, payload Payload) error {
		var t T
		if err := payload.Bind(&t); err != nil {
			return err
		}
		return handler(ctx, t)
	}
}

// TaskName returns the task identifier used for a job type: its qualified type name
func TaskName(v any) string {
	return strings.TrimLeft(fmt.Sprintf("%T", v), "*")
}
