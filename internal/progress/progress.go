package progress

import "context"

// Func receives progress messages.
type Func func(msg string)

type progressKey struct{}

// With returns a context carrying fn.
func With(ctx context.Context, fn Func) context.Context {
	return context.WithValue(ctx, progressKey{}, fn)
}

// Report calls the progress callback in ctx, if any. A context without a
// callback (MCP mode) is a no-op.
func Report(ctx context.Context, msg string) {
	if fn, ok := ctx.Value(progressKey{}).(Func); ok && fn != nil {
		fn(msg)
	}
}
