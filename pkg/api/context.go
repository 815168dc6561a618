package api

import "context"

type contextKey int

const emitterKey contextKey = iota

// Emitter publishes tool frames on behalf of a running step. The engine
// injects one into every step context.
type Emitter interface {
	EmitToolCall(tool string, args map[string]any)
	EmitToolResult(tool string, result any)
}

// WithEmitter attaches an Emitter to ctx. Used by the engine; exported for
// tests of custom steps.
func WithEmitter(ctx context.Context, em Emitter) context.Context {
	return context.WithValue(ctx, emitterKey, em)
}

// EmitterFromContext returns the Emitter attached to ctx, if any.
func EmitterFromContext(ctx context.Context) (Emitter, bool) {
	em, ok := ctx.Value(emitterKey).(Emitter)
	return em, ok
}

// EmitToolCall publishes a tool_call frame for the step running under ctx.
// It is a no-op outside an engine-managed step.
func EmitToolCall(ctx context.Context, tool string, args map[string]any) {
	if em, ok := EmitterFromContext(ctx); ok {
		em.EmitToolCall(tool, args)
	}
}

// EmitToolResult publishes a tool_result frame for the step running under
// ctx. It is a no-op outside an engine-managed step.
func EmitToolResult(ctx context.Context, tool string, result any) {
	if em, ok := EmitterFromContext(ctx); ok {
		em.EmitToolResult(tool, result)
	}
}
