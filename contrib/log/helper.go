package log

import "context"

type requestIDKey struct{}

// Helper is a named, optionally field-carrying logger.
type Helper struct {
	kv []any
}

// NewHelper returns a Helper tagged with a module name.
func NewHelper(module string) *Helper {
	return &Helper{kv: []any{"module", module}}
}

// With returns a copy of the helper with extra key/value pairs attached.
func (h *Helper) With(kv ...any) *Helper {
	merged := make([]any, 0, len(h.kv)+len(kv))
	merged = append(merged, h.kv...)
	merged = append(merged, kv...)
	return &Helper{kv: merged}
}

// WithRequestID stores a request id for Context-built helpers.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// Context returns a helper carrying the request id found in ctx, if any.
func Context(ctx context.Context) *Helper {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return &Helper{kv: []any{"request_id", id}}
	}
	return &Helper{}
}

func (h *Helper) Debug(args ...any)              { global.With(h.kv...).Debug(args...) }
func (h *Helper) Debugf(format string, a ...any) { global.With(h.kv...).Debugf(format, a...) }
func (h *Helper) Info(args ...any)               { global.With(h.kv...).Info(args...) }
func (h *Helper) Infof(format string, a ...any)  { global.With(h.kv...).Infof(format, a...) }
func (h *Helper) Warn(args ...any)               { global.With(h.kv...).Warn(args...) }
func (h *Helper) Warnf(format string, a ...any)  { global.With(h.kv...).Warnf(format, a...) }
func (h *Helper) Error(args ...any)              { global.With(h.kv...).Error(args...) }
func (h *Helper) Errorf(format string, a ...any) { global.With(h.kv...).Errorf(format, a...) }
