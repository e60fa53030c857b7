package reqctx

import "context"

type ctxKey string

const (
	keyRequestID ctxKey = "request_id"
	keyUserID    ctxKey = "user_id"
)

// WithRequestID stores the correlation id assigned to the HTTP request.
func WithRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, keyRequestID, rid)
}

// RequestID returns correlation id if present.
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(keyRequestID).(string)
	return v
}

// WithUserID stores the authenticated caller.
func WithUserID(ctx context.Context, uid uint64) context.Context {
	return context.WithValue(ctx, keyUserID, uid)
}

// UserID returns the authenticated caller, or 0.
func UserID(ctx context.Context) uint64 {
	v, _ := ctx.Value(keyUserID).(uint64)
	return v
}
