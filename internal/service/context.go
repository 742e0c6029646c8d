package service

import "context"

type contextKey string

const requestIDKey contextKey = "request_id"

// WithRequestID 把请求 ID 放入 context,审计日志会带上它
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext 从 context 获取请求 ID
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}
