// Package logging carries a per-request correlation ID through the context
// so the log lines of one proxied call can be tied together.
package logging

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

type ctxKey int

const requestIDKey ctxKey = iota

// GenerateRequestID returns a short correlation ID, unique enough to tell
// concurrent requests apart in the daemon log.
func GenerateRequestID() string {
	return strings.SplitN(uuid.NewString(), "-", 2)[0]
}

// WithRequestID stores the correlation ID on the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the correlation ID stored on the context, or "" when
// the request never passed through an instrumented entrypoint.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
