package gateway

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestContext extends context.Context with gateway-specific fields,
// following internal/core/context.go's AIGisContext from the teacher
// gateway, trimmed to what a webhook request needs (no PII vault — this
// gateway doesn't scan payload content for secrets).
type RequestContext struct {
	context.Context
	RequestID string
	StartTime time.Time
	Log       *zap.Logger
}

// NewRequestContext creates a RequestContext carrying a fresh UUID request
// ID and a logger pre-tagged with it.
func NewRequestContext(ctx context.Context, baseLog *zap.Logger) *RequestContext {
	requestID := uuid.NewString()
	return &RequestContext{
		Context:   ctx,
		RequestID: requestID,
		StartTime: time.Now(),
		Log:       baseLog.With(zap.String("request_id", requestID)),
	}
}
