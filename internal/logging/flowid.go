package logging

import (
	"context"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// flowIDKey is the context key for storing/retrieving flow IDs.
type flowIDKey struct{}

// FlowIDField is the log field carrying the handshake identifier.
const FlowIDField = "flow_id"

// GenerateFlowID creates a new identifier for one handshake.
func GenerateFlowID() string {
	return uuid.NewString()
}

// WithFlowID returns a new context with the flow ID attached.
func WithFlowID(ctx context.Context, flowID string) context.Context {
	return context.WithValue(ctx, flowIDKey{}, flowID)
}

// GetFlowID retrieves the flow ID from the context.
// Returns empty string if not found.
func GetFlowID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(flowIDKey{}).(string); ok {
		return id
	}
	return ""
}

// FromContext returns a log entry tagged with the flow ID carried by ctx, if any.
func FromContext(ctx context.Context) *log.Entry {
	if id := GetFlowID(ctx); id != "" {
		return log.WithField(FlowIDField, id)
	}
	return log.NewEntry(log.StandardLogger())
}
