// Package audit writes structured audit events for ledger mutations:
// accounts added or retired, entries posted, entries reversed.
package audit

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"asoandina.org/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the audit request id from context if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes one audit line enriched with request context.
func LogEvent(ctx context.Context, event string, fields map[string]string) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}

	logger := obs.Logger()
	ev := logger.Info().Str("type", "audit").Str("event", event)
	if rid := RequestIDFromContext(ctx); rid != "" {
		ev = ev.Str("request_id", rid)
	}
	ev.Dict("fields", fieldsDict(fields)).Send()
	return nil
}

// fieldsDict renders fields in stable key order so log lines diff cleanly.
func fieldsDict(fields map[string]string) *zerolog.Event {
	d := zerolog.Dict()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		d = d.Str(k, fields[k])
	}
	return d
}
