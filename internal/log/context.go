package log

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey string

const bookingIDKey ctxKey = "booking_id"

// ContextWithBookingID stores an upstream booking identifier in the context
// so every log line of one orchestration can be correlated.
func ContextWithBookingID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, bookingIDKey, id)
}

// BookingIDFromContext extracts the booking identifier if present.
func BookingIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(bookingIDKey).(string); ok {
		return v
	}
	return ""
}

// WithComponentFromContext returns a component logger enriched with
// correlation fields from ctx.
func WithComponentFromContext(ctx context.Context, component string) zerolog.Logger {
	l := WithComponent(component)
	if id := BookingIDFromContext(ctx); id != "" {
		l = l.With().Str("booking_id", id).Logger()
	}
	return l
}
