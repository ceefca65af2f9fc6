package log

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

// WithLogger stores a logger in the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// WithRoom returns ctx whose logger carries the room id.
func WithRoom(ctx context.Context, roomID string) context.Context {
	l := Ctx(ctx).With().Str(FieldRoomID, roomID).Logger()
	return WithLogger(ctx, l)
}

// Ctx returns the request-scoped logger, falling back to the global one.
func Ctx(ctx context.Context) zerolog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return l
	}
	return L()
}
