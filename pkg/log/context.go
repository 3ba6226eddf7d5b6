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

// Ctx retrieves the logger from the context, or the global logger.
func Ctx(ctx context.Context) zerolog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return l
	}
	return L()
}

// WithSession derives a child logger tagged with the meeting session
// identity and stores it in the returned context.
func WithSession(ctx context.Context, sessionID, userID, classID string) context.Context {
	parent := Ctx(ctx)
	child := parent.With().
		Str(FieldSessionID, sessionID).
		Str(FieldUserID, userID).
		Str(FieldClassID, classID).
		Logger()
	return WithLogger(ctx, child)
}
