package helpers

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type sessionIDKeyType string

const sessionIDKey sessionIDKeyType = "session_id"

// ContextWithSessionID stores the session id and attaches a logger carrying
// it, so log.Ctx(ctx) lines are correlated with the session.
func ContextWithSessionID(ctx context.Context, sessionID string) context.Context {
	ctx = context.WithValue(ctx, sessionIDKey, sessionID)
	l := log.Logger.With().Str("session_id", sessionID).Logger()
	return l.WithContext(ctx)
}

func SessionIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(sessionIDKey).(string)
	return v, ok
}

// Logger returns the context logger, or the global logger when none is set.
func Logger(ctx context.Context) *zerolog.Logger {
	l := zerolog.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		return &log.Logger
	}
	return l
}
