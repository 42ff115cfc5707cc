package logging

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

type (
	loggerKey struct{}
	leadKey   struct{}
)

type leadScope struct {
	leadID  string
	network string
}

// WithLogger stores a logger in the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// Ctx retrieves the logger from the context, falling back to the global one.
func Ctx(ctx context.Context) zerolog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(zerolog.Logger); ok {
		return l
	}
	return L()
}

// WithLead scopes the context logger to one lead on one network. When the
// context is already scoped to that lead, as it is under GinMiddleware on
// lead routes, the logger is returned unchanged so fields are not repeated.
func WithLead(ctx context.Context, leadID, network string) (context.Context, zerolog.Logger) {
	if s, ok := ctx.Value(leadKey{}).(leadScope); ok &&
		s.leadID == leadID && strings.EqualFold(s.network, network) {
		return ctx, Ctx(ctx)
	}

	l := Ctx(ctx).With().
		Str(FieldLeadID, leadID).
		Str(FieldNetwork, network).
		Logger()
	ctx = context.WithValue(ctx, leadKey{}, leadScope{leadID: leadID, network: network})
	return WithLogger(ctx, l), l
}
