package shared

import (
	"context"
	"strings"
)

type actorContextKey struct{}

// ContextWithActor stores the acting user's display name in context.
func ContextWithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorContextKey{}, strings.TrimSpace(actor))
}

// ActorFromContext extracts the actor name from context.
func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorContextKey{}).(string)
	return actor
}

// ActorOr picks the explicit actor, then the context actor, then fallback.
func ActorOr(ctx context.Context, explicit, fallback string) string {
	if v := strings.TrimSpace(explicit); v != "" {
		return v
	}
	if v := ActorFromContext(ctx); v != "" {
		return v
	}
	return fallback
}
