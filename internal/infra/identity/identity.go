// File: internal/infra/identity/identity.go
package identity

import (
	"context"

	"billing-lifecycle/internal/domain/ports/adapter"
)

type ctxKey struct{}

// WithActor stores the acting user on the context. The HTTP middleware is the
// only writer; the fronting portal authenticates and forwards the identity.
func WithActor(ctx context.Context, id adapter.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// ContextProvider resolves the acting user from the request context.
// Anonymous requests yield a zero identity, not an error: attribution is
// best-effort and never blocks an operation.
type ContextProvider struct{}

func NewContextProvider() *ContextProvider { return &ContextProvider{} }

var _ adapter.IdentityProvider = (*ContextProvider)(nil)

func (p *ContextProvider) Current(ctx context.Context) (adapter.Identity, error) {
	if v, ok := ctx.Value(ctxKey{}).(adapter.Identity); ok {
		return v, nil
	}
	return adapter.Identity{}, nil
}
