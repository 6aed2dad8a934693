package adapter

import "context"

// Identity is the acting user, read from the session provider. Used only for
// request attribution; authentication itself is out of scope.
type Identity struct {
	Email string
	Name  string
}

type IdentityProvider interface {
	Current(ctx context.Context) (Identity, error)
}
