// Package auth turns bearer tokens into identities. The email address of an
// identity is the user's key in the document store.
package auth

import (
	"context"
	"errors"
)

var ErrInvalidToken = errors.New("invalid token")

type Identity struct {
	Email string `json:"email"`
	UID   string `json:"uid,omitempty"`
}

// Verifier checks a bearer token issued by an auth provider.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

type contextKey string

const identityContextKey = contextKey("identity")

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// FromContext returns the identity stored by the auth middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(Identity)
	if !ok || id.Email == "" {
		return Identity{}, false
	}
	return id, true
}
