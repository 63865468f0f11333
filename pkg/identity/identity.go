package identity

import (
	"context"
	"errors"
)

var ErrInvalidToken = errors.New("invalid token")

// Identity is what a verified bearer token says about its holder.
type Identity struct {
	UserID string
	Email  string
	Name   string
}

// Verifier turns a bearer token into an Identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}
