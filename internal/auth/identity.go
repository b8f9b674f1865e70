package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/lecture-notebook/internal/types"
)

// UserStore resolves verified emails to user rows.
type UserStore interface {
	GetOrCreateUserByEmail(ctx context.Context, email string) (*types.User, error)
}

// Resolver maps a request to a user identity. The upstream auth layer has
// already verified the caller and placed their email in a trusted header;
// this process never sees credentials.
type Resolver struct {
	store  UserStore
	header string
}

// NewResolver builds a resolver reading identity from the configured header.
func NewResolver(store UserStore, header string) *Resolver {
	return &Resolver{store: store, header: header}
}

// Resolve returns the caller's user row, or nil for an anonymous request.
// Users are provisioned on first sight; the email was verified upstream.
func (r *Resolver) Resolve(c *fiber.Ctx) (*types.User, error) {
	email := strings.TrimSpace(c.Get(r.header))
	if email == "" {
		return nil, nil
	}
	return r.store.GetOrCreateUserByEmail(c.UserContext(), email)
}
