package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/codebuildervaibhav/lecture-notebook/internal/apperr"
	"github.com/codebuildervaibhav/lecture-notebook/internal/config"
	"github.com/codebuildervaibhav/lecture-notebook/internal/types"
)

// NotebookCounter is the store read the guard needs.
type NotebookCounter interface {
	CountNotebooksSince(ctx context.Context, userID int64, since time.Time) (int, error)
}

// Guard enforces the per-user daily submission cap. Configured admin
// identities bypass the check unconditionally.
type Guard struct {
	counter    NotebookCounter
	dailyLimit int
	adminID    int64
	adminEmail string
}

// NewGuard builds a guard from the limits and admin-override configuration.
func NewGuard(counter NotebookCounter, limits config.LimitsConfig, auth config.AuthConfig) *Guard {
	return &Guard{
		counter:    counter,
		dailyLimit: limits.DailyLimit,
		adminID:    auth.AdminID,
		adminEmail: auth.AdminEmail,
	}
}

// Admit returns nil if the user may start a new job today, or
// apperr.ErrQuotaExceeded at the cap.
//
// The count is not atomic with the subsequent notebook creation, so
// concurrent submissions can exceed the cap by at most the number of
// in-flight requests minus one. Accepted for a soft daily limit.
func (g *Guard) Admit(ctx context.Context, user *types.User) error {
	if g.isAdmin(user) {
		return nil
	}

	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	count, err := g.counter.CountNotebooksSince(ctx, user.ID, midnight)
	if err != nil {
		return fmt.Errorf("quota check: %w", err)
	}

	if count >= g.dailyLimit {
		return apperr.ErrQuotaExceeded
	}
	return nil
}

func (g *Guard) isAdmin(user *types.User) bool {
	if g.adminID != 0 && user.ID == g.adminID {
		return true
	}
	if g.adminEmail != "" && user.Email == g.adminEmail {
		return true
	}
	return false
}
