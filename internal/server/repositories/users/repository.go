// Package users persists user identities and their single refresh token.
package users

import (
	"context"

	"github.com/uhhharsh/VidShare/internal/server/models"
)

// Repository is implemented by the Postgres, MongoDB and in-memory stores.
//
// Lookups of a missing user return common.ErrorNotFound. A unique-key
// violation on username or email returns common.ErrorConflict. Other
// failures are wrapped driver errors.
type Repository interface {
	// Create inserts user and fills in ID and timestamps.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	// FindByLogin matches on username or email. Empty values are ignored.
	FindByLogin(ctx context.Context, username, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	// Update applies the non-nil fields of upd and returns the updated user.
	Update(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error)

	GetRefreshToken(ctx context.Context, id string) (*string, error)
	// SetRefreshToken overwrites the stored token; nil clears it.
	SetRefreshToken(ctx context.Context, id string, token *string) error
	// SwapRefreshToken replaces the stored token with next only if it still
	// equals current. It reports whether the swap happened.
	SwapRefreshToken(ctx context.Context, id, current, next string) (bool, error)
}
