// Package sessions keeps the single active refresh token of each user.
//
// Writing a new token (login), clearing it (logout) or swapping it
// (refresh) invalidates whatever was stored before. There is no revocation
// list.
package sessions

import (
	"context"
	"crypto/subtle"

	"github.com/uhhharsh/VidShare/internal/common"
)

// TokenRepository is the persistence the store needs.
type TokenRepository interface {
	GetRefreshToken(ctx context.Context, userID string) (*string, error)
	SetRefreshToken(ctx context.Context, userID string, token *string) error
	SwapRefreshToken(ctx context.Context, userID, current, next string) (bool, error)
}

type Store struct {
	repo TokenRepository
}

func NewStore(repo TokenRepository) *Store {
	return &Store{repo: repo}
}

// Set makes token the only valid refresh token for userID.
func (s *Store) Set(ctx context.Context, userID, token string) error {
	return s.repo.SetRefreshToken(ctx, userID, &token)
}

// Clear removes the stored token, ending the session.
func (s *Store) Clear(ctx context.Context, userID string) error {
	return s.repo.SetRefreshToken(ctx, userID, nil)
}

// Get returns the stored token. ok is false when no session is active. A
// missing user is common.ErrorNotFound.
func (s *Store) Get(ctx context.Context, userID string) (token string, ok bool, err error) {
	stored, err := s.repo.GetRefreshToken(ctx, userID)
	if err != nil {
		return "", false, err
	}
	if stored == nil {
		return "", false, nil
	}
	return *stored, true, nil
}

// Matches reports whether presented is the stored token. The comparison is
// constant-time.
func (s *Store) Matches(ctx context.Context, userID, presented string) (bool, error) {
	stored, ok, err := s.Get(ctx, userID)
	if err != nil || !ok {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1, nil
}

// Rotate replaces presented with next, provided presented is still the
// stored token. Losing a race to a concurrent rotation, logout or login is
// common.ErrorUnauthorized.
func (s *Store) Rotate(ctx context.Context, userID, presented, next string) error {
	swapped, err := s.repo.SwapRefreshToken(ctx, userID, presented, next)
	if err != nil {
		return err
	}
	if !swapped {
		return common.NewError(common.ErrorUnauthorized, "refresh token is expired or used")
	}
	return nil
}
