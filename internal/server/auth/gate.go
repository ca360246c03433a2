package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/uhhharsh/VidShare/internal/common"
	"github.com/uhhharsh/VidShare/internal/server/models"
)

// UserFinder looks a user up by id.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// TokenVerifier is the part of Issuer the gate needs.
type TokenVerifier interface {
	Verify(token string, kind Kind) (TokenInfo, error)
}

// Gate resolves an access token to the user it was issued for. It never
// changes stored state.
type Gate struct {
	tokens  TokenVerifier
	users   UserFinder
	timeout time.Duration
}

// NewGate builds a Gate. timeout bounds the user lookup; zero means no
// extra bound beyond the caller's context.
func NewGate(tokens TokenVerifier, users UserFinder, timeout time.Duration) *Gate {
	return &Gate{tokens: tokens, users: users, timeout: timeout}
}

// Authenticate returns the public identity behind token.
//
// A missing, invalid or expired token, or a token for a user that no longer
// exists, is common.ErrorUnauthorized. A store failure is classified with
// common.Classify, so a timeout surfaces as common.ErrorUnavailable.
func (g *Gate) Authenticate(ctx context.Context, token string) (models.PublicUser, error) {
	if token == "" {
		return models.PublicUser{}, common.NewError(common.ErrorUnauthorized, "unauthorized request")
	}

	info, err := g.tokens.Verify(token, KindAccess)
	if err != nil {
		return models.PublicUser{}, common.NewError(common.ErrorUnauthorized, "invalid access token")
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	user, err := g.users.FindByID(ctx, info.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return models.PublicUser{}, common.NewError(common.ErrorUnauthorized, "invalid access token")
		}
		return models.PublicUser{}, common.Classify(err)
	}

	return user.Public(), nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// value. The scheme is matched case-insensitively.
func BearerToken(header string) string {
	if len(header) < len(common.BearerPrefix) || !strings.EqualFold(header[:len(common.BearerPrefix)], common.BearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(common.BearerPrefix):])
}

type userCtxKey struct{}

// WithUser attaches an authenticated identity to ctx.
func WithUser(ctx context.Context, u models.PublicUser) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext returns the identity attached by WithUser.
func UserFromContext(ctx context.Context) (models.PublicUser, bool) {
	u, ok := ctx.Value(userCtxKey{}).(models.PublicUser)
	return u, ok
}
