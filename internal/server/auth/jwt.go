// Package auth verifies credentials, issues and checks session tokens and
// resolves bearer tokens to users.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/uhhharsh/VidShare/internal/common"
)

// Kind tells access and refresh tokens apart. Each kind is signed with its
// own secret.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Claims are the registered JWT claims plus the user id and token kind.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"_id"`
	Kind   Kind   `json:"kind"`
}

// TokenInfo is what a verified token tells about its bearer.
type TokenInfo struct {
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Issuer mints and verifies HS256 tokens.
type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

type IssuerOption func(*Issuer)

// WithClock replaces time.Now, both when minting and when checking expiry.
func WithClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) { i.now = now }
}

func NewIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, opts ...IssuerOption) *Issuer {
	i := &Issuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Issuer) IssueAccess(userID string) (string, error) {
	return i.issue(userID, KindAccess)
}

func (i *Issuer) IssueRefresh(userID string) (string, error) {
	return i.issue(userID, KindRefresh)
}

// TTL returns the lifetime of tokens of the given kind.
func (i *Issuer) TTL(kind Kind) time.Duration {
	if kind == KindRefresh {
		return i.refreshTTL
	}
	return i.accessTTL
}

func (i *Issuer) secret(kind Kind) ([]byte, error) {
	switch kind {
	case KindAccess:
		return i.accessSecret, nil
	case KindRefresh:
		return i.refreshSecret, nil
	default:
		return nil, fmt.Errorf("unknown token kind %q", kind)
	}
}

func (i *Issuer) issue(userID string, kind Kind) (string, error) {
	secret, err := i.secret(kind)
	if err != nil {
		return "", err
	}

	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.TTL(kind))),
		},
		UserID: userID,
		Kind:   kind,
	})

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

// Verify checks signature, algorithm, kind and expiry. Every failure is
// reported as common.ErrInvalidToken.
func (i *Issuer) Verify(tokenString string, kind Kind) (TokenInfo, error) {
	secret, err := i.secret(kind)
	if err != nil {
		return TokenInfo{}, common.ErrInvalidToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return TokenInfo{}, common.ErrInvalidToken
	}

	if claims.Kind != kind || claims.UserID == "" {
		return TokenInfo{}, common.ErrInvalidToken
	}

	info := TokenInfo{UserID: claims.UserID}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, nil
}
