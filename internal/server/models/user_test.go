package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUser_PublicDropsSecrets(t *testing.T) {
	token := "refresh"
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	u := &User{
		ID:           "id-1",
		Username:     "alice",
		Email:        "alice@x.com",
		FullName:     "Alice",
		Avatar:       "http://cdn/a.png",
		PasswordHash: "$2a$10$hash",
		RefreshToken: &token,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	b, err := json.Marshal(u.Public())
	require.NoError(t, err)

	assert.NotContains(t, string(b), "hash")
	assert.NotContains(t, string(b), "refresh")
	assert.Contains(t, string(b), `"username":"alice"`)
	assert.Contains(t, string(b), `"_id":"id-1"`)
}

func TestUserUpdate_IsEmpty(t *testing.T) {
	assert.True(t, UserUpdate{}.IsEmpty())

	name := "Bob"
	assert.False(t, UserUpdate{FullName: &name}.IsEmpty())
	assert.False(t, UserUpdate{ClearRefreshToken: true}.IsEmpty())
}
