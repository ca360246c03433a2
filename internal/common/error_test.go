package common

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_UnwrapsToKind(t *testing.T) {
	err := NewError(ErrorConflict, "user with email or username already exists")

	assert.ErrorIs(t, err, ErrorConflict)
	assert.NotErrorIs(t, err, ErrorNotFound)
	assert.Equal(t, "already exists: user with email or username already exists", err.Error())
	assert.Equal(t, "user with email or username already exists", Message(err, "fallback"))
}

func TestMessage_Fallback(t *testing.T) {
	assert.Equal(t, "fallback", Message(errors.New("boom"), "fallback"))
	assert.Equal(t, "fallback", Message(NewError(ErrorInternal, ""), "fallback"))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"not found passes", ErrorNotFound, ErrorNotFound},
		{"typed passes", NewError(ErrorInvalidInput, "x"), ErrorInvalidInput},
		{"deadline is unavailable", context.DeadlineExceeded, ErrorUnavailable},
		{"other is internal", errors.New("db down"), ErrorInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.in)
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.in)
		})
	}

	assert.NoError(t, Classify(nil))
}
