package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTManager_RoundTrip(t *testing.T) {
	m := NewJWTManager("secret", "ai-tutor")

	token, err := m.GenerateToken("user-1", "student", "access", time.Minute)
	require.NoError(t, err)

	claims, err := m.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "student", claims.Role)
	assert.Equal(t, "access", claims.Type)
	assert.Equal(t, "ai-tutor", claims.Issuer)
}

func TestJWTManager_Expired(t *testing.T) {
	m := NewJWTManager("secret", "ai-tutor")
	token, err := m.GenerateToken("user-1", "student", "access", -time.Minute)
	require.NoError(t, err)

	_, err = m.ParseToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTManager_WrongSecret(t *testing.T) {
	token, err := NewJWTManager("a", "x").GenerateToken("user-1", "student", "access", time.Minute)
	require.NoError(t, err)

	_, err = NewJWTManager("b", "x").ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
