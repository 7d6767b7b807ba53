package auth

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionTokenRoundTrip(t *testing.T) {
	t.Setenv("JWT_SECRET", "session-test-secret")
	require.NoError(t, InitJWTSecret())

	token, err := GenerateJWT(42, "alice@example.com")
	require.NoError(t, err)

	parsed, err := VerifyJWT(token)
	require.NoError(t, err)

	claims, ok := parsed.Claims.(jwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, float64(42), claims["user_id"])
	assert.Equal(t, "alice@example.com", claims["email"])
}

func TestVerifyJWTRejectsTampering(t *testing.T) {
	t.Setenv("JWT_SECRET", "session-test-secret")
	require.NoError(t, InitJWTSecret())

	token, err := GenerateJWT(1, "a@example.com")
	require.NoError(t, err)

	_, err = VerifyJWT(token + "x")
	assert.Error(t, err)
}

func TestInitJWTSecretRequiresEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	assert.Error(t, InitJWTSecret())
}
