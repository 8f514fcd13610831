// internal/auth/devtoken_test.go
package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDevTokenRoundTrip(t *testing.T) {
	require.NoError(t, Init())

	token, err := CreateDevToken(time.Hour)
	require.NoError(t, err)
	assert.NoError(t, AuthenticateDevToken(token))
}

func TestDevTokenWithoutExpiry(t *testing.T) {
	require.NoError(t, Init())

	token, err := CreateDevToken(0)
	require.NoError(t, err)
	assert.NoError(t, AuthenticateDevToken(token))
}

func TestDevTokenRejectsGarbage(t *testing.T) {
	require.NoError(t, Init())
	assert.Error(t, AuthenticateDevToken("not-a-token"))
}

func TestDevTokenRejectsForeignKey(t *testing.T) {
	require.NoError(t, Init())
	token, err := CreateDevToken(time.Hour)
	require.NoError(t, err)

	// Rotating the key pair invalidates everything minted before.
	require.NoError(t, Init())
	assert.Error(t, AuthenticateDevToken(token))
}

func TestDevTokenRejectsWrongSubject(t *testing.T) {
	require.NoError(t, Init())

	claims := jwt.MapClaims{"sub": "someone-else"}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(privateKey)
	require.NoError(t, err)

	assert.Error(t, AuthenticateDevToken(signed))
}

func TestDevTokenRejectsExpired(t *testing.T) {
	require.NoError(t, Init())

	claims := jwt.MapClaims{
		"sub": devSubject,
		"exp": time.Now().Add(-time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(privateKey)
	require.NoError(t, err)

	assert.Error(t, AuthenticateDevToken(signed))
}
