package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionTokenRoundTrip(t *testing.T) {
	st, err := NewSessionToken("secret", "user-123", 7)
	require.NoError(t, err)
	assert.NotEmpty(t, st.Token)
	assert.WithinDuration(t, time.Now().UTC().Add(7*24*time.Hour), st.Exp, time.Minute)

	sub, err := ParseSessionToken("secret", st.Token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", sub)
}

func TestParseSessionTokenWrongSecret(t *testing.T) {
	st, err := NewSessionToken("secret", "user-123", 7)
	require.NoError(t, err)

	_, err = ParseSessionToken("other-secret", st.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseSessionTokenExpired(t *testing.T) {
	claims := jwt.MapClaims{
		"sub": "user-123",
		"exp": time.Now().UTC().Add(-time.Hour).Unix(),
		"iat": time.Now().UTC().Add(-2 * time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = ParseSessionToken("secret", signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseSessionTokenRejectsNonHMAC(t *testing.T) {
	// alg=none tokens must never verify.
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "user-123"})
	signed, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ParseSessionToken("secret", signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseSessionTokenMissingSubject(t *testing.T) {
	claims := jwt.MapClaims{
		"exp": time.Now().UTC().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = ParseSessionToken("secret", signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseSessionTokenGarbage(t *testing.T) {
	_, err := ParseSessionToken("secret", "not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewOpaqueToken(t *testing.T) {
	a, err := NewOpaqueToken()
	require.NoError(t, err)
	b, err := NewOpaqueToken()
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}
