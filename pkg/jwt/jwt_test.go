package jwt

import (
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	m, err := NewManager("secret", "classroom", time.Hour)
	require.NoError(t, err)

	tok, err := m.GenerateAccessToken("alice")
	require.NoError(t, err)

	claims, err := m.ValidateToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.UserID)
}

func TestValidateExpired(t *testing.T) {
	m, err := NewManager("secret", "", time.Minute)
	require.NoError(t, err)
	m.now = func() time.Time { return time.Now().Add(-time.Hour) }

	tok, err := m.GenerateAccessToken("alice")
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.ValidateToken(tok)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateWrongSecret(t *testing.T) {
	issuer, err := NewManager("one", "", time.Hour)
	require.NoError(t, err)
	verifier, err := NewManager("two", "", time.Hour)
	require.NoError(t, err)

	tok, err := issuer.GenerateAccessToken("alice")
	require.NoError(t, err)

	_, err = verifier.ValidateToken(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateWrongIssuer(t *testing.T) {
	other, err := NewManager("secret", "someone-else", time.Hour)
	require.NoError(t, err)
	m, err := NewManager("secret", "classroom", time.Hour)
	require.NoError(t, err)

	tok, err := other.GenerateAccessToken("alice")
	require.NoError(t, err)

	_, err = m.ValidateToken(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsRefreshAndGarbage(t *testing.T) {
	m, err := NewManager("secret", "", time.Hour)
	require.NoError(t, err)

	refresh := gojwt.NewWithClaims(gojwt.SigningMethodHS256, &Claims{
		RegisteredClaims: gojwt.RegisteredClaims{
			ExpiresAt: gojwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID: "alice",
		Type:   "refresh",
	})
	signed, err := refresh.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = m.ValidateToken(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewManagerRequiresSecret(t *testing.T) {
	_, err := NewManager("", "", time.Hour)
	assert.ErrorIs(t, err, ErrMissingKey)
}
