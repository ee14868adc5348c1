package auth

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	tok, err := NewToken("secret", 42, 60)
	require.NoError(t, err)

	claims, err := ParseToken("secret", tok)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "chatterbox", claims.Issuer)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	tok, err := NewToken("secret", 42, 60)
	require.NoError(t, err)

	_, err = ParseToken("other-secret", tok)
	assert.Error(t, err)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	tok, err := NewToken("secret", 42, -1)
	require.NoError(t, err)

	_, err = ParseToken("secret", tok)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := ParseToken("secret", "not.a.token")
	assert.Error(t, err)
}

func TestParseRejectsWrongAlgorithm(t *testing.T) {
	// alg "none" style token must be refused by the HMAC check
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 42})
	signed, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ParseToken("secret", signed)
	assert.Error(t, err)
}
