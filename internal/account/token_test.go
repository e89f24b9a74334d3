package account

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer, err := NewTokenIssuer(testSecret, "prism", time.Hour)
	require.NoError(t, err)

	raw, err := issuer.Issue(42, "x@example.com")
	require.NoError(t, err)
	claims, err := issuer.Parse(raw)
	require.NoError(t, err)
	assert.EqualValues(t, 42, claims.UserID)
	assert.Equal(t, "x@example.com", claims.Email())
	assert.Equal(t, "prism", claims.Issuer)
}

func TestTokenIssuer_RejectsOtherAlgorithms(t *testing.T) {
	issuer, err := NewTokenIssuer(testSecret, "prism", time.Hour)
	require.NoError(t, err)

	claims := Claims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "x@example.com",
			Issuer:    "prism",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = issuer.Parse(hs512)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = issuer.Parse(none)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestTokenIssuer_RejectsWrongIssuer(t *testing.T) {
	a, err := NewTokenIssuer(testSecret, "prism", time.Hour)
	require.NoError(t, err)
	b, err := NewTokenIssuer(testSecret, "someone-else", time.Hour)
	require.NoError(t, err)

	raw, err := b.Issue(1, "x@example.com")
	require.NoError(t, err)
	_, err = a.Parse(raw)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestNewTokenIssuer_Validation(t *testing.T) {
	_, err := NewTokenIssuer("", "prism", time.Hour)
	assert.Error(t, err)
	_, err = NewTokenIssuer(testSecret, "prism", 0)
	assert.Error(t, err)
}
