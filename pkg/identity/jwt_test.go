package identity

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	v, err := NewJWTVerifier("secret", "ridemate", time.Hour)
	require.NoError(t, err)

	token, err := v.GenerateToken("user-1", "a@example.com", "Ana")
	require.NoError(t, err)

	id, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, &Identity{UserID: "user-1", Email: "a@example.com", Name: "Ana"}, id)
}

func TestJWTRejectsBadTokens(t *testing.T) {
	v, err := NewJWTVerifier("secret", "ridemate", time.Hour)
	require.NoError(t, err)
	ctx := context.Background()

	other, err := NewJWTVerifier("other-secret", "ridemate", time.Hour)
	require.NoError(t, err)
	forged, err := other.GenerateToken("user-1", "", "")
	require.NoError(t, err)
	_, err = v.Verify(ctx, forged)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expiredIssuer, err := NewJWTVerifier("secret", "ridemate", -time.Minute)
	require.NoError(t, err)
	expired, err := expiredIssuer.GenerateToken("user-1", "", "")
	require.NoError(t, err)
	_, err = v.Verify(ctx, expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer, err := NewJWTVerifier("secret", "someone-else", time.Hour)
	require.NoError(t, err)
	token, err := wrongIssuer.GenerateToken("user-1", "", "")
	require.NoError(t, err)
	_, err = v.Verify(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1", Issuer: "ridemate"}})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = v.Verify(ctx, unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.Verify(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewJWTVerifierRequiresSecret(t *testing.T) {
	_, err := NewJWTVerifier("", "ridemate", time.Hour)
	assert.Error(t, err)
}
