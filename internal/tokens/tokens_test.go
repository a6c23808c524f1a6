package tokens

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret-32-bytes-should-be-long-enough"))
	require.NoError(t, err)
	return s
}

func TestExpiresAt(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	tok := sign(t, jwt.MapClaims{"sub": "uid-1", "exp": exp.Unix()})

	got, err := ExpiresAt(tok)
	require.NoError(t, err)
	require.True(t, exp.Equal(got))
}

func TestExpiresAt_IgnoresSignatureAndExpiry(t *testing.T) {
	// already expired, signed with a key we never check
	tok := sign(t, jwt.MapClaims{"exp": time.Now().Add(-time.Hour).Unix()})
	_, err := ExpiresAt(tok)
	require.NoError(t, err)

	ttl, err := RemainingTTL(tok, time.Now())
	require.NoError(t, err)
	require.Zero(t, ttl)
}

func TestRemainingTTL(t *testing.T) {
	now := time.Now()
	tok := sign(t, jwt.MapClaims{"exp": now.Add(10 * time.Minute).Unix()})
	ttl, err := RemainingTTL(tok, now)
	require.NoError(t, err)
	require.InDelta(t, (10 * time.Minute).Seconds(), ttl.Seconds(), 1)
}

func TestExpiresAt_NoExp(t *testing.T) {
	_, err := ExpiresAt(sign(t, jwt.MapClaims{"sub": "x"}))
	require.ErrorIs(t, err, ErrNoExpiry)
}

func TestUnverifiedClaims_Malformed(t *testing.T) {
	_, err := UnverifiedClaims("not-a-jwt")
	require.Error(t, err)
}

func TestUnverifiedClaims_AlgNone(t *testing.T) {
	headerEnc := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none"}`))
	payloadEnc := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"u-none","user_id":"u-none"}`))
	claims, err := UnverifiedClaims(headerEnc + "." + payloadEnc + ".")
	require.NoError(t, err)
	require.Equal(t, "u-none", claims["sub"])
}
