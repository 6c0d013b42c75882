package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthmetrix/dynamic-consent/internal/common"
)

var testSecret = []byte("0123456789abcdef")

func issueToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)
	return token
}

func TestHMACVerifier_Verify(t *testing.T) {
	v := NewHMACVerifier(testSecret, "https://issuer.example.com")

	token := issueToken(t, jwt.MapClaims{
		"iss":     "https://issuer.example.com",
		"sub":     "patient-1",
		"exp":     time.Now().Add(time.Hour).Unix(),
		"site":    "berlin",
		"attempt": 3.0,
	})

	identity, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "patient-1", identity.ExternalRefID)
	assert.Equal(t, map[string]string{"site": "berlin"}, identity.Metadata)
}

func TestHMACVerifier_RejectsBadSignature(t *testing.T) {
	v := NewHMACVerifier(testSecret, "https://issuer.example.com")

	other, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": "https://issuer.example.com",
		"sub": "patient-1",
	}).SignedString([]byte("another secret!!"))
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), other)
	assert.True(t, errors.Is(err, common.ErrUnauthorized))
}

func TestHMACVerifier_RejectsExpired(t *testing.T) {
	v := NewHMACVerifier(testSecret, "https://issuer.example.com")

	token := issueToken(t, jwt.MapClaims{
		"iss": "https://issuer.example.com",
		"sub": "patient-1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	_, err := v.Verify(context.Background(), token)
	assert.True(t, errors.Is(err, common.ErrUnauthorized))
}

func TestHMACVerifier_RequiresSubject(t *testing.T) {
	v := NewHMACVerifier(testSecret, "https://issuer.example.com")

	token := issueToken(t, jwt.MapClaims{"iss": "https://issuer.example.com"})

	_, err := v.Verify(context.Background(), token)
	assert.True(t, errors.Is(err, common.ErrUnauthorized))
}

func TestVerifyingExtractor_DispatchesByIssuer(t *testing.T) {
	e := NewVerifyingExtractor(NewHMACVerifier(testSecret, "https://issuer.example.com"))

	token := issueToken(t, jwt.MapClaims{
		"iss": "https://issuer.example.com",
		"sub": "patient-1",
	})

	identity, err := e.Extract(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "patient-1", identity.ExternalRefID)
}

func TestVerifyingExtractor_UnknownIssuer(t *testing.T) {
	e := NewVerifyingExtractor(NewHMACVerifier(testSecret, "https://issuer.example.com"))

	token := issueToken(t, jwt.MapClaims{
		"iss": "https://somewhere.else",
		"sub": "patient-1",
	})

	_, err := e.Extract(context.Background(), token)
	assert.True(t, errors.Is(err, common.ErrUnauthorized))
}

func TestVerifyingExtractor_GarbageToken(t *testing.T) {
	e := NewVerifyingExtractor(NewHMACVerifier(testSecret, "https://issuer.example.com"))

	_, err := e.Extract(context.Background(), "not a jwt")
	assert.True(t, errors.Is(err, common.ErrUnauthorized))
}

func TestPassthroughExtractor(t *testing.T) {
	identity, err := PassthroughExtractor{}.Extract(context.Background(), "patient-raw")
	require.NoError(t, err)
	assert.Equal(t, "patient-raw", identity.ExternalRefID)
	assert.Nil(t, identity.Metadata)
}
