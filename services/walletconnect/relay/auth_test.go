package relay

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"
)

func TestDIDKeyRoundTrip(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	did, err := EncodeDIDKey(pub)
	require.NoError(t, err)
	require.Regexp(t, "^did:key:z6Mk", did)

	decoded, err := DecodeDIDKey(did)
	require.NoError(t, err)
	require.Equal(t, pub, decoded)

	_, err = DecodeDIDKey("did:web:example.com")
	require.ErrorIs(t, err, ErrInvalidDID)
}

func TestSignAuthToken(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	signed, err := SignAuthToken(priv, DefaultRelayURL, time.Now())
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(signed, claims, func(token *jwt.Token) (interface{}, error) {
		require.Equal(t, "EdDSA", token.Method.Alg())
		return pub, nil
	})
	require.NoError(t, err)
	require.True(t, token.Valid)

	require.Equal(t, DefaultRelayURL, claims["aud"])
	require.Len(t, claims["sub"], 64)

	issuer, err := DecodeDIDKey(claims["iss"].(string))
	require.NoError(t, err)
	require.Equal(t, pub, issuer)
}

func TestExpiredAuthClaims(t *testing.T) {
	claims := authClaims{ExpiresAt: time.Now().Add(-time.Minute).Unix()}
	require.ErrorIs(t, claims.Valid(), jwt.ErrTokenExpired)
}
