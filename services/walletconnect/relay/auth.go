package relay

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-varint"
)

const (
	didPrefix = "did:key:"
	// multicodec code of an ed25519 public key
	ed25519PubCode = 0xed

	authTokenTTL = 24 * time.Hour
)

var ErrInvalidDID = errors.New("invalid did:key")

// EncodeDIDKey renders an ed25519 public key as a did:key identifier.
func EncodeDIDKey(pub ed25519.PublicKey) (string, error) {
	prefix := varint.ToUvarint(ed25519PubCode)
	encoded, err := multibase.Encode(multibase.Base58BTC, append(prefix, pub...))
	if err != nil {
		return "", err
	}
	return didPrefix + encoded, nil
}

// DecodeDIDKey is the inverse of EncodeDIDKey.
func DecodeDIDKey(did string) (ed25519.PublicKey, error) {
	if !strings.HasPrefix(did, didPrefix) {
		return nil, ErrInvalidDID
	}
	_, data, err := multibase.Decode(strings.TrimPrefix(did, didPrefix))
	if err != nil {
		return nil, err
	}
	code, n, err := varint.FromUvarint(data)
	if err != nil {
		return nil, err
	}
	if code != ed25519PubCode || len(data[n:]) != ed25519.PublicKeySize {
		return nil, ErrInvalidKeyLength
	}
	return ed25519.PublicKey(data[n:]), nil
}

// authClaims are the relay auth claims. aud is a plain string, which the
// registered claims would encode as an array.
type authClaims struct {
	Issuer    string `json:"iss"`
	Subject   string `json:"sub"`
	Audience  string `json:"aud"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

func (c authClaims) Valid() error {
	if time.Now().Unix() > c.ExpiresAt {
		return jwt.ErrTokenExpired
	}
	return nil
}

// SignAuthToken issues the EdDSA JWT the relay expects in the auth query
// parameter.
func SignAuthToken(key ed25519.PrivateKey, audience string, now time.Time) (string, error) {
	issuer, err := EncodeDIDKey(key.Public().(ed25519.PublicKey))
	if err != nil {
		return "", err
	}
	subject := make([]byte, 32)
	if _, err := rand.Read(subject); err != nil {
		return "", err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, authClaims{
		Issuer:    issuer,
		Subject:   hex.EncodeToString(subject),
		Audience:  audience,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(authTokenTTL).Unix(),
	})
	return token.SignedString(key)
}
