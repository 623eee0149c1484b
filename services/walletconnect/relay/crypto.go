package relay

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

const (
	KeyLength = 32

	envelopeType0 byte = 0
	envelopeType1 byte = 1
)

var (
	ErrInvalidKeyLength    = errors.New("key must be 32 bytes")
	ErrEnvelopeTooShort    = errors.New("envelope is too short")
	ErrUnsupportedEnvelope = errors.New("unsupported envelope type")
)

// KeyPair is an X25519 key pair used to agree on session keys.
type KeyPair struct {
	Private []byte
	Public  []byte
}

func GenerateKeyPair() (*KeyPair, error) {
	private := make([]byte, curve25519.ScalarSize)
	if _, err := io.ReadFull(rand.Reader, private); err != nil {
		return nil, err
	}
	public, err := curve25519.X25519(private, curve25519.Basepoint)
	if err != nil {
		return nil, err
	}
	return &KeyPair{Private: private, Public: public}, nil
}

func (kp *KeyPair) PublicHex() string {
	return hex.EncodeToString(kp.Public)
}

// GenerateSymKey returns a random key for a new pairing.
func GenerateSymKey() ([]byte, error) {
	key := make([]byte, KeyLength)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// DeriveSymKey runs X25519 with the peer key and expands the shared secret
// with HKDF-SHA256.
func DeriveSymKey(private []byte, peerPublicHex string) ([]byte, error) {
	peerPublic, err := hex.DecodeString(peerPublicHex)
	if err != nil {
		return nil, err
	}
	if len(peerPublic) != KeyLength || len(private) != KeyLength {
		return nil, ErrInvalidKeyLength
	}
	shared, err := curve25519.X25519(private, peerPublic)
	if err != nil {
		return nil, err
	}
	key := make([]byte, KeyLength)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, nil, nil), key); err != nil {
		return nil, err
	}
	return key, nil
}

// Topic is the relay topic derived from a symmetric key.
func Topic(symKey []byte) string {
	sum := sha256.Sum256(symKey)
	return hex.EncodeToString(sum[:])
}

// Encrypt seals payload into a base64 type 0 envelope:
// type byte, 12 byte nonce, ciphertext.
func Encrypt(symKey []byte, payload []byte) (string, error) {
	aead, err := chacha20poly1305.New(symKey)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	out := make([]byte, 0, 1+len(nonce)+len(payload)+aead.Overhead())
	out = append(out, envelopeType0)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, payload, nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt opens a type 0 or type 1 envelope. Type 1 carries the sender
// public key in front of the nonce; the caller derives symKey from it.
func Decrypt(symKey []byte, message string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(message)
	if err != nil {
		return nil, err
	}
	if len(data) < 1 {
		return nil, ErrEnvelopeTooShort
	}

	offset := 1
	switch data[0] {
	case envelopeType0:
	case envelopeType1:
		offset += KeyLength
	default:
		return nil, ErrUnsupportedEnvelope
	}
	if len(data) < offset+chacha20poly1305.NonceSize {
		return nil, ErrEnvelopeTooShort
	}

	aead, err := chacha20poly1305.New(symKey)
	if err != nil {
		return nil, err
	}
	nonce := data[offset : offset+chacha20poly1305.NonceSize]
	return aead.Open(nil, nonce, data[offset+chacha20poly1305.NonceSize:], nil)
}
