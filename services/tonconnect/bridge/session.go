package bridge

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"

	"golang.org/x/crypto/nacl/box"
)

const (
	keySize   = 32
	nonceSize = 24
)

var (
	ErrInvalidClientID = errors.New("client id must be a hex encoded 32 byte key")
	ErrMessageTooShort = errors.New("bridge message is too short")
	ErrDecrypt         = errors.New("failed to decrypt bridge message")
)

// Session is the wallet side key pair of one bridge session. Its public key
// is the client id the bridge routes messages to.
type Session struct {
	public  [keySize]byte
	private [keySize]byte
}

func NewSession() (*Session, error) {
	public, private, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Session{public: *public, private: *private}, nil
}

func (s *Session) ClientID() string {
	return hex.EncodeToString(s.public[:])
}

func parseClientID(clientID string) (*[keySize]byte, error) {
	raw, err := hex.DecodeString(clientID)
	if err != nil || len(raw) != keySize {
		return nil, ErrInvalidClientID
	}
	var key [keySize]byte
	copy(key[:], raw)
	return &key, nil
}

// Encrypt seals message for the peer: a random 24 byte nonce followed by
// the box.
func (s *Session) Encrypt(message []byte, peerClientID string) ([]byte, error) {
	peer, err := parseClientID(peerClientID)
	if err != nil {
		return nil, err
	}
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, err
	}
	return box.Seal(nonce[:], message, &nonce, peer, &s.private), nil
}

func (s *Session) Decrypt(data []byte, peerClientID string) ([]byte, error) {
	peer, err := parseClientID(peerClientID)
	if err != nil {
		return nil, err
	}
	if len(data) < nonceSize+box.Overhead {
		return nil, ErrMessageTooShort
	}
	var nonce [nonceSize]byte
	copy(nonce[:], data[:nonceSize])
	plain, ok := box.Open(nil, data[nonceSize:], &nonce, peer, &s.private)
	if !ok {
		return nil, ErrDecrypt
	}
	return plain, nil
}

type sessionJSON struct {
	PublicKey string `json:"publicKey"`
	SecretKey string `json:"secretKey"`
}

func (s *Session) MarshalJSON() ([]byte, error) {
	return json.Marshal(sessionJSON{
		PublicKey: hex.EncodeToString(s.public[:]),
		SecretKey: hex.EncodeToString(s.private[:]),
	})
}

func (s *Session) UnmarshalJSON(data []byte) error {
	var raw sessionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	public, err := parseClientID(raw.PublicKey)
	if err != nil {
		return err
	}
	private, err := parseClientID(raw.SecretKey)
	if err != nil {
		return err
	}
	s.public = *public
	s.private = *private
	return nil
}
