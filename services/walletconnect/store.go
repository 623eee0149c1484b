package walletconnect

import (
	"crypto/ed25519"
	"crypto/rand"
	"sync"

	"github.com/status-im/dapp-connector/kvstore"
)

const (
	clientKeyKey    = "walletconnect_client_key"
	pairingsKey     = "walletconnect_pairings"
	sessionsKey     = "walletconnect_sessions"
	dappMetadataKey = "walletconnect_dapp_metadata"
)

// store keeps pairings, sessions and the metadata of known dApps.
type store struct {
	kv kvstore.Store
	mu sync.Mutex
}

func newStore(kv kvstore.Store) *store {
	return &store{kv: kv}
}

// clientKey returns the relay identity key, creating it on first use.
func (s *store) clientKey() (ed25519.PrivateKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var seed []byte
	found, err := kvstore.GetJSON(s.kv, clientKeyKey, &seed)
	if err != nil {
		return nil, err
	}
	if found && len(seed) == ed25519.SeedSize {
		return ed25519.NewKeyFromSeed(seed), nil
	}

	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	if err := kvstore.SetJSON(s.kv, clientKeyKey, key.Seed()); err != nil {
		return nil, err
	}
	return key, nil
}

func (s *store) pairings() (map[string]*Pairing, error) {
	out := make(map[string]*Pairing)
	_, err := kvstore.GetJSON(s.kv, pairingsKey, &out)
	return out, err
}

func (s *store) sessions() (map[string]*Session, error) {
	out := make(map[string]*Session)
	_, err := kvstore.GetJSON(s.kv, sessionsKey, &out)
	return out, err
}

func (s *store) savePairings(pairings map[string]*Pairing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return kvstore.SetJSON(s.kv, pairingsKey, pairings)
}

func (s *store) saveSessions(sessions map[string]*Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return kvstore.SetJSON(s.kv, sessionsKey, sessions)
}

// saveMetadata records what a dApp declared about itself, keyed by url.
func (s *store) saveMetadata(m Metadata) error {
	if m.URL == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make(map[string]Metadata)
	if _, err := kvstore.GetJSON(s.kv, dappMetadataKey, &all); err != nil {
		return err
	}
	all[m.URL] = m
	return kvstore.SetJSON(s.kv, dappMetadataKey, all)
}

func (s *store) metadata(url string) (*Metadata, error) {
	all := make(map[string]Metadata)
	if _, err := kvstore.GetJSON(s.kv, dappMetadataKey, &all); err != nil {
		return nil, err
	}
	m, ok := all[url]
	if !ok {
		return nil, nil
	}
	return &m, nil
}
