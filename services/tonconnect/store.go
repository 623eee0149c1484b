package tonconnect

import (
	"sync"

	"github.com/status-im/dapp-connector/kvstore"
)

const (
	sessionsKey    = "tonconnect_sessions"
	lastEventIDKey = "tonconnect_last_event_id"
)

// store keeps bridge sessions keyed by dApp url and the id of the last
// processed bridge event.
type store struct {
	kv kvstore.Store
	mu sync.Mutex
}

func newStore(kv kvstore.Store) *store {
	return &store{kv: kv}
}

func (s *store) connections() (map[string]*Connection, error) {
	out := make(map[string]*Connection)
	_, err := kvstore.GetJSON(s.kv, sessionsKey, &out)
	return out, err
}

func (s *store) saveConnections(conns map[string]*Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return kvstore.SetJSON(s.kv, sessionsKey, conns)
}

func (s *store) lastEventID() (string, error) {
	var id string
	_, err := kvstore.GetJSON(s.kv, lastEventIDKey, &id)
	return id, err
}

func (s *store) saveLastEventID(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return kvstore.SetJSON(s.kv, lastEventIDKey, id)
}
