package persistence

import (
	"github.com/status-im/dapp-connector/services/connector/chain"
	"github.com/status-im/dapp-connector/services/connector/origin"
)

type User struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Connection binds one wallet and chain to an origin for a family.
type Connection struct {
	Wallet  chain.Wallet `json:"wallet"`
	ChainID int64        `json:"chainId"`
}

// ConnectionRecord is everything known about a connected origin.
type ConnectionRecord struct {
	Title       string                      `json:"title"`
	ImageURL    string                      `json:"imageUrl"`
	Connections map[chain.Family]Connection `json:"connections"`
}

// SelectedWallet keeps the active wallet per family plus the most recently
// selected one overall.
type SelectedWallet struct {
	Latest *chain.Wallet `json:"latest,omitempty"`
	Evm    *chain.Wallet `json:"evm,omitempty"`
	Svm    *chain.Wallet `json:"svm,omitempty"`
	Tvm    *chain.Wallet `json:"tvm,omitempty"`
}

func (s SelectedWallet) For(family chain.Family) *chain.Wallet {
	switch family {
	case chain.Evm:
		return s.Evm
	case chain.Solana:
		return s.Svm
	case chain.Ton:
		return s.Tvm
	}
	return nil
}

func (s *SelectedWallet) set(family chain.Family, w chain.Wallet) {
	wallet := &w
	switch family {
	case chain.Evm:
		s.Evm = wallet
	case chain.Solana:
		s.Svm = wallet
	case chain.Ton:
		s.Tvm = wallet
	default:
		return
	}
	s.Latest = wallet
}

// SessionRecord is the state of the logged in user.
type SessionRecord struct {
	User           *User                       `json:"user"`
	SelectedWallet SelectedWallet              `json:"selectedWallet"`
	CurrentTab     *origin.Origin              `json:"currentTab,omitempty"`
	Connections    map[string]ConnectionRecord `json:"connections"`
	BrowserHistory []origin.Origin             `json:"browserHistory"`
}

// NewSessionRecord starts an empty session for user.
func NewSessionRecord(user *User) *SessionRecord {
	return &SessionRecord{
		User:        user,
		Connections: map[string]ConnectionRecord{},
	}
}

func (s *SessionRecord) normalize() {
	if s.Connections == nil {
		s.Connections = map[string]ConnectionRecord{}
	}
	for key, record := range s.Connections {
		if record.Connections == nil {
			record.Connections = map[chain.Family]Connection{}
			s.Connections[key] = record
		}
	}
}

// addHistory appends o, dropping an older entry with the same url and
// trimming from the front beyond limit.
func (s *SessionRecord) addHistory(o origin.Origin, limit int) {
	history := make([]origin.Origin, 0, len(s.BrowserHistory)+1)
	for _, h := range s.BrowserHistory {
		if h.URL != o.URL {
			history = append(history, h)
		}
	}
	history = append(history, o)
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	s.BrowserHistory = history
}
