package persistence

import (
	"errors"
	"sync"

	"github.com/status-im/dapp-connector/kvstore"
	"github.com/status-im/dapp-connector/services/connector/chain"
	"github.com/status-im/dapp-connector/services/connector/origin"
)

const sessionKey = "connector_session"

var ErrNoSession = errors.New("no active session")

// Database keeps the session record in a kvstore. Every mutation replaces the
// whole record; the mutex only serializes mutations issued through this
// instance.
type Database struct {
	store        kvstore.Store
	historyLimit int
	mu           sync.Mutex
}

func NewDatabase(store kvstore.Store, historyLimit int) *Database {
	return &Database{
		store:        store,
		historyLimit: historyLimit,
	}
}

// GetSessionData returns nil when nobody is logged in.
func (db *Database) GetSessionData() (*SessionRecord, error) {
	var session SessionRecord
	found, err := kvstore.GetJSON(db.store, sessionKey, &session)
	if err != nil || !found {
		return nil, err
	}
	session.normalize()
	return &session, nil
}

func (db *Database) SetSessionData(session *SessionRecord) error {
	if session == nil {
		return db.DeleteSessionData()
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	return kvstore.SetJSON(db.store, sessionKey, session)
}

func (db *Database) DeleteSessionData() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.store.Delete(sessionKey)
}

func (db *Database) mutate(fn func(session *SessionRecord) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	var session SessionRecord
	found, err := kvstore.GetJSON(db.store, sessionKey, &session)
	if err != nil {
		return err
	}
	if !found {
		return ErrNoSession
	}
	session.normalize()

	if err := fn(&session); err != nil {
		return err
	}
	return kvstore.SetJSON(db.store, sessionKey, &session)
}

// GetConnectedSites returns the connection records keyed by origin.
func (db *Database) GetConnectedSites() (map[string]ConnectionRecord, error) {
	session, err := db.GetSessionData()
	if err != nil || session == nil {
		return map[string]ConnectionRecord{}, err
	}
	return session.Connections, nil
}

func (db *Database) SetConnectedSites(sites map[string]ConnectionRecord) error {
	return db.mutate(func(session *SessionRecord) error {
		session.Connections = sites
		if session.Connections == nil {
			session.Connections = map[string]ConnectionRecord{}
		}
		return nil
	})
}

// AddConnectedSite binds wallet and chainID to the origin for family,
// replacing any previous binding of that family.
func (db *Database) AddConnectedSite(o origin.Origin, family chain.Family, wallet chain.Wallet, chainID int64) error {
	key := o.Key()
	if key == "" {
		return origin.ErrMissingURL
	}
	return db.mutate(func(session *SessionRecord) error {
		record, ok := session.Connections[key]
		if !ok {
			record = ConnectionRecord{Connections: map[chain.Family]Connection{}}
		}
		if o.Title != "" {
			record.Title = o.Title
		}
		if o.FaviconURL != "" {
			record.ImageURL = o.FaviconURL
		}
		wallet.ChainID = chainID
		record.Connections[family] = Connection{Wallet: wallet, ChainID: chainID}
		session.Connections[key] = record
		return nil
	})
}

// RemoveConnectedSite drops the given families of the origin, or all of them
// when none are given. The record disappears with its last family.
func (db *Database) RemoveConnectedSite(originKey string, families ...chain.Family) error {
	return db.mutate(func(session *SessionRecord) error {
		record, ok := session.Connections[originKey]
		if !ok {
			return nil
		}
		if len(families) == 0 {
			delete(session.Connections, originKey)
			return nil
		}
		for _, f := range families {
			delete(record.Connections, f)
		}
		if len(record.Connections) == 0 {
			delete(session.Connections, originKey)
			return nil
		}
		session.Connections[originKey] = record
		return nil
	})
}

// Connection returns nil when the origin is not connected for family.
func (db *Database) Connection(originKey string, family chain.Family) (*Connection, error) {
	sites, err := db.GetConnectedSites()
	if err != nil {
		return nil, err
	}
	record, ok := sites[originKey]
	if !ok {
		return nil, nil
	}
	conn, ok := record.Connections[family]
	if !ok {
		return nil, nil
	}
	return &conn, nil
}

// UpdateWallets rewrites every connection and selection of family whose
// account matches one of wallets. Chain bindings are kept.
func (db *Database) UpdateWallets(family chain.Family, wallets []chain.Wallet) error {
	return db.mutate(func(session *SessionRecord) error {
		for key, record := range session.Connections {
			conn, ok := record.Connections[family]
			if !ok {
				continue
			}
			for _, w := range wallets {
				if conn.Wallet.SameAccount(w) {
					w.ChainID = conn.ChainID
					conn.Wallet = w
					record.Connections[family] = conn
					break
				}
			}
			session.Connections[key] = record
		}

		for _, w := range wallets {
			if selected := session.SelectedWallet.For(family); selected != nil && selected.SameAccount(w) {
				w.ChainID = selected.ChainID
				session.SelectedWallet.set(family, w)
			}
		}
		return nil
	})
}

func (db *Database) SelectWallet(family chain.Family, wallet chain.Wallet) error {
	return db.mutate(func(session *SessionRecord) error {
		session.SelectedWallet.set(family, wallet)
		return nil
	})
}

// SelectedWallet returns nil when no wallet of family is selected.
func (db *Database) SelectedWallet(family chain.Family) (*chain.Wallet, error) {
	session, err := db.GetSessionData()
	if err != nil || session == nil {
		return nil, err
	}
	return session.SelectedWallet.For(family), nil
}

// UpdateChainID persists a chain switch into the selected wallet of family
// and into the origin's connection.
func (db *Database) UpdateChainID(originKey string, family chain.Family, chainID int64) error {
	return db.mutate(func(session *SessionRecord) error {
		if selected := session.SelectedWallet.For(family); selected != nil {
			w := *selected
			w.ChainID = chainID
			session.SelectedWallet.set(family, w)
		}
		record, ok := session.Connections[originKey]
		if !ok {
			return nil
		}
		if conn, ok := record.Connections[family]; ok {
			conn.ChainID = chainID
			conn.Wallet.ChainID = chainID
			record.Connections[family] = conn
		}
		return nil
	})
}

// SetCurrentTab records the foreground dApp, nil when no dApp is open.
// Opening a tab also appends it to the browser history.
func (db *Database) SetCurrentTab(o *origin.Origin) error {
	return db.mutate(func(session *SessionRecord) error {
		session.CurrentTab = o
		if o != nil && o.URL != "" {
			session.addHistory(*o, db.historyLimit)
		}
		return nil
	})
}

func (db *Database) CurrentTab() (*origin.Origin, error) {
	session, err := db.GetSessionData()
	if err != nil || session == nil {
		return nil, err
	}
	return session.CurrentTab, nil
}

func (db *Database) AddBrowserHistory(o origin.Origin) error {
	return db.mutate(func(session *SessionRecord) error {
		session.addHistory(o, db.historyLimit)
		return nil
	})
}

func (db *Database) BrowserHistory() ([]origin.Origin, error) {
	session, err := db.GetSessionData()
	if err != nil || session == nil {
		return nil, err
	}
	return session.BrowserHistory, nil
}
