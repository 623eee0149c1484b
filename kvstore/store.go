// Package kvstore persists opaque blobs by key. The connector keeps every
// piece of durable state (session record, TonConnect sessions, relay
// metadata) as a JSON document under a fixed key.
package kvstore

import (
	"encoding/json"
	"errors"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("kvstore: key not found")

// Store is a flat key value store.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
	Close() error
}

// GetJSON decodes the value stored at key into v. The boolean is false when
// the key does not exist, in which case v is left untouched.
func GetJSON(s Store, key string, v interface{}) (bool, error) {
	data, err := s.Get(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON encodes v and stores it at key.
func SetJSON(s Store, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Set(key, data)
}
