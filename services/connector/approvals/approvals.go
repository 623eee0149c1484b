// Package approvals tracks requests handed to the user for a decision.
package approvals

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/status-im/dapp-connector/services/connector/chain"
)

var (
	ErrDuplicateRequest = errors.New("request is already pending approval")
	ErrApprovalNotFound = errors.New("no pending approval for request")
	ErrEmptyRequestID   = errors.New("empty request id")
)

// Kind selects the approval screen.
type Kind string

const (
	KindConnection  Kind = "connection"
	KindMessage     Kind = "message"
	KindTransaction Kind = "transaction"
)

// Transport is the path the response must take back to the dApp.
type Transport string

const (
	TransportEmbedded      Transport = "embedded"
	TransportWalletConnect Transport = "walletconnect"
	TransportTonConnect    Transport = "tonconnect"
)

// Entry is one request waiting for the user.
type Entry[T any] struct {
	RequestID string
	Family    chain.Family
	Transport Transport
	Kind      Kind
	CreatedAt time.Time
	Request   T
}

// Table correlates approval outcomes with their requests. An entry is
// taken at most once, either by a resolution or by its expiry.
type Table[T any] struct {
	cache     *ttlcache.Cache[string, Entry[T]]
	timeout   time.Duration
	onTimeout func(Entry[T])
	now       func() time.Time

	mu      sync.Mutex
	running bool
}

// NewTable creates a table. A zero timeout keeps entries until resolved.
func NewTable[T any](timeout time.Duration, onTimeout func(Entry[T])) *Table[T] {
	t := &Table[T]{
		cache:     ttlcache.New[string, Entry[T]](ttlcache.WithDisableTouchOnHit[string, Entry[T]]()),
		timeout:   timeout,
		onTimeout: onTimeout,
		now:       time.Now,
	}
	// runs with the cache locked
	t.cache.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, Entry[T]]) {
		if reason == ttlcache.EvictionReasonExpired && t.onTimeout != nil {
			go t.onTimeout(item.Value())
		}
	})
	return t
}

// Add registers e. CreatedAt is filled in when zero.
func (t *Table[T]) Add(e Entry[T]) error {
	if e.RequestID == "" {
		return ErrEmptyRequestID
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cache.Has(e.RequestID) {
		return ErrDuplicateRequest
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = t.now()
	}

	ttl := ttlcache.NoTTL
	if t.timeout > 0 {
		ttl = t.timeout
		if !t.running {
			go t.cache.Start()
			t.running = true
		}
	}
	t.cache.Set(e.RequestID, e, ttl)
	return nil
}

// Take removes and returns the entry for requestID.
func (t *Table[T]) Take(requestID string) (Entry[T], error) {
	item, ok := t.cache.GetAndDelete(requestID)
	if !ok || item == nil {
		return Entry[T]{}, ErrApprovalNotFound
	}
	return item.Value(), nil
}

func (t *Table[T]) Get(requestID string) (Entry[T], bool) {
	item := t.cache.Get(requestID)
	if item == nil {
		return Entry[T]{}, false
	}
	return item.Value(), true
}

func (t *Table[T]) Len() int {
	return len(t.Pending())
}

// Pending lists entries oldest first.
func (t *Table[T]) Pending() []Entry[T] {
	items := t.cache.Items()
	out := make([]Entry[T], 0, len(items))
	for _, item := range items {
		if item.IsExpired() {
			continue
		}
		out = append(out, item.Value())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Clear drops every entry without firing timeouts, stops the expiry loop
// and returns what was dropped.
func (t *Table[T]) Clear() []Entry[T] {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := t.Pending()
	t.cache.DeleteAll()
	if t.running {
		t.cache.Stop()
		t.running = false
	}
	return out
}
