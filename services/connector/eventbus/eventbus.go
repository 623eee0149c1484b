// Package eventbus is the process wide publish/subscribe channel for wallet
// state changes (selected wallet, chain, connections).
package eventbus

import (
	"sync"

	"go.uber.org/zap"

	"github.com/ethereum/go-ethereum/event"

	gocommon "github.com/status-im/dapp-connector/common"
	"github.com/status-im/dapp-connector/logutils"
	"github.com/status-im/dapp-connector/services/connector/chain"
)

type EventType string

const (
	EventWalletChanged  EventType = "walletChanged"
	EventConnected      EventType = "connected"
	EventDisconnected   EventType = "disconnected"
	EventChainIDUpdated EventType = "chainIdUpdated"
)

// Event is published on the bus. Origin is empty for events that are not
// scoped to a single dApp.
type Event struct {
	Type    EventType     `json:"type"`
	Family  chain.Family  `json:"blockchain"`
	Origin  string        `json:"origin,omitempty"`
	ChainID string        `json:"chainId,omitempty"`
	Wallet  *chain.Wallet `json:"wallet,omitempty"`
}

const subscriberBuffer = 64

// Bus fans events out to subscribers.
type Bus struct {
	feed event.Feed
}

func New() *Bus {
	return &Bus{}
}

// Publish delivers e to every subscriber and returns how many received it.
func (b *Bus) Publish(e Event) int {
	return b.feed.Send(e)
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	sub  event.Subscription
	quit chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// Subscribe runs handler for every published event on a dedicated goroutine,
// in publication order, until the returned subscription is cancelled.
func (b *Bus) Subscribe(handler func(Event)) *Subscription {
	events := make(chan Event, subscriberBuffer)
	s := &Subscription{
		sub:  b.feed.Subscribe(events),
		quit: make(chan struct{}),
	}

	s.wg.Add(1)
	go func() {
		defer gocommon.LogOnPanic()
		defer s.wg.Done()
		for {
			select {
			case <-s.quit:
				return
			case err := <-s.sub.Err():
				if err != nil {
					logutils.ZapLogger().Error("event bus subscription failed", zap.Error(err))
				}
				return
			case e := <-events:
				handler(e)
			}
		}
	}()

	return s
}

// Unsubscribe stops delivery. It is safe to call more than once and from
// inside the handler.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.sub.Unsubscribe()
		close(s.quit)
	})
}

// Wait blocks until the delivery goroutine has exited.
func (s *Subscription) Wait() {
	s.wg.Wait()
}
