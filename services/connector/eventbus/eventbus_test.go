package eventbus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/status-im/dapp-connector/services/connector/chain"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestPublishSubscribe(t *testing.T) {
	bus := New()
	rec := &recorder{}
	sub := bus.Subscribe(rec.handle)
	defer sub.Unsubscribe()

	require.Equal(t, 1, bus.Publish(Event{Type: EventConnected, Family: chain.Evm, Origin: "https://dapp.example"}))
	require.Equal(t, 1, bus.Publish(Event{Type: EventChainIDUpdated, Family: chain.Evm, ChainID: "0xa"}))

	require.Eventually(t, func() bool { return rec.len() == 2 }, time.Second, 5*time.Millisecond)
	require.Equal(t, EventConnected, rec.events[0].Type)
	require.Equal(t, "0xa", rec.events[1].ChainID)
}

func TestUnsubscribeByHandle(t *testing.T) {
	bus := New()
	first := &recorder{}
	second := &recorder{}
	subFirst := bus.Subscribe(first.handle)
	subSecond := bus.Subscribe(second.handle)
	defer subSecond.Unsubscribe()

	subFirst.Unsubscribe()
	subFirst.Unsubscribe()
	subFirst.Wait()

	require.Equal(t, 1, bus.Publish(Event{Type: EventWalletChanged, Family: chain.Solana}))
	require.Eventually(t, func() bool { return second.len() == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, 0, first.len())
}

func TestUnsubscribeFromHandler(t *testing.T) {
	bus := New()
	var sub *Subscription
	done := make(chan struct{})
	sub = bus.Subscribe(func(Event) {
		sub.Unsubscribe()
		close(done)
	})

	bus.Publish(Event{Type: EventDisconnected})
	<-done
	sub.Wait()
	require.Equal(t, 0, bus.Publish(Event{Type: EventDisconnected}))
}
