package commands

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExplicitRPCForwardsReadsOnly(t *testing.T) {
	client := &fakeRPC{}
	dialer := func(ctx context.Context, url string) (RPCCaller, error) {
		return client, nil
	}
	state := setupGateway(t, NewEvmStrategy(), GatewayConfig{RPCDialer: dialer})
	state.connectSite(t, testWallet, 1)

	call := map[string]interface{}{"method": "eth_sendTransaction", "params": []interface{}{map[string]interface{}{"to": testWallet.Address}}}
	require.NoError(t, state.gateway.HandleRequest(state.ctx, embeddedRequest("1", MethodRPC, call)))
	require.Equal(t, ErrMethodNotSupported, state.responder.last(t).err)
	require.Empty(t, client.method)

	call = map[string]interface{}{"method": MethodRPC}
	require.NoError(t, state.gateway.HandleRequest(state.ctx, embeddedRequest("2", MethodRPC, call)))
	require.Equal(t, ErrMethodNotSupported, state.responder.last(t).err)

	call = map[string]interface{}{"method": "eth_getBalance", "params": []interface{}{testWallet.Address, "latest"}}
	require.NoError(t, state.gateway.HandleRequest(state.ctx, embeddedRequest("3", MethodRPC, call)))
	require.Equal(t, "eth_getBalance", client.method)
	require.Nil(t, state.responder.last(t).err)
}

func TestRPCClientsDialOutsideLock(t *testing.T) {
	release := make(chan struct{})
	clients := newRPCClients(func(ctx context.Context, url string) (RPCCaller, error) {
		if url == "https://slow.example" {
			<-release
		}
		return &fakeRPC{}, nil
	})

	slow := make(chan RPCCaller, 1)
	go func() {
		c, _ := clients.get(context.Background(), "https://slow.example")
		slow <- c
	}()

	fast := make(chan RPCCaller, 1)
	go func() {
		c, _ := clients.get(context.Background(), "https://fast.example")
		fast <- c
	}()
	select {
	case c := <-fast:
		require.NotNil(t, c)
	case <-time.After(time.Second):
		t.Fatal("a slow endpoint blocked another one")
	}

	close(release)
	first := <-slow
	again, err := clients.get(context.Background(), "https://slow.example")
	require.NoError(t, err)
	require.Same(t, first, again)
}
