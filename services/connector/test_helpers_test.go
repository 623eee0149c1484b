package connector

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/status-im/dapp-connector/kvstore"
	"github.com/status-im/dapp-connector/params"
	"github.com/status-im/dapp-connector/services/connector/approvals"
	"github.com/status-im/dapp-connector/services/connector/chain"
	"github.com/status-im/dapp-connector/services/connector/channel"
	"github.com/status-im/dapp-connector/services/connector/commands"
	persistence "github.com/status-im/dapp-connector/services/connector/database"
	"github.com/status-im/dapp-connector/services/connector/origin"
)

var (
	testUser   = persistence.User{ID: "user-1", Name: "Alice"}
	testUser2  = persistence.User{ID: "user-2", Name: "Bob"}
	testSender = origin.Sender{Title: "DApp", URL: "https://dapp.example/swap", ImageURL: "https://dapp.example/icon.png"}
	testWallet = chain.Wallet{
		Address:   "0x6d0aa2a774b74bb1d36f97700315adf962c69fcb",
		PublicKey: "0x6d0aa2a774b74bb1d36f97700315adf962c69fcb",
		Type:      chain.WalletTypeEOA,
		Family:    chain.Evm,
	}
)

type navigation struct {
	kind    approvals.Kind
	payload commands.NavigationPayload
}

type recordingNavigator struct {
	navigations chan navigation
}

func (n *recordingNavigator) Navigate(kind approvals.Kind, payload commands.NavigationPayload) error {
	n.navigations <- navigation{kind: kind, payload: payload}
	return nil
}

type channelMessage struct {
	origin string
	typ    string
	detail json.RawMessage
}

type testState struct {
	ctx         context.Context
	kv          kvstore.Store
	service     *Service
	api         *API
	navigations chan navigation
	messages    chan channelMessage
}

func setupTests(t *testing.T, configure ...func(*params.ConnectorConfig)) *testState {
	config := params.NewConnectorConfig(t.TempDir())
	for _, fn := range configure {
		fn(config)
	}

	state := &testState{
		ctx:         context.Background(),
		kv:          kvstore.NewMemoryStore(),
		navigations: make(chan navigation, 8),
		messages:    make(chan channelMessage, 16),
	}
	send := func(originKey string, typ string, detail json.RawMessage) {
		state.messages <- channelMessage{origin: originKey, typ: typ, detail: detail}
	}

	service, err := NewService(config, state.kv,
		WithNavigator(&recordingNavigator{navigations: state.navigations}),
		WithChannelSender(send),
	)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, service.Stop()) })

	state.service = service
	state.api = NewAPI(service)
	return state
}

func (s *testState) login(t *testing.T) {
	require.NoError(t, s.api.Login(testUser))
}

func (s *testState) nextNavigation(t *testing.T) navigation {
	select {
	case n := <-s.navigations:
		return n
	case <-time.After(time.Second):
		require.FailNow(t, "no navigation")
	}
	return navigation{}
}

func (s *testState) nextMessage(t *testing.T) channelMessage {
	select {
	case m := <-s.messages:
		return m
	case <-time.After(time.Second):
		require.FailNow(t, "no channel message")
	}
	return channelMessage{}
}

// connect runs an approved eth_requestAccounts from testSender.
func (s *testState) connect(t *testing.T) {
	require.NoError(t, s.api.HandleChannelMessage(s.ctx, channelRequest(t, chain.Evm, "connect-1", "eth_requestAccounts")))
	n := s.nextNavigation(t)
	require.Equal(t, approvals.KindConnection, n.kind)
	require.NoError(t, s.api.ResolveApproval(s.ctx, chain.Evm, n.payload.RequestID, mustJSON(t, commands.ConnectApproval{Wallet: testWallet, ChainID: 1})))
	s.nextMessage(t)
}

func channelRequest(t *testing.T, family chain.Family, id string, method string, params ...interface{}) json.RawMessage {
	if params == nil {
		params = []interface{}{}
	}
	return mustJSON(t, channel.Message{
		Type: channel.RequestType(family),
		Detail: mustJSON(t, map[string]interface{}{
			"sender":  testSender,
			"request": commands.RPCRequest{ID: commands.RequestID(id), Method: method, Params: params},
		}),
	})
}

type responseDetail struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeResponse(t *testing.T, m channelMessage) responseDetail {
	var r responseDetail
	require.NoError(t, json.Unmarshal(m.detail, &r))
	return r
}

func mustJSON(t *testing.T, v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

type notificationDetail struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// nextNotification skips channel messages until one carries method.
func (s *testState) nextNotification(t *testing.T, method string) notificationDetail {
	for {
		m := s.nextMessage(t)
		if m.typ != channel.NotificationType(chain.Evm) {
			continue
		}
		var n notificationDetail
		require.NoError(t, json.Unmarshal(m.detail, &n))
		if n.Method == method {
			return n
		}
	}
}
