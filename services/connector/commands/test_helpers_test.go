package commands

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	statusErrors "github.com/status-im/dapp-connector/errors"
	"github.com/status-im/dapp-connector/kvstore"
	"github.com/status-im/dapp-connector/params"
	"github.com/status-im/dapp-connector/services/connector/approvals"
	"github.com/status-im/dapp-connector/services/connector/chain"
	persistence "github.com/status-im/dapp-connector/services/connector/database"
	"github.com/status-im/dapp-connector/services/connector/eventbus"
	"github.com/status-im/dapp-connector/services/connector/origin"
)

var (
	testSender = origin.Sender{Title: "DApp", URL: "https://dapp.example/swap", ImageURL: "https://dapp.example/icon.png"}
	testOrigin = origin.Resolve(testSender, nil)
	testWallet = chain.Wallet{
		Address:   "0x6d0aa2a774b74bb1d36f97700315adf962c69fcb",
		PublicKey: "0x6d0aa2a774b74bb1d36f97700315adf962c69fcb",
		Type:      chain.WalletTypeEOA,
		Family:    chain.Evm,
	}
	testSafe = chain.Wallet{
		Address:           "0x1111111111111111111111111111111111111111",
		Type:              chain.WalletTypeMultisig,
		Family:            chain.Evm,
		SupportedChainIDs: []int64{1},
	}
)

type response struct {
	rc     *RequestContext
	result interface{}
	err    *statusErrors.ProviderError
}

type fakeResponder struct {
	mu        sync.Mutex
	responses []response
}

func (r *fakeResponder) Respond(ctx context.Context, family chain.Family, rc *RequestContext, result interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, response{rc: rc, result: result})
	return nil
}

func (r *fakeResponder) Reject(ctx context.Context, family chain.Family, rc *RequestContext, err *statusErrors.ProviderError) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, response{rc: rc, err: err})
	return nil
}

func (r *fakeResponder) all() []response {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]response(nil), r.responses...)
}

func (r *fakeResponder) last(t *testing.T) response {
	all := r.all()
	require.NotEmpty(t, all)
	return all[len(all)-1]
}

type notification struct {
	origin string
	method string
	params interface{}
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *fakeNotifier) Notify(ctx context.Context, family chain.Family, originKey string, method string, params interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{origin: originKey, method: method, params: params})
	return nil
}

func (n *fakeNotifier) all() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification(nil), n.sent...)
}

type testState struct {
	ctx       context.Context
	db        *persistence.Database
	bus       *eventbus.Bus
	gateway   *Gateway
	navigator *MockNavigator
	responder *fakeResponder
	notifier  *fakeNotifier
}

func setupGateway(t *testing.T, strategy Strategy, config GatewayConfig) *testState {
	registry, err := chain.NewRegistry(params.DefaultNetworks())
	require.NoError(t, err)

	db := persistence.NewDatabase(kvstore.NewMemoryStore(), 10)
	require.NoError(t, db.SetSessionData(persistence.NewSessionRecord(&persistence.User{ID: "user-1"})))

	bus := eventbus.New()
	config.DB = db
	config.Bus = bus
	config.Networks = registry

	state := &testState{
		ctx:       context.Background(),
		db:        db,
		bus:       bus,
		gateway:   NewGateway(strategy, config),
		navigator: NewMockNavigator(gomock.NewController(t)),
		responder: &fakeResponder{},
		notifier:  &fakeNotifier{},
	}
	state.gateway.SetResponder(approvals.TransportEmbedded, state.responder)
	state.gateway.SetResponder(approvals.TransportWalletConnect, state.responder)
	state.gateway.SetResponder(approvals.TransportTonConnect, state.responder)
	state.gateway.SetNotifier(state.notifier)
	state.gateway.Initialize(state.navigator)
	t.Cleanup(state.gateway.Uninitialize)
	return state
}

func embeddedRequest(id string, method string, params ...interface{}) *RequestContext {
	if params == nil {
		params = []interface{}{}
	}
	return &RequestContext{
		Sender:  testSender,
		Request: RPCRequest{ID: RequestID(id), Method: method, Params: params},
	}
}

// connectSite stores a connection for testOrigin and selects wallet.
func (s *testState) connectSite(t *testing.T, wallet chain.Wallet, chainID int64) {
	require.NoError(t, s.db.AddConnectedSite(testOrigin, wallet.Family, wallet, chainID))
	require.NoError(t, s.db.SelectWallet(wallet.Family, wallet))
}

// expectNavigate captures the payload of the next approval navigation.
func (s *testState) expectNavigate(kind approvals.Kind) *NavigationPayload {
	var captured NavigationPayload
	s.navigator.EXPECT().Navigate(kind, gomock.Any()).DoAndReturn(func(k approvals.Kind, p NavigationPayload) error {
		captured = p
		return nil
	})
	return &captured
}

func mustJSON(t *testing.T, v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
