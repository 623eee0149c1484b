package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	statusErrors "github.com/status-im/dapp-connector/errors"
	"github.com/status-im/dapp-connector/logutils"
	"github.com/status-im/dapp-connector/metrics"
	"github.com/status-im/dapp-connector/services/connector/approvals"
	"github.com/status-im/dapp-connector/services/connector/chain"
	persistence "github.com/status-im/dapp-connector/services/connector/database"
	"github.com/status-im/dapp-connector/services/connector/eventbus"
)

// Gateway dispatches the requests of one blockchain family. It answers
// from the connection state, rejects, or hands the request to the user
// through a Navigator and later delivers the user's decision over the
// transport the request came from.
type Gateway struct {
	strategy Strategy
	family   chain.Family
	db       *persistence.Database
	bus      *eventbus.Bus
	networks *chain.Registry
	registry *CommandRegistry
	methods  map[string]string
	pending  *approvals.Table[*RequestContext]
	rpc      *rpcClients
	logger   *zap.Logger

	mu          sync.RWMutex
	initialized bool
	navigator   Navigator
	sub         *eventbus.Subscription
	responders  map[approvals.Transport]Responder
	notifier    Notifier
}

type GatewayConfig struct {
	DB       *persistence.Database
	Bus      *eventbus.Bus
	Networks *chain.Registry
	// ApprovalTimeout of zero waits forever.
	ApprovalTimeout time.Duration
	RPCDialer       RPCDialer
}

func NewGateway(strategy Strategy, config GatewayConfig) *Gateway {
	g := &Gateway{
		strategy:   strategy,
		family:     strategy.Family(),
		db:         config.DB,
		bus:        config.Bus,
		networks:   config.Networks,
		methods:    strategy.Methods(),
		responders: make(map[approvals.Transport]Responder),
		logger:     logutils.ZapLogger().Named("gateway").With(zap.Stringer("blockchain", strategy.Family())),
	}
	g.pending = approvals.NewTable[*RequestContext](config.ApprovalTimeout, g.onApprovalTimeout)
	g.rpc = newRPCClients(config.RPCDialer)

	r := NewCommandRegistry()
	r.Register(MethodConnect, &ConnectCommand{g: g})
	r.Register(MethodDisconnect, &DisconnectCommand{g: g})
	r.Register(MethodRPC, &RPCPassthroughCommand{g: g})
	r.Register(MethodSwitchChain, &SwitchChainCommand{g: g})
	r.Register(MethodSignMessage, &SignCommand{g: g, method: MethodSignMessage, kind: approvals.KindMessage})
	r.Register(MethodSignTypedData, &SignCommand{g: g, method: MethodSignTypedData, kind: approvals.KindMessage})
	r.Register(MethodSignTransaction, &SignCommand{g: g, method: MethodSignTransaction, kind: approvals.KindTransaction})
	r.Register(MethodSignAndSendTransaction, &SignCommand{g: g, method: MethodSignAndSendTransaction, kind: approvals.KindTransaction})
	r.Register(MethodGetProviderState, &ProviderStateCommand{g: g})
	r.Register(MethodAccounts, &AccountsCommand{g: g})
	r.Register(MethodChainID, &ChainIDCommand{g: g})
	g.registry = r

	return g
}

func (g *Gateway) Family() chain.Family {
	return g.family
}

// SetResponder registers the delivery path of a transport. A nil responder
// removes it, responses for that transport are then dropped.
func (g *Gateway) SetResponder(transport approvals.Transport, r Responder) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if r == nil {
		delete(g.responders, transport)
		return
	}
	g.responders[transport] = r
}

// SetNotifier registers the embedded channel used for provider events.
func (g *Gateway) SetNotifier(n Notifier) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.notifier = n
}

// Initialize arms the gateway. Calling it on an initialized gateway is a no-op.
func (g *Gateway) Initialize(navigator Navigator) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.initialized {
		return
	}
	g.navigator = navigator
	g.sub = g.bus.Subscribe(g.onBusEvent)
	g.initialized = true
}

// Uninitialize stops notifications and forgets pending approvals. Approval
// screens already shown are not retracted; resolving them fails.
func (g *Gateway) Uninitialize() {
	g.mu.Lock()
	sub := g.sub
	wasInitialized := g.initialized
	g.initialized = false
	g.navigator = nil
	g.sub = nil
	g.mu.Unlock()

	if !wasInitialized {
		return
	}
	if sub != nil {
		sub.Unsubscribe()
	}
	for range g.pending.Clear() {
		metrics.ApprovalSettled(g.family.String())
	}
	g.rpc.close()
}

func (g *Gateway) IsInitialized() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.initialized
}

// HandleRequest dispatches rc. Only lifecycle violations, malformed
// contexts and unknown methods are returned; every other failure is
// delivered to the dApp.
func (g *Gateway) HandleRequest(ctx context.Context, rc *RequestContext) error {
	if !g.IsInitialized() {
		return ErrNotInitialized
	}
	if err := rc.Validate(); err != nil {
		return err
	}

	metrics.RequestReceived(g.family.String(), rc.Request.Method, string(rc.Transport()))

	internal, ok := g.methods[rc.Request.Method]
	if !ok {
		if f, isFallback := g.strategy.(FallbackStrategy); isFallback {
			internal, ok = f.FallbackMethod(rc.Request.Method)
		}
	}
	if !ok {
		g.reject(ctx, rc, ErrMethodNotSupported)
		return fmt.Errorf("%w: %s", ErrUnknownMethod, rc.Request.Method)
	}
	command, ok := g.registry.GetCommand(internal)
	if !ok {
		g.reject(ctx, rc, ErrMethodNotSupported)
		return fmt.Errorf("%w: %s", ErrUnknownMethod, internal)
	}

	if err := command.Execute(ctx, rc); err != nil {
		pErr := statusErrors.AsProviderError(err)
		if pErr.Code == statusErrors.ProviderCodeInternalError {
			g.logger.Error("request failed", zap.String("method", rc.Request.Method), zap.Error(err))
		}
		metrics.RequestRejected(g.family.String(), strconv.Itoa(pErr.Code))
		g.reject(ctx, rc, pErr)
	}
	return nil
}

// ResolveApproval delivers the user's approval of requestID. For connection
// requests result must decode into ConnectApproval.
func (g *Gateway) ResolveApproval(ctx context.Context, requestID string, result json.RawMessage) error {
	if !g.IsInitialized() {
		return ErrNotInitialized
	}
	entry, err := g.pending.Take(requestID)
	if err != nil {
		return err
	}
	metrics.ApprovalSettled(g.family.String())

	if entry.Kind == approvals.KindConnection {
		return g.completeConnect(ctx, entry.Request, result)
	}
	g.respond(ctx, entry.Request, result)
	return nil
}

// RejectApproval delivers the user's refusal of requestID. A nil error
// means the user declined.
func (g *Gateway) RejectApproval(ctx context.Context, requestID string, pErr *statusErrors.ProviderError) error {
	if !g.IsInitialized() {
		return ErrNotInitialized
	}
	entry, err := g.pending.Take(requestID)
	if err != nil {
		return err
	}
	metrics.ApprovalSettled(g.family.String())

	if pErr == nil {
		pErr = ErrUserRejected
	}
	g.reject(ctx, entry.Request, pErr)
	return nil
}

// PendingApprovals lists the requests waiting for the user, oldest first.
func (g *Gateway) PendingApprovals() []NavigationPayload {
	entries := g.pending.Pending()
	out := make([]NavigationPayload, 0, len(entries))
	for _, e := range entries {
		out = append(out, NavigationPayload{
			RequestID: e.RequestID,
			Family:    e.Family,
			Transport: e.Transport,
			Method:    e.Request.Request.Method,
			Origin:    e.Request.Origin(),
		})
	}
	return out
}

func (g *Gateway) onApprovalTimeout(e approvals.Entry[*RequestContext]) {
	metrics.ApprovalSettled(g.family.String())
	if !g.IsInitialized() {
		return
	}
	g.logger.Info("approval timed out", zap.String("requestId", e.RequestID))
	g.reject(context.Background(), e.Request, ErrApprovalTimedOut)
}

// approvalKey scopes request ids, which dApps number independently.
func approvalKey(rc *RequestContext) string {
	scope := rc.Origin().Key()
	switch {
	case rc.WalletConnect != nil && rc.WalletConnect.Request != nil:
		scope = rc.WalletConnect.Request.Topic
	case rc.WalletConnect != nil && rc.WalletConnect.Proposal != nil:
		scope = rc.WalletConnect.Proposal.PairingTopic
	case rc.TonConnect != nil:
		scope = rc.TonConnect.DAppClientID
	}
	return fmt.Sprintf("%s:%s:%s", rc.Transport(), scope, rc.Request.ID)
}

// prompt registers rc as pending and opens the approval screen.
func (g *Gateway) prompt(ctx context.Context, rc *RequestContext, kind approvals.Kind, payload NavigationPayload) error {
	g.mu.RLock()
	navigator := g.navigator
	g.mu.RUnlock()
	if navigator == nil {
		return ErrNotInitialized
	}

	key := approvalKey(rc)
	err := g.pending.Add(approvals.Entry[*RequestContext]{
		RequestID: key,
		Family:    g.family,
		Transport: rc.Transport(),
		Kind:      kind,
		Request:   rc,
	})
	if err == approvals.ErrDuplicateRequest {
		return ErrRequestPending
	}
	if err != nil {
		return err
	}
	metrics.ApprovalPending(g.family.String())

	payload.RequestID = key
	payload.Family = g.family
	payload.Transport = rc.Transport()
	payload.Method = rc.Request.Method
	payload.Origin = rc.Origin()

	if err := navigator.Navigate(kind, payload); err != nil {
		if _, takeErr := g.pending.Take(key); takeErr == nil {
			metrics.ApprovalSettled(g.family.String())
		}
		return err
	}
	return nil
}

func (g *Gateway) responder(transport approvals.Transport) Responder {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.responders[transport]
}

func (g *Gateway) respond(ctx context.Context, rc *RequestContext, result interface{}) {
	r := g.responder(rc.Transport())
	if r == nil {
		g.logger.Debug("no active transport, dropping response", zap.String("transport", string(rc.Transport())))
		return
	}
	if err := r.Respond(ctx, g.family, rc, result); err != nil {
		g.logger.Error("failed to deliver response", zap.String("method", rc.Request.Method), zap.Error(err))
	}
}

func (g *Gateway) reject(ctx context.Context, rc *RequestContext, pErr *statusErrors.ProviderError) {
	r := g.responder(rc.Transport())
	if r == nil {
		g.logger.Debug("no active transport, dropping rejection", zap.String("transport", string(rc.Transport())))
		return
	}
	if err := r.Reject(ctx, g.family, rc, pErr); err != nil {
		g.logger.Error("failed to deliver rejection", zap.String("method", rc.Request.Method), zap.Error(err))
	}
}

// currentConnection returns the connection of the sender, nil when absent.
func (g *Gateway) currentConnection(rc *RequestContext) (*persistence.Connection, error) {
	key := rc.Origin().Key()
	if key == "" {
		return nil, nil
	}
	return g.db.Connection(key, g.family)
}

// activeChainID is the chain of the connection, or the family default.
func (g *Gateway) activeChainID(conn *persistence.Connection) (int64, error) {
	if conn != nil && conn.ChainID != 0 {
		return conn.ChainID, nil
	}
	id, err := g.networks.DefaultChainID(g.family)
	if err != nil {
		return 0, ErrUnsupportedChain
	}
	return id, nil
}

// eventChainID renders chainID for bus events: hex for EVM, decimal for
// families with negative or non numeric native ids.
func (g *Gateway) eventChainID(chainID int64) string {
	if g.family == chain.Evm {
		return chain.HexChainID(chainID)
	}
	return strconv.FormatInt(chainID, 10)
}
