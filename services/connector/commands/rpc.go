package commands

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/ethereum/go-ethereum/rpc"

	statusErrors "github.com/status-im/dapp-connector/errors"
)

// RPCCaller is the part of *rpc.Client the passthrough needs.
type RPCCaller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
	Close()
}

type RPCDialer func(ctx context.Context, url string) (RPCCaller, error)

func DefaultRPCDialer(ctx context.Context, url string) (RPCCaller, error) {
	return rpc.DialContext(ctx, url)
}

// rpcClients caches one client per endpoint.
type rpcClients struct {
	dial RPCDialer

	mu      sync.Mutex
	clients map[string]RPCCaller
}

func newRPCClients(dial RPCDialer) *rpcClients {
	if dial == nil {
		dial = DefaultRPCDialer
	}
	return &rpcClients{dial: dial, clients: make(map[string]RPCCaller)}
}

// get dials outside the lock so one slow endpoint does not hold up the
// others. The first client stored for url wins.
func (c *rpcClients) get(ctx context.Context, url string) (RPCCaller, error) {
	c.mu.Lock()
	client, ok := c.clients[url]
	c.mu.Unlock()
	if ok {
		return client, nil
	}

	dialed, err := c.dial(ctx, url)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if client, ok := c.clients[url]; ok {
		dialed.Close()
		return client, nil
	}
	c.clients[url] = dialed
	return dialed, nil
}

func (c *rpcClients) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for url, client := range c.clients {
		client.Close()
		delete(c.clients, url)
	}
}

// passthroughCall is the params[0] shape of an explicit "rpc" request.
type passthroughCall struct {
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

// RPCPassthroughCommand forwards read only calls to the node of the
// connection's chain. An explicit "rpc" request may only name a method the
// strategy itself routes to the passthrough.
type RPCPassthroughCommand struct {
	g *Gateway
}

// isPassthrough reports whether the strategy forwards method to the node.
func (g *Gateway) isPassthrough(method string) bool {
	if method == MethodRPC {
		return false
	}
	if internal, ok := g.methods[method]; ok {
		return internal == MethodRPC
	}
	if f, ok := g.strategy.(FallbackStrategy); ok {
		internal, ok := f.FallbackMethod(method)
		return ok && internal == MethodRPC
	}
	return false
}

func (c *RPCPassthroughCommand) Execute(ctx context.Context, rc *RequestContext) error {
	g := c.g

	call := passthroughCall{Method: rc.Request.Method, Params: rc.Request.Params}
	if rc.Request.Method == MethodRPC {
		if err := rc.Request.param(0, &call); err != nil {
			return invalidParams(err)
		}
		if call.Method == "" {
			return invalidParams(errors.New("rpc method is missing"))
		}
		if !g.isPassthrough(call.Method) {
			return ErrMethodNotSupported
		}
	}
	if call.Params == nil {
		call.Params = []interface{}{}
	}

	conn, err := g.currentConnection(rc)
	if err != nil {
		return err
	}
	if conn == nil && !rc.ExternallyAuthenticated() {
		return ErrNotConnected
	}
	chainID, err := g.activeChainID(conn)
	if err != nil {
		return err
	}
	if rc.WalletConnect != nil && rc.WalletConnect.Request != nil && rc.WalletConnect.Request.ChainID != 0 {
		chainID = rc.WalletConnect.Request.ChainID
	}

	network, ok := g.networks.Network(g.family, chainID)
	if !ok {
		return ErrUnsupportedChain
	}
	if network.RPCURL == "" {
		return ErrNoRPCEndpoint
	}

	client, err := g.rpc.get(ctx, network.RPCURL)
	if err != nil {
		g.logger.Warn("failed to dial rpc endpoint", zap.Int64("chainId", chainID), zap.Error(err))
		return ErrNoRPCEndpoint
	}

	var result json.RawMessage
	if err := client.CallContext(ctx, &result, call.Method, call.Params...); err != nil {
		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) {
			return statusErrors.NewProviderError(rpcErr.ErrorCode(), rpcErr.Error())
		}
		return err
	}
	g.respond(ctx, rc, result)
	return nil
}
