package commands

import (
	"github.com/status-im/dapp-connector/services/connector/chain"
	persistence "github.com/status-im/dapp-connector/services/connector/database"
	"github.com/status-im/dapp-connector/services/connector/eventbus"
)

// ConnectParams are extracted from a connect request. A zero ChainID keeps
// the current or default chain.
type ConnectParams struct {
	ShouldPrompt bool
	ChainID      int64
}

// Strategy holds what differs between blockchain families; the control
// flow lives in Gateway.
type Strategy interface {
	Family() chain.Family

	// Methods maps every accepted method name to an internal method name.
	Methods() map[string]string

	ParseConnect(req *RPCRequest) (ConnectParams, error)

	// ConnectResult shapes the connect response for the method that was called.
	ConnectResult(method string, wallet chain.Wallet, chainID int64) interface{}

	// ParseSwitchChain returns ErrMethodNotSupported for families without chain switching.
	ParseSwitchChain(req *RPCRequest) (int64, error)

	// DecodeSign decodes the payload of an internal sign method.
	DecodeSign(method string, req *RPCRequest) (*SignPayload, error)

	ProviderState(conn *persistence.Connection, chainID int64) interface{}

	FormatChainID(chainID int64) interface{}

	// Notification converts a bus event into a provider event, ok is false
	// when the family has no counterpart.
	Notification(e eventbus.Event) (method string, params interface{}, ok bool)
}

// FallbackStrategy is implemented by families that route whole method
// namespaces, such as node reads, instead of listing every method.
type FallbackStrategy interface {
	FallbackMethod(method string) (string, bool)
}
