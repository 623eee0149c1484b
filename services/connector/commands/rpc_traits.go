package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	statusErrors "github.com/status-im/dapp-connector/errors"
	"github.com/status-im/dapp-connector/services/connector/approvals"
	"github.com/status-im/dapp-connector/services/connector/chain"
	"github.com/status-im/dapp-connector/services/connector/origin"
)

// Internal method names understood by every gateway. Each family adds its
// native aliases on top.
const (
	MethodConnect                = "connect"
	MethodDisconnect             = "disconnect"
	MethodRPC                    = "rpc"
	MethodSwitchChain            = "switchChain"
	MethodSignMessage            = "signMessage"
	MethodSignTypedData          = "signTypedData"
	MethodSignTransaction        = "signTransaction"
	MethodSignAndSendTransaction = "signAndSendTransaction"
	MethodGetProviderState       = "getProviderState"
	MethodAccounts               = "accounts"
	MethodChainID                = "chainId"
)

// lifecycle and protocol errors, returned to the caller
var (
	ErrNotInitialized      = &statusErrors.ErrorResponse{Code: statusErrors.ErrorCode("DC-001"), Details: "gateway is not initialized"}
	ErrUnknownMethod       = &statusErrors.ErrorResponse{Code: statusErrors.ErrorCode("DC-002"), Details: "unknown method"}
	ErrAmbiguousTransport  = &statusErrors.ErrorResponse{Code: statusErrors.ErrorCode("DC-003"), Details: "request context carries more than one transport"}
	ErrRequestMissingID    = &statusErrors.ErrorResponse{Code: statusErrors.ErrorCode("DC-004"), Details: "request id is missing"}
	ErrWrongFamily         = &statusErrors.ErrorResponse{Code: statusErrors.ErrorCode("DC-005"), Details: "approval is for another blockchain"}
	ErrEmptyRPCParams      = errors.New("empty rpc params")
	ErrSwitchChainNotValid = errors.New("switch chain params are not valid")
)

// policy rejections, delivered to the dApp
var (
	ErrNotConnectedToSite = statusErrors.NewProviderError(statusErrors.ProviderCodeUnauthorized, "Not connected to site")
	ErrNoWalletSelected   = statusErrors.NewProviderError(statusErrors.ProviderCodeUnauthorized, "No wallet selected")
	ErrNotConnected       = statusErrors.NewProviderError(statusErrors.ProviderCodeUnauthorized, "Not connected")
	ErrUnsupportedChain   = statusErrors.NewProviderError(statusErrors.ProviderCodeUnrecognizedChain, "Unrecognized chain ID")
	ErrWalletNotDeployed  = statusErrors.NewProviderError(statusErrors.ProviderCodeChainDisconnected, "Wallet not deployed on this network")
	ErrUserRejected       = statusErrors.NewProviderError(statusErrors.ProviderCodeUserRejected, "User rejected the request")
	ErrApprovalTimedOut   = statusErrors.NewProviderError(statusErrors.ProviderCodeUserRejected, "Approval request timed out")
	ErrRequestPending     = statusErrors.NewProviderError(statusErrors.ProviderCodeResourceUnavailable, "Request already pending")
	ErrMethodNotSupported = statusErrors.NewProviderError(statusErrors.ProviderCodeUnsupportedMethod, "Unsupported method")
	ErrNoRPCEndpoint      = statusErrors.NewProviderError(statusErrors.ProviderCodeChainDisconnected, "No RPC endpoint for this network")
)

// invalidParams wraps a decoding failure into a dApp visible error.
func invalidParams(err error) *statusErrors.ProviderError {
	return statusErrors.NewProviderError(statusErrors.ProviderCodeInvalidParams, err.Error())
}

func isProviderError(err error) bool {
	var pErr *statusErrors.ProviderError
	return errors.As(err, &pErr)
}

// RequestID accepts both JSON strings and numbers.
type RequestID string

func (id *RequestID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = RequestID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("request id must be a string or a number: %w", err)
	}
	*id = RequestID(n.String())
	return nil
}

// RPCRequest is the transport independent request shape.
type RPCRequest struct {
	ID     RequestID     `json:"id"`
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

// param decodes params[i] into v.
func (r *RPCRequest) param(i int, v interface{}) error {
	if len(r.Params) <= i {
		return ErrEmptyRPCParams
	}
	raw, err := json.Marshal(r.Params[i])
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// stringParam returns params[i] when it is a string.
func (r *RPCRequest) stringParam(i int) (string, error) {
	if len(r.Params) <= i {
		return "", ErrEmptyRPCParams
	}
	switch v := r.Params[i].(type) {
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	}
	return "", fmt.Errorf("param %d is not a string", i)
}

// WalletConnectProposal identifies a pending relay session proposal.
type WalletConnectProposal struct {
	ID           int64   `json:"id"`
	PairingTopic string  `json:"pairingTopic"`
	ChainIDs     []int64 `json:"chainIds"`
}

// WalletConnectRequest identifies a relay session request.
type WalletConnectRequest struct {
	ID      int64  `json:"id"`
	Topic   string `json:"topic"`
	ChainID int64  `json:"chainId"`
}

type WalletConnectContext struct {
	Proposal *WalletConnectProposal `json:"proposal,omitempty"`
	Request  *WalletConnectRequest  `json:"request,omitempty"`
}

// TonConnectContext identifies the bridge session a request arrived on.
type TonConnectContext struct {
	// ClientID is the wallet side session id (hex public key).
	ClientID string `json:"clientId"`
	// DAppClientID is the partner session id.
	DAppClientID string `json:"dappClientId"`
	// Handshake is set while the connect request is not yet approved.
	Handshake bool `json:"handshake,omitempty"`
	// Items requested by the dApp in the connect request.
	Items []string `json:"items,omitempty"`
	// ReturnStrategy from the deep link ("back", "none" or a url).
	ReturnStrategy string `json:"returnStrategy,omitempty"`
}

// RequestContext is a request plus everything needed to route its response.
// At most one of TonConnect and WalletConnect is set; neither means the
// embedded web content channel.
type RequestContext struct {
	Sender        origin.Sender         `json:"sender"`
	PageMetadata  *origin.PageMetadata  `json:"pageMetadata,omitempty"`
	Request       RPCRequest            `json:"request"`
	TonConnect    *TonConnectContext    `json:"tonConnectSession,omitempty"`
	WalletConnect *WalletConnectContext `json:"walletConnect,omitempty"`
}

func (rc *RequestContext) Validate() error {
	if rc.TonConnect != nil && rc.WalletConnect != nil {
		return ErrAmbiguousTransport
	}
	if rc.Request.ID == "" {
		return ErrRequestMissingID
	}
	return nil
}

func (rc *RequestContext) Transport() approvals.Transport {
	switch {
	case rc.WalletConnect != nil:
		return approvals.TransportWalletConnect
	case rc.TonConnect != nil:
		return approvals.TransportTonConnect
	}
	return approvals.TransportEmbedded
}

// Origin resolves the dApp descriptor of the sender.
func (rc *RequestContext) Origin() origin.Origin {
	return origin.Resolve(rc.Sender, rc.PageMetadata)
}

// ExternalPairing is true while a relay or bridge handshake waits for the user.
func (rc *RequestContext) ExternalPairing() bool {
	if rc.WalletConnect != nil && rc.WalletConnect.Proposal != nil {
		return true
	}
	return rc.TonConnect != nil && rc.TonConnect.Handshake
}

// ExternallyAuthenticated is true for requests arriving on an established
// relay or bridge session, which already authenticated the dApp.
func (rc *RequestContext) ExternallyAuthenticated() bool {
	if rc.WalletConnect != nil && rc.WalletConnect.Request != nil {
		return true
	}
	return rc.TonConnect != nil && !rc.TonConnect.Handshake
}

// Navigator opens the approval screen for a request. The user's decision
// comes back through Gateway.ResolveApproval or Gateway.RejectApproval.
type Navigator interface {
	Navigate(kind approvals.Kind, payload NavigationPayload) error
}

// Responder delivers outcomes over one transport.
type Responder interface {
	Respond(ctx context.Context, family chain.Family, rc *RequestContext, result interface{}) error
	Reject(ctx context.Context, family chain.Family, rc *RequestContext, err *statusErrors.ProviderError) error
}

// Notifier pushes unsolicited provider events into embedded web content.
type Notifier interface {
	Notify(ctx context.Context, family chain.Family, originKey string, method string, params interface{}) error
}

type RPCCommand interface {
	Execute(ctx context.Context, rc *RequestContext) error
}
