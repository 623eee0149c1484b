package walletconnect

import (
	"encoding/json"
	"errors"
)

// sign protocol methods
const (
	methodSessionPropose = "wc_sessionPropose"
	methodSessionSettle  = "wc_sessionSettle"
	methodSessionRequest = "wc_sessionRequest"
	methodSessionEvent   = "wc_sessionEvent"
	methodSessionDelete  = "wc_sessionDelete"
	methodSessionPing    = "wc_sessionPing"
	methodSessionExtend  = "wc_sessionExtend"
	methodSessionUpdate  = "wc_sessionUpdate"
	methodPairingPing    = "wc_pairingPing"
	methodPairingDelete  = "wc_pairingDelete"

	eventAccountsChanged = "accountsChanged"
)

var (
	ErrorChainsNotSupported = errors.New("chains not supported")
	ErrorUnknownTopic       = errors.New("unknown topic")
	ErrorUnknownProposal    = errors.New("unknown session proposal")
	ErrorUnknownSession     = errors.New("unknown session")
	ErrorNotInitialized     = errors.New("walletconnect is not initialized")
	ErrorMissingProjectID   = errors.New("walletconnect project id is not configured")
)

type Namespace struct {
	Methods  []string `json:"methods"`
	Chains   []string `json:"chains,omitempty"` // CAIP-2 format e.g. ["eip155:1"]
	Events   []string `json:"events"`
	Accounts []string `json:"accounts,omitempty"` // CAIP-10 format e.g. ["eip155:1:0x453...228"]
}

type Metadata struct {
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Icons       []string `json:"icons"`
	Name        string   `json:"name"`
	VerifyURL   string   `json:"verifyUrl,omitempty"`
}

// Participant is one side of a session.
type Participant struct {
	PublicKey string   `json:"publicKey"`
	Metadata  Metadata `json:"metadata"`
}

type Relay struct {
	Protocol string `json:"protocol"`
	Data     string `json:"data,omitempty"`
}

// ProposalParams are the params of wc_sessionPropose.
type ProposalParams struct {
	Relays             []Relay              `json:"relays"`
	Proposer           Participant          `json:"proposer"`
	RequiredNamespaces map[string]Namespace `json:"requiredNamespaces"`
	OptionalNamespaces map[string]Namespace `json:"optionalNamespaces"`
	ExpiryTimestamp    int64                `json:"expiryTimestamp,omitempty"`
}

type proposalResult struct {
	Relay              Relay  `json:"relay"`
	ResponderPublicKey string `json:"responderPublicKey"`
}

type settleParams struct {
	Relay        Relay                `json:"relay"`
	Namespaces   map[string]Namespace `json:"namespaces"`
	Controller   Participant          `json:"controller"`
	Expiry       int64                `json:"expiry"`
	PairingTopic string               `json:"pairingTopic,omitempty"`
}

// RequestParams are the params of wc_sessionRequest.
type RequestParams struct {
	Request struct {
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	} `json:"request"`
	ChainID string `json:"chainId"`
}

type sessionEvent struct {
	Name string      `json:"name"`
	Data interface{} `json:"data"`
}

type eventParams struct {
	Event   sessionEvent `json:"event"`
	ChainID string       `json:"chainId"`
}

type reason struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Pairing is a topic shared through a pairing uri, used to negotiate sessions.
type Pairing struct {
	Topic  string    `json:"topic"`
	SymKey []byte    `json:"symKey"`
	Expiry int64     `json:"expiry"`
	Active bool      `json:"active"`
	Peer   *Metadata `json:"peerMetadata,omitempty"`
}

// Session is an approved relay session.
type Session struct {
	Topic        string               `json:"topic"`
	PairingTopic string               `json:"pairingTopic"`
	SymKey       []byte               `json:"symKey"`
	SelfPublic   string               `json:"selfPublicKey"`
	Peer         Participant          `json:"peer"`
	Namespaces   map[string]Namespace `json:"namespaces"`
	Expiry       int64                `json:"expiry"`
	Acknowledged bool                 `json:"acknowledged"`
}

// pendingProposal is a proposal waiting for the user.
type pendingProposal struct {
	ID           int64
	PairingTopic string
	Params       ProposalParams
}
