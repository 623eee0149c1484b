package commands

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/status-im/dapp-connector/services/connector/approvals"
	"github.com/status-im/dapp-connector/services/connector/chain"
	"github.com/status-im/dapp-connector/services/connector/origin"
	"github.com/status-im/dapp-connector/signal"
)

// NavigationPayload is what the approval screen receives.
type NavigationPayload struct {
	RequestID     string              `json:"requestId"`
	Family        chain.Family        `json:"blockchain"`
	Transport     approvals.Transport `json:"transport"`
	Method        string              `json:"method"`
	Origin        origin.Origin       `json:"origin"`
	ChainID       int64               `json:"chainId,omitempty"`
	PairingHandle string              `json:"pairingHandle,omitempty"`
	Wallet        *chain.Wallet       `json:"wallet,omitempty"`
	Sign          *SignPayload        `json:"sign,omitempty"`
}

// SignPayload is a decoded signing request. Exactly one of the payload
// fields is set.
type SignPayload struct {
	Address        string              `json:"address,omitempty"`
	Message        hexutil.Bytes       `json:"message,omitempty"`
	TypedData      *apitypes.TypedData `json:"typedData,omitempty"`
	Data           json.RawMessage     `json:"data,omitempty"`
	Transaction    json.RawMessage     `json:"transaction,omitempty"`
	RawTransaction hexutil.Bytes       `json:"rawTransaction,omitempty"`
	Broadcast      bool                `json:"broadcast"`
}

// ConnectApproval is the result the approval screen hands back for a
// connection request.
type ConnectApproval struct {
	Wallet  chain.Wallet `json:"wallet"`
	ChainID int64        `json:"chainId"`
}

// SignalNavigator asks the host application to navigate through a signal.
type SignalNavigator struct{}

func (SignalNavigator) Navigate(kind approvals.Kind, payload NavigationPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	signal.SendConnectorNavigate(string(kind), string(payload.Family), payload.RequestID, data)
	return nil
}
