package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/tonkeeper/tongo"

	"github.com/status-im/dapp-connector/services/connector/chain"
	persistence "github.com/status-im/dapp-connector/services/connector/database"
	"github.com/status-im/dapp-connector/services/connector/eventbus"
)

const (
	TonMaxMessages    = 4
	tonMethodRestore  = "restoreConnection"
	tonMethodSendTx   = "sendTransaction"
	tonMethodSignData = "signData"
	tonItemAddress    = "ton_addr"
)

var (
	ErrTonMessagesCount = fmt.Errorf("transaction must carry between 1 and %d messages", TonMaxMessages)
	ErrTonAmount        = errors.New("message amount must be a non negative decimal string")
	ErrTonExpired       = errors.New("transaction valid_until is in the past")
	ErrTonNetwork       = errors.New("transaction network is not a TON network")
)

type TonStrategy struct {
	now func() time.Time
}

func NewTonStrategy() *TonStrategy {
	return &TonStrategy{now: time.Now}
}

func (s *TonStrategy) Family() chain.Family {
	return chain.Ton
}

func (s *TonStrategy) Methods() map[string]string {
	return map[string]string{
		MethodConnect:          MethodConnect,
		MethodDisconnect:       MethodDisconnect,
		MethodGetProviderState: MethodGetProviderState,
		MethodAccounts:         MethodAccounts,

		tonMethodRestore:  MethodConnect,
		tonMethodSendTx:   MethodSignAndSendTransaction,
		tonMethodSignData: MethodSignMessage,
	}
}

// ParseConnect prompts for connect and restores silently.
func (s *TonStrategy) ParseConnect(req *RPCRequest) (ConnectParams, error) {
	return ConnectParams{ShouldPrompt: req.Method != tonMethodRestore}, nil
}

// TonAddrItem is the ton_addr reply item of a connect event.
type TonAddrItem struct {
	Name            string `json:"name"`
	Address         string `json:"address"`
	Network         string `json:"network"`
	PublicKey       string `json:"publicKey"`
	WalletStateInit string `json:"walletStateInit"`
}

type TonConnectResult struct {
	Items []TonAddrItem `json:"items"`
}

// TonRawAddress converts a user friendly address into the "workchain:hex"
// form dApps expect. Unparseable input is returned unchanged.
func TonRawAddress(address string) string {
	addr, err := tongo.ParseAddress(address)
	if err != nil {
		return address
	}
	return addr.ID.ToRaw()
}

func (s *TonStrategy) ConnectResult(method string, wallet chain.Wallet, chainID int64) interface{} {
	return TonConnectResult{
		Items: []TonAddrItem{{
			Name:      tonItemAddress,
			Address:   TonRawAddress(wallet.Address),
			Network:   strconv.FormatInt(chainID, 10),
			PublicKey: wallet.PublicKey,
		}},
	}
}

func (s *TonStrategy) ParseSwitchChain(req *RPCRequest) (int64, error) {
	return 0, ErrMethodNotSupported
}

func (s *TonStrategy) DecodeSign(method string, req *RPCRequest) (*SignPayload, error) {
	switch method {
	case MethodSignAndSendTransaction:
		return s.decodeTransaction(req)
	case MethodSignMessage:
		return s.decodeSignData(req)
	}
	return nil, ErrMethodNotSupported
}

type tonMessage struct {
	Address   string `json:"address"`
	Amount    string `json:"amount"`
	Payload   string `json:"payload,omitempty"`
	StateInit string `json:"stateInit,omitempty"`
}

type tonTransaction struct {
	ValidUntil int64        `json:"valid_until,omitempty"`
	Network    string       `json:"network,omitempty"`
	From       string       `json:"from,omitempty"`
	Messages   []tonMessage `json:"messages"`
}

// tonParam returns params[0] as raw JSON. Bridge requests carry it as a
// JSON encoded string, embedded requests as an object.
func tonParam(req *RPCRequest) (json.RawMessage, error) {
	if len(req.Params) == 0 {
		return nil, ErrEmptyRPCParams
	}
	if str, ok := req.Params[0].(string); ok {
		return json.RawMessage(str), nil
	}
	return json.Marshal(req.Params[0])
}

func (s *TonStrategy) decodeTransaction(req *RPCRequest) (*SignPayload, error) {
	raw, err := tonParam(req)
	if err != nil {
		return nil, err
	}
	var tx tonTransaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, err
	}

	if len(tx.Messages) == 0 || len(tx.Messages) > TonMaxMessages {
		return nil, ErrTonMessagesCount
	}
	for i, m := range tx.Messages {
		if _, err := tongo.ParseAddress(m.Address); err != nil {
			return nil, fmt.Errorf("message %d: %w", i, ErrInvalidAddress)
		}
		amount, ok := new(big.Int).SetString(m.Amount, 10)
		if !ok || amount.Sign() < 0 {
			return nil, fmt.Errorf("message %d: %w", i, ErrTonAmount)
		}
	}
	if tx.ValidUntil != 0 && time.Unix(tx.ValidUntil, 0).Before(s.now()) {
		return nil, ErrTonExpired
	}
	if tx.Network != "" {
		if _, err := strconv.ParseInt(tx.Network, 10, 64); err != nil {
			return nil, ErrTonNetwork
		}
	}

	payload := &SignPayload{
		Transaction: raw,
		Broadcast:   true,
	}
	if tx.From != "" {
		if _, err := tongo.ParseAddress(tx.From); err != nil {
			return nil, ErrInvalidAddress
		}
		payload.Address = tx.From
	}
	return payload, nil
}

func (s *TonStrategy) decodeSignData(req *RPCRequest) (*SignPayload, error) {
	raw, err := tonParam(req)
	if err != nil {
		return nil, err
	}
	if !json.Valid(raw) {
		return nil, errors.New("sign data is not valid JSON")
	}
	return &SignPayload{Data: raw}, nil
}

type TonProviderState struct {
	Address     *string `json:"address"`
	Network     string  `json:"network"`
	IsConnected bool    `json:"isConnected"`
}

func (s *TonStrategy) ProviderState(conn *persistence.Connection, chainID int64) interface{} {
	state := TonProviderState{Network: strconv.FormatInt(chainID, 10)}
	if conn != nil {
		address := TonRawAddress(conn.Wallet.Address)
		state.Address = &address
		state.IsConnected = true
	}
	return state
}

func (s *TonStrategy) FormatChainID(chainID int64) interface{} {
	return strconv.FormatInt(chainID, 10)
}

// Notification only knows disconnect; TON has no chain or account events.
func (s *TonStrategy) Notification(e eventbus.Event) (string, interface{}, bool) {
	if e.Type == eventbus.EventDisconnected {
		return "disconnect", map[string]interface{}{}, true
	}
	return "", nil, false
}
