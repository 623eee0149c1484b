package commands

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"

	"github.com/btcsuite/btcutil/base58"

	"github.com/status-im/dapp-connector/services/connector/chain"
	persistence "github.com/status-im/dapp-connector/services/connector/database"
	"github.com/status-im/dapp-connector/services/connector/eventbus"
)

var (
	ErrInvalidEncoding = errors.New("payload is neither base58 nor base64")
	ErrEmptyPayload    = errors.New("payload is empty")
)

type SolanaStrategy struct{}

func NewSolanaStrategy() *SolanaStrategy {
	return &SolanaStrategy{}
}

func (s *SolanaStrategy) Family() chain.Family {
	return chain.Solana
}

func (s *SolanaStrategy) Methods() map[string]string {
	return map[string]string{
		MethodConnect:                MethodConnect,
		MethodDisconnect:             MethodDisconnect,
		MethodSwitchChain:            MethodSwitchChain,
		MethodSignMessage:            MethodSignMessage,
		MethodSignTransaction:        MethodSignTransaction,
		MethodSignAndSendTransaction: MethodSignAndSendTransaction,
		MethodGetProviderState:       MethodGetProviderState,
		MethodAccounts:               MethodAccounts,

		"solana_signMessage":            MethodSignMessage,
		"solana_signTransaction":        MethodSignTransaction,
		"solana_signAndSendTransaction": MethodSignAndSendTransaction,
		"solana_getAccounts":            MethodAccounts,
		"solana_requestAccounts":        MethodConnect,
	}
}

type solanaConnectOptions struct {
	OnlyIfTrusted bool `json:"onlyIfTrusted"`
}

// ParseConnect follows wallet-standard: onlyIfTrusted reconnects silently.
func (s *SolanaStrategy) ParseConnect(req *RPCRequest) (ConnectParams, error) {
	params := ConnectParams{ShouldPrompt: true}
	if len(req.Params) == 0 || req.Params[0] == nil {
		return params, nil
	}
	var opts solanaConnectOptions
	if err := req.param(0, &opts); err != nil {
		return params, err
	}
	params.ShouldPrompt = !opts.OnlyIfTrusted
	return params, nil
}

func (s *SolanaStrategy) ConnectResult(method string, wallet chain.Wallet, chainID int64) interface{} {
	if method == "solana_requestAccounts" {
		return []map[string]string{{"pubkey": wallet.Address}}
	}
	return map[string]interface{}{
		"publicKey": wallet.Address,
		"chainId":   chainID,
	}
}

type solanaSwitchChainParams struct {
	ChainID interface{} `json:"chainId"`
}

func (s *SolanaStrategy) ParseSwitchChain(req *RPCRequest) (int64, error) {
	var p solanaSwitchChainParams
	if err := req.param(0, &p); err != nil {
		return 0, err
	}
	switch v := p.ChainID.(type) {
	case float64:
		return int64(v), nil
	case string:
		id, err := chain.ParseHexChainID(v)
		if err != nil {
			return 0, ErrSwitchChainNotValid
		}
		return id, nil
	}
	return 0, ErrSwitchChainNotValid
}

func (s *SolanaStrategy) DecodeSign(method string, req *RPCRequest) (*SignPayload, error) {
	switch method {
	case MethodSignMessage:
		return s.decodeMessage(req)
	case MethodSignTransaction:
		return s.decodeTransaction(req, false)
	case MethodSignAndSendTransaction:
		return s.decodeTransaction(req, true)
	}
	return nil, ErrMethodNotSupported
}

type solanaMessageParams struct {
	Message interface{} `json:"message"`
	Pubkey  string      `json:"pubkey"`
}

// decodeMessage accepts a base58 string, a byte array or a
// {message, pubkey} object.
func (s *SolanaStrategy) decodeMessage(req *RPCRequest) (*SignPayload, error) {
	if len(req.Params) == 0 {
		return nil, ErrEmptyRPCParams
	}
	payload := &SignPayload{}
	value := req.Params[0]
	if obj, ok := value.(map[string]interface{}); ok {
		var p solanaMessageParams
		if err := req.param(0, &p); err != nil {
			return nil, err
		}
		if p.Pubkey != "" && !chain.IsSolanaAddress(p.Pubkey) {
			return nil, ErrInvalidAddress
		}
		payload.Address = p.Pubkey
		value = obj["message"]
	}

	message, err := solanaBytes(value, "base58")
	if err != nil {
		return nil, err
	}
	payload.Message = message
	return payload, nil
}

type solanaTransactionParams struct {
	Transaction interface{} `json:"transaction"`
	Encoding    string      `json:"encoding"`
}

func (s *SolanaStrategy) decodeTransaction(req *RPCRequest, broadcast bool) (*SignPayload, error) {
	if len(req.Params) == 0 {
		return nil, ErrEmptyRPCParams
	}
	p := solanaTransactionParams{Transaction: req.Params[0]}
	if _, ok := req.Params[0].(map[string]interface{}); ok {
		if err := req.param(0, &p); err != nil {
			return nil, err
		}
	}
	tx, err := solanaBytes(p.Transaction, p.Encoding)
	if err != nil {
		return nil, err
	}
	return &SignPayload{
		RawTransaction: tx,
		Broadcast:      broadcast,
	}, nil
}

// solanaBytes decodes a string in the given encoding, base58 by default
// with base64 as fallback, or a JSON array of bytes.
func solanaBytes(value interface{}, encoding string) ([]byte, error) {
	switch v := value.(type) {
	case string:
		if v == "" {
			return nil, ErrEmptyPayload
		}
		if encoding == "base64" {
			return base64.StdEncoding.DecodeString(v)
		}
		if decoded := base58.Decode(v); len(decoded) > 0 {
			return decoded, nil
		}
		if decoded, err := base64.StdEncoding.DecodeString(v); err == nil {
			return decoded, nil
		}
		return nil, ErrInvalidEncoding
	case []interface{}:
		if len(v) == 0 {
			return nil, ErrEmptyPayload
		}
		out := make([]byte, len(v))
		for i, b := range v {
			n, ok := b.(float64)
			if !ok || n < 0 || n > 255 || n != float64(int(n)) {
				return nil, fmt.Errorf("byte %d is out of range", i)
			}
			out[i] = byte(n)
		}
		return out, nil
	case map[string]interface{}:
		// Uint8Array serialized as {"0": b0, "1": b1, ...}
		out := make([]byte, len(v))
		for k, b := range v {
			i, err := strconv.Atoi(k)
			if err != nil || i < 0 || i >= len(v) {
				return nil, ErrInvalidEncoding
			}
			n, ok := b.(float64)
			if !ok || n < 0 || n > 255 {
				return nil, ErrInvalidEncoding
			}
			out[i] = byte(n)
		}
		if len(out) == 0 {
			return nil, ErrEmptyPayload
		}
		return out, nil
	}
	return nil, ErrInvalidEncoding
}

type SolanaProviderState struct {
	PublicKey   *string `json:"publicKey"`
	ChainID     int64   `json:"chainId"`
	IsConnected bool    `json:"isConnected"`
}

func (s *SolanaStrategy) ProviderState(conn *persistence.Connection, chainID int64) interface{} {
	state := SolanaProviderState{ChainID: chainID}
	if conn != nil {
		address := conn.Wallet.Address
		state.PublicKey = &address
		state.IsConnected = true
	}
	return state
}

func (s *SolanaStrategy) FormatChainID(chainID int64) interface{} {
	return chainID
}

func (s *SolanaStrategy) Notification(e eventbus.Event) (string, interface{}, bool) {
	switch e.Type {
	case eventbus.EventWalletChanged:
		if e.Wallet == nil {
			return "accountChanged", nil, true
		}
		return "accountChanged", e.Wallet.Address, true
	case eventbus.EventConnected:
		if e.Wallet == nil {
			return "", nil, false
		}
		return "connect", map[string]string{"publicKey": e.Wallet.Address}, true
	case eventbus.EventDisconnected:
		return "disconnect", nil, true
	case eventbus.EventChainIDUpdated:
		id, err := chain.ParseHexChainID(e.ChainID)
		if err != nil {
			return "", nil, false
		}
		return "chainChanged", id, true
	}
	return "", nil, false
}
