package commands

import (
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/status-im/dapp-connector/services/connector/chain"
	persistence "github.com/status-im/dapp-connector/services/connector/database"
	"github.com/status-im/dapp-connector/services/connector/eventbus"
)

var (
	ErrInvalidAddress     = errors.New("invalid address")
	ErrInvalidTransaction = errors.New("transaction params are not valid")
)

// evmReadMethods are forwarded to the node without user interaction.
var evmReadMethods = []string{
	"eth_blockNumber",
	"eth_call",
	"eth_estimateGas",
	"eth_feeHistory",
	"eth_gasPrice",
	"eth_getBalance",
	"eth_getBlockByHash",
	"eth_getBlockByNumber",
	"eth_getCode",
	"eth_getLogs",
	"eth_getStorageAt",
	"eth_getTransactionByHash",
	"eth_getTransactionCount",
	"eth_getTransactionReceipt",
	"eth_maxPriorityFeePerGas",
	"net_version",
	"web3_clientVersion",
}

type EvmStrategy struct{}

func NewEvmStrategy() *EvmStrategy {
	return &EvmStrategy{}
}

func (s *EvmStrategy) Family() chain.Family {
	return chain.Evm
}

func (s *EvmStrategy) Methods() map[string]string {
	m := map[string]string{
		MethodConnect:                MethodConnect,
		MethodDisconnect:             MethodDisconnect,
		MethodRPC:                    MethodRPC,
		MethodSwitchChain:            MethodSwitchChain,
		MethodSignMessage:            MethodSignMessage,
		MethodSignTypedData:          MethodSignTypedData,
		MethodSignTransaction:        MethodSignTransaction,
		MethodSignAndSendTransaction: MethodSignAndSendTransaction,
		MethodGetProviderState:       MethodGetProviderState,
		MethodAccounts:               MethodAccounts,
		MethodChainID:                MethodChainID,

		"eth_requestAccounts":        MethodConnect,
		"wallet_requestPermissions":  MethodConnect,
		"eth_accounts":               MethodAccounts,
		"eth_chainId":                MethodChainID,
		"wallet_revokePermissions":   MethodDisconnect,
		"wallet_switchEthereumChain": MethodSwitchChain,
		"personal_sign":              MethodSignMessage,
		"eth_sign":                   MethodSignMessage,
		"eth_signTypedData":          MethodSignTypedData,
		"eth_signTypedData_v4":       MethodSignTypedData,
		"eth_signTransaction":        MethodSignTransaction,
		"eth_sendTransaction":        MethodSignAndSendTransaction,
		"eth_sendRawTransaction":     MethodSignAndSendTransaction,
	}
	for _, method := range evmReadMethods {
		m[method] = MethodRPC
	}
	return m
}

// evmReadPrefixes route unlisted node reads to the passthrough.
var evmReadPrefixes = []string{"eth_get", "net_", "web3_"}

func (s *EvmStrategy) FallbackMethod(method string) (string, bool) {
	for _, prefix := range evmReadPrefixes {
		if strings.HasPrefix(method, prefix) {
			return MethodRPC, true
		}
	}
	return "", false
}

type evmConnectParams struct {
	ShouldPrompt *bool  `json:"shouldPrompt"`
	ChainID      string `json:"chainId"`
}

// ParseConnect prompts for every dApp facing alias. The internal connect
// method takes an optional {shouldPrompt, chainId} object.
func (s *EvmStrategy) ParseConnect(req *RPCRequest) (ConnectParams, error) {
	params := ConnectParams{ShouldPrompt: true}
	if req.Method != MethodConnect || len(req.Params) == 0 {
		return params, nil
	}

	var p evmConnectParams
	if err := req.param(0, &p); err != nil {
		return params, err
	}
	if p.ShouldPrompt != nil {
		params.ShouldPrompt = *p.ShouldPrompt
	}
	if p.ChainID != "" {
		id, err := chain.ParseHexChainID(p.ChainID)
		if err != nil {
			return params, ErrUnsupportedChain
		}
		params.ChainID = id
	}
	return params, nil
}

type permission struct {
	ParentCapability string        `json:"parentCapability"`
	Caveats          []interface{} `json:"caveats"`
}

func (s *EvmStrategy) ConnectResult(method string, wallet chain.Wallet, chainID int64) interface{} {
	switch method {
	case "eth_requestAccounts":
		return []string{wallet.Address}
	case "wallet_requestPermissions":
		return []permission{{
			ParentCapability: "eth_accounts",
			Caveats: []interface{}{map[string]interface{}{
				"type":  "restrictReturnedAccounts",
				"value": []string{wallet.Address},
			}},
		}}
	}
	return map[string]interface{}{
		"publicKey": wallet.Address,
		"chainId":   chain.HexChainID(chainID),
	}
}

type switchEthereumChainParams struct {
	ChainID string `json:"chainId"`
}

func (s *EvmStrategy) ParseSwitchChain(req *RPCRequest) (int64, error) {
	var p switchEthereumChainParams
	if err := req.param(0, &p); err != nil {
		return 0, err
	}
	if p.ChainID == "" {
		return 0, ErrSwitchChainNotValid
	}
	id, err := chain.ParseHexChainID(p.ChainID)
	if err != nil {
		return 0, ErrSwitchChainNotValid
	}
	return id, nil
}

func (s *EvmStrategy) DecodeSign(method string, req *RPCRequest) (*SignPayload, error) {
	switch method {
	case MethodSignMessage:
		return s.decodeMessage(req)
	case MethodSignTypedData:
		return s.decodeTypedData(req)
	case MethodSignTransaction:
		return s.decodeTransaction(req, false)
	case MethodSignAndSendTransaction:
		if req.Method == "eth_sendRawTransaction" {
			return s.decodeRawTransaction(req)
		}
		return s.decodeTransaction(req, true)
	}
	return nil, ErrMethodNotSupported
}

// decodeMessage handles personal_sign [data, address] and eth_sign
// [address, data]. Data is hex when it parses as such, text otherwise.
func (s *EvmStrategy) decodeMessage(req *RPCRequest) (*SignPayload, error) {
	dataIdx, addrIdx := 0, 1
	if req.Method == "eth_sign" {
		dataIdx, addrIdx = 1, 0
	}
	data, err := req.stringParam(dataIdx)
	if err != nil {
		return nil, err
	}
	address, err := req.stringParam(addrIdx)
	if err != nil {
		return nil, err
	}
	if !chain.IsEvmAddress(address) {
		return nil, ErrInvalidAddress
	}

	message, err := hexutil.Decode(data)
	if err != nil {
		if !utf8.ValidString(data) {
			return nil, err
		}
		message = []byte(data)
	}
	return &SignPayload{
		Address: common.HexToAddress(address).Hex(),
		Message: message,
	}, nil
}

// decodeTypedData handles [address, typedData].
func (s *EvmStrategy) decodeTypedData(req *RPCRequest) (*SignPayload, error) {
	address, err := req.stringParam(0)
	if err != nil {
		return nil, err
	}
	if !chain.IsEvmAddress(address) {
		return nil, ErrInvalidAddress
	}
	if len(req.Params) < 2 {
		return nil, ErrEmptyRPCParams
	}
	typedData, err := parseTypedData(req.Params[1])
	if err != nil {
		return nil, err
	}
	return &SignPayload{
		Address:   common.HexToAddress(address).Hex(),
		TypedData: typedData,
	}, nil
}

type evmTransaction struct {
	From *common.Address `json:"from"`
	To   *common.Address `json:"to"`
	Data *hexutil.Bytes  `json:"data"`
}

func (s *EvmStrategy) decodeTransaction(req *RPCRequest, broadcast bool) (*SignPayload, error) {
	if len(req.Params) == 0 {
		return nil, ErrEmptyRPCParams
	}
	raw, err := json.Marshal(req.Params[0])
	if err != nil {
		return nil, err
	}
	var tx evmTransaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, err
	}
	if tx.From == nil {
		return nil, ErrInvalidTransaction
	}
	if tx.To == nil && (tx.Data == nil || len(*tx.Data) == 0) {
		return nil, ErrInvalidTransaction
	}
	return &SignPayload{
		Address:     tx.From.Hex(),
		Transaction: raw,
		Broadcast:   broadcast,
	}, nil
}

func (s *EvmStrategy) decodeRawTransaction(req *RPCRequest) (*SignPayload, error) {
	data, err := req.stringParam(0)
	if err != nil {
		return nil, err
	}
	rawTx, err := hexutil.Decode(data)
	if err != nil {
		return nil, err
	}
	return &SignPayload{
		RawTransaction: rawTx,
		Broadcast:      true,
	}, nil
}

type EvmProviderState struct {
	Accounts    []string `json:"accounts"`
	ChainID     string   `json:"chainId"`
	IsConnected bool     `json:"isConnected"`
}

func (s *EvmStrategy) ProviderState(conn *persistence.Connection, chainID int64) interface{} {
	state := EvmProviderState{
		Accounts: []string{},
		ChainID:  chain.HexChainID(chainID),
	}
	if conn != nil {
		state.Accounts = append(state.Accounts, conn.Wallet.Address)
		state.IsConnected = true
	}
	return state
}

func (s *EvmStrategy) FormatChainID(chainID int64) interface{} {
	return chain.HexChainID(chainID)
}

func (s *EvmStrategy) Notification(e eventbus.Event) (string, interface{}, bool) {
	switch e.Type {
	case eventbus.EventChainIDUpdated:
		if e.ChainID == "" {
			return "", nil, false
		}
		return "chainChanged", strings.ToLower(e.ChainID), true
	case eventbus.EventWalletChanged:
		if e.Wallet == nil {
			return "accountsChanged", []string{}, true
		}
		return "accountsChanged", []string{e.Wallet.Address}, true
	case eventbus.EventConnected:
		return "connect", map[string]string{"chainId": e.ChainID}, true
	case eventbus.EventDisconnected:
		return "accountsChanged", []string{}, true
	}
	return "", nil, false
}
