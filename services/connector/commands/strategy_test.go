package commands

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/status-im/dapp-connector/services/connector/chain"
	persistence "github.com/status-im/dapp-connector/services/connector/database"
	"github.com/status-im/dapp-connector/services/connector/eventbus"
)

const mailTypedData = `{
	"types": {
		"Person": [{"name": "name", "type": "string"}, {"name": "wallet", "type": "address"}],
		"Mail": [{"name": "from", "type": "Person"}, {"name": "to", "type": "Person"}, {"name": "contents", "type": "string"}]
	},
	"primaryType": "Mail",
	"domain": {"name": "Ether Mail", "version": "1", "chainId": 1, "verifyingContract": "0xCcCCccccCCCCcCCCCCCcCcCccCcCCCcCcccccccC"},
	"message": {
		"from": {"name": "Cow", "wallet": "0xCD2a3d9F938E13CD947Ec05AbC7FE734Df8DD826"},
		"to": {"name": "Bob", "wallet": "0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB"},
		"contents": "Hello, Bob!"
	}
}`

func request(method string, params ...interface{}) *RPCRequest {
	return &RPCRequest{ID: "1", Method: method, Params: params}
}

func TestEvmDecodeMessage(t *testing.T) {
	s := NewEvmStrategy()

	payload, err := s.DecodeSign(MethodSignMessage, request("personal_sign", "hello", testWallet.Address))
	require.NoError(t, err)
	require.Equal(t, "hello", string(payload.Message))

	payload, err = s.DecodeSign(MethodSignMessage, request("eth_sign", testWallet.Address, "0xdeadbeef"))
	require.NoError(t, err)
	require.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, []byte(payload.Message))

	_, err = s.DecodeSign(MethodSignMessage, request("personal_sign", "hello", "not-an-address"))
	require.ErrorIs(t, err, ErrInvalidAddress)

	_, err = s.DecodeSign(MethodSignMessage, request("personal_sign"))
	require.ErrorIs(t, err, ErrEmptyRPCParams)
}

func TestEvmDecodeTypedData(t *testing.T) {
	s := NewEvmStrategy()

	payload, err := s.DecodeSign(MethodSignTypedData, request("eth_signTypedData_v4", testWallet.Address, mailTypedData))
	require.NoError(t, err)
	require.Equal(t, "Mail", payload.TypedData.PrimaryType)
	require.Len(t, payload.TypedData.Types["EIP712Domain"], 4)

	var obj map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(mailTypedData), &obj))
	_, err = s.DecodeSign(MethodSignTypedData, request("eth_signTypedData_v4", testWallet.Address, obj))
	require.NoError(t, err)

	_, err = s.DecodeSign(MethodSignTypedData, request("eth_signTypedData_v4", testWallet.Address, `{"types": {}}`))
	require.ErrorIs(t, err, ErrTypedDataNotValid)
}

func TestEvmDecodeTransaction(t *testing.T) {
	s := NewEvmStrategy()

	tx := map[string]interface{}{"from": testWallet.Address, "to": testSafe.Address, "value": "0x1"}
	payload, err := s.DecodeSign(MethodSignTransaction, request("eth_signTransaction", tx))
	require.NoError(t, err)
	require.False(t, payload.Broadcast)
	require.NotEmpty(t, payload.Transaction)

	_, err = s.DecodeSign(MethodSignAndSendTransaction, request("eth_sendTransaction", map[string]interface{}{"to": testSafe.Address}))
	require.ErrorIs(t, err, ErrInvalidTransaction)

	payload, err = s.DecodeSign(MethodSignAndSendTransaction, request("eth_sendRawTransaction", "0x01ff"))
	require.NoError(t, err)
	require.True(t, payload.Broadcast)
	require.Equal(t, []byte{0x01, 0xff}, []byte(payload.RawTransaction))
}

func TestEvmNotifications(t *testing.T) {
	s := NewEvmStrategy()

	method, params, ok := s.Notification(eventbus.Event{Type: eventbus.EventChainIDUpdated, ChainID: "0xA"})
	require.True(t, ok)
	require.Equal(t, "chainChanged", method)
	require.Equal(t, "0xa", params)

	method, params, ok = s.Notification(eventbus.Event{Type: eventbus.EventDisconnected})
	require.True(t, ok)
	require.Equal(t, "accountsChanged", method)
	require.Equal(t, []string{}, params)
}

func TestSolanaConnect(t *testing.T) {
	s := NewSolanaStrategy()

	params, err := s.ParseConnect(request(MethodConnect))
	require.NoError(t, err)
	require.True(t, params.ShouldPrompt)

	params, err = s.ParseConnect(request(MethodConnect, map[string]interface{}{"onlyIfTrusted": true}))
	require.NoError(t, err)
	require.False(t, params.ShouldPrompt)
}

func TestSolanaDecodeSign(t *testing.T) {
	s := NewSolanaStrategy()
	pubkey := "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"

	// base58 of "hello"
	payload, err := s.DecodeSign(MethodSignMessage, request("signMessage", "Cn8eVZg"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(payload.Message))

	payload, err = s.DecodeSign(MethodSignMessage, request("solana_signMessage", map[string]interface{}{"message": "Cn8eVZg", "pubkey": pubkey}))
	require.NoError(t, err)
	require.Equal(t, pubkey, payload.Address)
	require.Equal(t, "hello", string(payload.Message))

	payload, err = s.DecodeSign(MethodSignMessage, request("signMessage", []interface{}{104.0, 105.0}))
	require.NoError(t, err)
	require.Equal(t, "hi", string(payload.Message))

	payload, err = s.DecodeSign(MethodSignTransaction, request("signTransaction", map[string]interface{}{"transaction": "aGk=", "encoding": "base64"}))
	require.NoError(t, err)
	require.Equal(t, "hi", string(payload.RawTransaction))
	require.False(t, payload.Broadcast)

	payload, err = s.DecodeSign(MethodSignAndSendTransaction, request("signAndSendTransaction", "Cn8eVZg"))
	require.NoError(t, err)
	require.True(t, payload.Broadcast)

	_, err = s.DecodeSign(MethodSignTypedData, request("signTypedData"))
	require.ErrorIs(t, err, ErrMethodNotSupported)

	_, err = s.DecodeSign(MethodSignMessage, request("signMessage", ""))
	require.ErrorIs(t, err, ErrEmptyPayload)
}

func TestSolanaProviderState(t *testing.T) {
	s := NewSolanaStrategy()
	wallet := chain.Wallet{Address: "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM", Family: chain.Solana}

	state := s.ProviderState(&persistence.Connection{Wallet: wallet, ChainID: 101}, 101).(SolanaProviderState)
	require.True(t, state.IsConnected)
	require.Equal(t, wallet.Address, *state.PublicKey)

	method, params, ok := s.Notification(eventbus.Event{Type: eventbus.EventChainIDUpdated, ChainID: "103"})
	require.True(t, ok)
	require.Equal(t, "chainChanged", method)
	require.Equal(t, int64(103), params)
}

const tonRawAddress = "0:83dfd552e63729b472fcbcc8c45ebcc6691702558b68ec7527e1ba403a0f31a8"

func TestTonMethods(t *testing.T) {
	s := NewTonStrategy()

	params, err := s.ParseConnect(request("restoreConnection"))
	require.NoError(t, err)
	require.False(t, params.ShouldPrompt)

	params, err = s.ParseConnect(request("connect"))
	require.NoError(t, err)
	require.True(t, params.ShouldPrompt)

	_, err = s.ParseSwitchChain(request("switchChain"))
	require.ErrorIs(t, err, ErrMethodNotSupported)

	_, ok := s.Methods()[MethodSwitchChain]
	require.False(t, ok)
}

func TestTonConnectResult(t *testing.T) {
	s := NewTonStrategy()
	wallet := chain.Wallet{Address: tonRawAddress, PublicKey: "abcd", Family: chain.Ton}

	result := s.ConnectResult("connect", wallet, -239).(TonConnectResult)
	require.Len(t, result.Items, 1)
	require.Equal(t, "ton_addr", result.Items[0].Name)
	require.Equal(t, tonRawAddress, result.Items[0].Address)
	require.Equal(t, "-239", result.Items[0].Network)
	require.Equal(t, "abcd", result.Items[0].PublicKey)
}

func TestTonDecodeTransaction(t *testing.T) {
	s := NewTonStrategy()
	now := time.Unix(1700000000, 0)
	s.now = func() time.Time { return now }

	tx := func(v interface{}) *RPCRequest {
		data, err := json.Marshal(v)
		require.NoError(t, err)
		return request("sendTransaction", string(data))
	}
	message := map[string]interface{}{"address": tonRawAddress, "amount": "1000000"}

	payload, err := s.DecodeSign(MethodSignAndSendTransaction, tx(map[string]interface{}{
		"valid_until": now.Add(time.Minute).Unix(),
		"network":     "-239",
		"messages":    []interface{}{message},
	}))
	require.NoError(t, err)
	require.True(t, payload.Broadcast)
	require.True(t, json.Valid(payload.Transaction))

	_, err = s.DecodeSign(MethodSignAndSendTransaction, tx(map[string]interface{}{"messages": []interface{}{}}))
	require.ErrorIs(t, err, ErrTonMessagesCount)

	five := []interface{}{message, message, message, message, message}
	_, err = s.DecodeSign(MethodSignAndSendTransaction, tx(map[string]interface{}{"messages": five}))
	require.ErrorIs(t, err, ErrTonMessagesCount)

	_, err = s.DecodeSign(MethodSignAndSendTransaction, tx(map[string]interface{}{
		"messages": []interface{}{map[string]interface{}{"address": tonRawAddress, "amount": "1.5"}},
	}))
	require.ErrorIs(t, err, ErrTonAmount)

	_, err = s.DecodeSign(MethodSignAndSendTransaction, tx(map[string]interface{}{
		"messages": []interface{}{map[string]interface{}{"address": "nope", "amount": "1"}},
	}))
	require.ErrorIs(t, err, ErrInvalidAddress)

	_, err = s.DecodeSign(MethodSignAndSendTransaction, tx(map[string]interface{}{
		"valid_until": now.Add(-time.Minute).Unix(),
		"messages":    []interface{}{message},
	}))
	require.ErrorIs(t, err, ErrTonExpired)
}

func TestTonNotifications(t *testing.T) {
	s := NewTonStrategy()

	method, _, ok := s.Notification(eventbus.Event{Type: eventbus.EventDisconnected})
	require.True(t, ok)
	require.Equal(t, "disconnect", method)

	_, _, ok = s.Notification(eventbus.Event{Type: eventbus.EventChainIDUpdated, ChainID: "-3"})
	require.False(t, ok)
}
