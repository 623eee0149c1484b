package signal

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSendWithoutHandlerIsDropped(t *testing.T) {
	ResetMobileSignalHandler()
	require.NotPanics(t, func() {
		SendConnectorNavigate("connection", "evm", "1", json.RawMessage(`{}`))
	})
}

func TestSendConnectorChannelMessage(t *testing.T) {
	var got []byte
	SetMobileSignalHandler(func(data []byte) { got = data })
	defer ResetMobileSignalHandler()

	SendConnectorChannelMessage("https://dapp.example", "channel-evm-rpc-response", json.RawMessage(`{"id":"1"}`))

	var envelope struct {
		Type  string                        `json:"type"`
		Event ConnectorChannelMessageSignal `json:"event"`
	}
	require.NoError(t, json.Unmarshal(got, &envelope))
	require.Equal(t, EventConnectorChannelMessage, envelope.Type)
	require.Equal(t, "https://dapp.example", envelope.Event.Origin)
	require.Equal(t, "channel-evm-rpc-response", envelope.Event.Type)
	require.JSONEq(t, `{"id":"1"}`, string(envelope.Event.Detail))
}
