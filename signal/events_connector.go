package signal

import "encoding/json"

const (
	EventConnectorNavigate       = "connector.navigate"
	EventConnectorChannelMessage = "connector.channelMessage"
)

// ConnectorNavigateSignal asks the host to show an approval screen.
type ConnectorNavigateSignal struct {
	Kind      string          `json:"kind"`
	Family    string          `json:"family"`
	RequestID string          `json:"requestId"`
	Payload   json.RawMessage `json:"payload"`
}

// ConnectorChannelMessageSignal carries a message that the host must post
// into the embedded web content of Origin.
type ConnectorChannelMessageSignal struct {
	Origin string          `json:"origin"`
	Type   string          `json:"type"`
	Detail json.RawMessage `json:"detail"`
}

func SendConnectorNavigate(kind, family, requestID string, payload json.RawMessage) {
	send(EventConnectorNavigate, ConnectorNavigateSignal{
		Kind:      kind,
		Family:    family,
		RequestID: requestID,
		Payload:   payload,
	})
}

func SendConnectorChannelMessage(origin, typ string, detail json.RawMessage) {
	send(EventConnectorChannelMessage, ConnectorChannelMessageSignal{
		Origin: origin,
		Type:   typ,
		Detail: detail,
	})
}
