package tonconnect

import (
	"errors"
	"runtime"

	"github.com/status-im/dapp-connector/services/connector/commands"
	"github.com/status-im/dapp-connector/services/tonconnect/bridge"
)

const (
	eventConnect      = "connect"
	eventConnectError = "connect_error"
	eventDisconnect   = "disconnect"

	itemAddress = "ton_addr"
	itemProof   = "ton_proof"

	featureSendTransaction = "SendTransaction"
)

// Error codes of connect_error events and request errors.
const (
	CodeUnknown              = 0
	CodeBadRequest           = 1
	CodeManifestNotFound     = 2
	CodeManifestContentError = 3
	CodeUnknownApp           = 100
	CodeUserDeclined         = 300
	CodeMethodNotSupported   = 400
)

var (
	ErrNotStarted           = errors.New("tonconnect adapter is not started")
	ErrUnknownSession       = errors.New("no tonconnect session for sender")
	ErrUnknownHandshake     = errors.New("no pending tonconnect handshake")
	ErrUnsupportedLink      = errors.New("not a tonconnect link")
	ErrMissingParams        = errors.New("tonconnect link is missing required parameters")
	ErrUnsupportedVersion   = errors.New("tonconnect protocol version is not supported")
	ErrManifestNotFound     = errors.New("tonconnect manifest could not be fetched")
	ErrManifestContentError = errors.New("tonconnect manifest is not valid")
)

// Manifest is what a dApp publishes about itself at its manifest url.
type Manifest struct {
	URL              string `json:"url"`
	Name             string `json:"name"`
	IconURL          string `json:"iconUrl"`
	TermsOfUseURL    string `json:"termsOfUseUrl,omitempty"`
	PrivacyPolicyURL string `json:"privacyPolicyUrl,omitempty"`
}

type ConnectItem struct {
	Name    string `json:"name"`
	Payload string `json:"payload,omitempty"`
}

// ConnectRequest is the r parameter of a connect link.
type ConnectRequest struct {
	ManifestURL string        `json:"manifestUrl"`
	Items       []ConnectItem `json:"items"`
}

func (r ConnectRequest) itemNames() []string {
	names := make([]string, 0, len(r.Items))
	for _, item := range r.Items {
		names = append(names, item.Name)
	}
	return names
}

// Connection is a persisted bridge session with one dApp.
type Connection struct {
	Session      *bridge.Session `json:"session"`
	DAppClientID string          `json:"dappClientId"`
	Title        string          `json:"title"`
	URL          string          `json:"url"`
	FaviconURL   string          `json:"faviconUrl,omitempty"`
}

func (c *Connection) ClientID() string {
	return c.Session.ClientID()
}

// handshake is a connect request waiting for the user. It is persisted
// only once approved.
type handshake struct {
	session  *bridge.Session
	dappID   string
	manifest Manifest
	request  ConnectRequest
}

// appRequest is a request sent by a connected dApp.
type appRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     string   `json:"id"`
}

type walletEvent struct {
	Event   string      `json:"event"`
	ID      int64       `json:"id"`
	Payload interface{} `json:"payload"`
}

type walletError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type walletResponse struct {
	Result interface{}  `json:"result,omitempty"`
	Error  *walletError `json:"error,omitempty"`
	ID     string       `json:"id"`
}

type sendTransactionFeature struct {
	Name        string `json:"name"`
	MaxMessages int    `json:"maxMessages"`
}

type DeviceInfo struct {
	Platform           string        `json:"platform"`
	AppName            string        `json:"appName"`
	AppVersion         string        `json:"appVersion"`
	MaxProtocolVersion int           `json:"maxProtocolVersion"`
	Features           []interface{} `json:"features"`
}

type connectPayload struct {
	Items  []commands.TonAddrItem `json:"items"`
	Device DeviceInfo             `json:"device"`
}

func platform() string {
	switch runtime.GOOS {
	case "darwin":
		return "mac"
	case "windows":
		return "windows"
	}
	return "linux"
}

func (a *Adapter) deviceInfo() DeviceInfo {
	return DeviceInfo{
		Platform:           platform(),
		AppName:            a.config.AppName,
		AppVersion:         a.config.AppVersion,
		MaxProtocolVersion: a.config.MaxProtocolVersion,
		Features: []interface{}{
			featureSendTransaction,
			sendTransactionFeature{Name: featureSendTransaction, MaxMessages: commands.TonMaxMessages},
		},
	}
}
