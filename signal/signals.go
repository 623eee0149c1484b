package signal

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/status-im/dapp-connector/logutils"
)

// MobileSignalHandler receives every signal as a JSON encoded Envelope.
type MobileSignalHandler func([]byte)

var (
	mobileSignalHandler   MobileSignalHandler
	mobileSignalHandlerMu sync.RWMutex
)

// Envelope is a general signal sent upward from the broker to the host app
type Envelope struct {
	Type  string      `json:"type"`
	Event interface{} `json:"event"`
}

// NewEnvelope creates new envlope of given type and event payload.
func NewEnvelope(typ string, event interface{}) *Envelope {
	return &Envelope{
		Type:  typ,
		Event: event,
	}
}

// send sends application signal (in JSON) upwards to application (via default notification handler)
func send(typ string, event interface{}) {
	signal := NewEnvelope(typ, event)
	data, err := json.Marshal(&signal)
	if err != nil {
		logutils.ZapLogger().Error("marshalling signal envelope", zap.String("type", typ), zap.Error(err))
		return
	}

	mobileSignalHandlerMu.RLock()
	handler := mobileSignalHandler
	mobileSignalHandlerMu.RUnlock()

	if handler == nil {
		logutils.ZapLogger().Debug("no signal handler set, dropping signal", zap.String("type", typ))
		return
	}
	handler(data)
}

// SetMobileSignalHandler sets the handler invoked for every signal.
func SetMobileSignalHandler(handler MobileSignalHandler) {
	mobileSignalHandlerMu.Lock()
	defer mobileSignalHandlerMu.Unlock()
	mobileSignalHandler = handler
}

// ResetMobileSignalHandler removes the signal handler.
func ResetMobileSignalHandler() {
	SetMobileSignalHandler(nil)
}
