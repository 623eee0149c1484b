package relay

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"
)

const jsonRPCVersion = "2.0"

// Message tags of the sign protocol. Responses use the request tag + 1.
const (
	TagSessionPropose         = 1100
	TagSessionProposeResponse = 1101
	TagSessionSettle          = 1102
	TagSessionSettleResponse  = 1103
	TagSessionUpdate          = 1104
	TagSessionUpdateResponse  = 1105
	TagSessionExtend          = 1106
	TagSessionExtendResponse  = 1107
	TagSessionRequest         = 1108
	TagSessionRequestResponse = 1109
	TagSessionEvent           = 1110
	TagSessionDelete          = 1112
	TagSessionDeleteResponse  = 1113
	TagSessionPing            = 1114
	TagSessionPingResponse    = 1115
	TagPairingDelete          = 1000
	TagPairingDeleteResponse  = 1001
	TagPairingPing            = 1002
	TagPairingPingResponse    = 1003
)

// Message ttls in seconds.
const (
	TTLFiveMinutes = 300
	TTLOneDay      = 86400
)

// SDK reason codes.
const (
	ReasonUserRejected        = 5000
	ReasonUnsupportedChains   = 5100
	ReasonUnsupportedMethods  = 5101
	ReasonUserDisconnected    = 6000
	ReasonInvalidSessionTopic = 7001
)

type Request struct {
	ID      int64           `json:"id"`
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("relay error %d: %s", e.Code, e.Message)
}

type Response struct {
	ID      int64           `json:"id"`
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Payload is either a request or a response; Method tells them apart.
type Payload struct {
	ID      int64           `json:"id"`
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

func (p *Payload) IsRequest() bool {
	return p.Method != ""
}

// PayloadID follows the SDK: milliseconds since epoch with three random digits.
func PayloadID() int64 {
	return time.Now().UnixMilli()*1000 + rand.Int63n(1000) // nolint: gosec
}

func NewRequest(method string, params interface{}) (*Request, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	return &Request{ID: PayloadID(), JSONRPC: jsonRPCVersion, Method: method, Params: data}, nil
}

func NewResult(id int64, result interface{}) (*Response, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return &Response{ID: id, JSONRPC: jsonRPCVersion, Result: data}, nil
}

func NewErrorResponse(id int64, code int, message string) *Response {
	return &Response{ID: id, JSONRPC: jsonRPCVersion, Error: &Error{Code: code, Message: message}}
}
