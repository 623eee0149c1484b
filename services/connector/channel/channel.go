// Package channel is the transport between the broker and dApps running in
// the wallet's embedded web content. Messages go out through host signals.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	statusErrors "github.com/status-im/dapp-connector/errors"
	"github.com/status-im/dapp-connector/logutils"
	"github.com/status-im/dapp-connector/services/connector/chain"
	"github.com/status-im/dapp-connector/services/connector/commands"
	"github.com/status-im/dapp-connector/services/connector/origin"
	"github.com/status-im/dapp-connector/signal"
)

const (
	typePrefix         = "channel-"
	suffixRequest      = "-rpc-request"
	suffixResponse     = "-rpc-response"
	suffixNotification = "-rpc-notification"
)

var (
	ErrInvalidMessageType = errors.New("invalid channel message type")
	ErrMissingSender      = errors.New("channel message has no sender url")
)

// Message is the envelope exchanged with the page.
type Message struct {
	Type   string          `json:"type"`
	Detail json.RawMessage `json:"detail"`
}

type requestDetail struct {
	Sender       origin.Sender        `json:"sender"`
	PageMetadata *origin.PageMetadata `json:"pageMetadata,omitempty"`
	Request      commands.RPCRequest  `json:"request"`
}

type responseDetail struct {
	JSONRPC string                      `json:"jsonrpc"`
	ID      commands.RequestID          `json:"id"`
	Result  interface{}                 `json:"result,omitempty"`
	Error   *statusErrors.ProviderError `json:"error,omitempty"`
}

type notificationDetail struct {
	Method string      `json:"method"`
	Params interface{} `json:"params"`
}

func RequestType(family chain.Family) string {
	return typePrefix + string(family) + suffixRequest
}

func ResponseType(family chain.Family) string {
	return typePrefix + string(family) + suffixResponse
}

func NotificationType(family chain.Family) string {
	return typePrefix + string(family) + suffixNotification
}

// ParseMessage decodes an inbound page message into the family it targets
// and a request context without transport tags.
func ParseMessage(data []byte) (chain.Family, *commands.RequestContext, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return "", nil, err
	}
	if !strings.HasPrefix(msg.Type, typePrefix) || !strings.HasSuffix(msg.Type, suffixRequest) {
		return "", nil, fmt.Errorf("%w: %q", ErrInvalidMessageType, msg.Type)
	}
	family, err := chain.ParseFamily(strings.TrimSuffix(strings.TrimPrefix(msg.Type, typePrefix), suffixRequest))
	if err != nil {
		return "", nil, err
	}

	var detail requestDetail
	if err := json.Unmarshal(msg.Detail, &detail); err != nil {
		return "", nil, err
	}
	if detail.Sender.URL == "" {
		return "", nil, ErrMissingSender
	}
	if detail.Request.Params == nil {
		detail.Request.Params = []interface{}{}
	}
	return family, &commands.RequestContext{
		Sender:       detail.Sender,
		PageMetadata: detail.PageMetadata,
		Request:      detail.Request,
	}, nil
}

// SendFunc posts a message into the web content of an origin.
type SendFunc func(originKey string, typ string, detail json.RawMessage)

// Channel delivers responses and notifications to the origins that have an
// open channel. Messages for other origins are dropped.
type Channel struct {
	send   SendFunc
	logger *zap.Logger

	mu     sync.RWMutex
	active map[string]struct{}
}

func New(send SendFunc) *Channel {
	if send == nil {
		send = signal.SendConnectorChannelMessage
	}
	return &Channel{
		send:   send,
		logger: logutils.ZapLogger().Named("channel"),
		active: make(map[string]struct{}),
	}
}

// Attach marks the channel of originKey as open.
func (c *Channel) Attach(originKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active[originKey] = struct{}{}
}

func (c *Channel) Detach(originKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.active, originKey)
}

func (c *Channel) IsActive(originKey string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.active[originKey]
	return ok
}

func (c *Channel) Respond(ctx context.Context, family chain.Family, rc *commands.RequestContext, result interface{}) error {
	return c.post(rc.Origin().Key(), ResponseType(family), responseDetail{
		JSONRPC: "2.0",
		ID:      rc.Request.ID,
		Result:  nullable(result),
	})
}

func (c *Channel) Reject(ctx context.Context, family chain.Family, rc *commands.RequestContext, err *statusErrors.ProviderError) error {
	return c.post(rc.Origin().Key(), ResponseType(family), responseDetail{
		JSONRPC: "2.0",
		ID:      rc.Request.ID,
		Error:   err,
	})
}

func (c *Channel) Notify(ctx context.Context, family chain.Family, originKey string, method string, params interface{}) error {
	return c.post(originKey, NotificationType(family), notificationDetail{
		Method: method,
		Params: params,
	})
}

func (c *Channel) post(originKey string, typ string, detail interface{}) error {
	if !c.IsActive(originKey) {
		c.logger.Debug("channel is not active, dropping message", zap.String("origin", originKey), zap.String("type", typ))
		return nil
	}
	data, err := json.Marshal(detail)
	if err != nil {
		return err
	}
	c.send(originKey, typ, data)
	return nil
}

// nullable keeps a nil result visible as JSON null.
func nullable(result interface{}) interface{} {
	if result == nil {
		return json.RawMessage("null")
	}
	return result
}
