// Package bridge talks to a TonConnect HTTP bridge: an SSE stream for
// inbound messages and POST requests for outbound ones.
package bridge

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gojek/heimdall/v7"
	"github.com/gojek/heimdall/v7/httpclient"
	"github.com/pkg/errors"
	"github.com/r3labs/sse/v2"
	"go.uber.org/zap"

	"github.com/status-im/dapp-connector/logutils"
)

const (
	eventsPath     = "/events"
	messagePath    = "/message"
	heartbeatEvent = "heartbeat"

	requestTimeout = 10 * time.Second
	retryCount     = 2
	resubscribeGap = time.Second
)

var ErrBridgeStatus = errors.New("bridge returned an unexpected status")

// Event is a message delivered by the bridge.
type Event struct {
	ID      string
	From    string
	Message []byte
}

type bridgeMessage struct {
	From    string `json:"from"`
	Message string `json:"message"`
}

type Client struct {
	baseURL string
	http    *httpclient.Client
	logger  *zap.Logger
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http: httpclient.NewClient(
			httpclient.WithHTTPTimeout(requestTimeout),
			httpclient.WithRetryCount(retryCount),
			httpclient.WithRetrier(heimdall.NewRetrier(heimdall.NewConstantBackoff(200*time.Millisecond, 100*time.Millisecond))),
		),
		logger: logutils.ZapLogger().Named("tonconnect-bridge"),
	}
}

// EventsURL is the SSE endpoint for clientIDs. The bridge expects the ids
// comma joined, not repeated.
func (c *Client) EventsURL(clientIDs []string, lastEventID string) string {
	u := c.baseURL + eventsPath + "?client_id=" + strings.Join(clientIDs, ",")
	if lastEventID != "" {
		u += "&last_event_id=" + lastEventID
	}
	return u
}

// Listen streams events for clientIDs until ctx is done, reconnecting with
// exponential backoff.
func (c *Client) Listen(ctx context.Context, clientIDs []string, lastEventID string, handler func(Event)) error {
	stream := sse.NewClient(c.EventsURL(clientIDs, lastEventID))
	// retry until ctx is done
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 0
	stream.ReconnectStrategy = backoff.WithContext(b, ctx)
	stream.ReconnectNotify = func(err error, next time.Duration) {
		c.logger.Debug("bridge stream reconnecting", zap.Error(err), zap.Duration("in", next))
	}

	for {
		err := stream.SubscribeRawWithContext(ctx, func(msg *sse.Event) {
			c.onEvent(msg, handler)
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			return errors.Wrap(err, "bridge stream")
		}
		// the bridge closed the stream, open it again
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(resubscribeGap):
		}
	}
}

func (c *Client) onEvent(msg *sse.Event, handler func(Event)) {
	if string(msg.Event) == heartbeatEvent || len(msg.Data) == 0 || string(msg.Data) == heartbeatEvent {
		return
	}
	var m bridgeMessage
	if err := json.Unmarshal(msg.Data, &m); err != nil {
		c.logger.Warn("malformed bridge event", zap.Error(err))
		return
	}
	payload, err := base64.StdEncoding.DecodeString(m.Message)
	if err != nil {
		c.logger.Warn("bridge event is not base64", zap.Error(err))
		return
	}
	handler(Event{ID: string(msg.ID), From: m.From, Message: payload})
}

// Send posts an encrypted message from one client id to another.
func (c *Client) Send(ctx context.Context, from, to string, ttl int, message []byte) error {
	u := fmt.Sprintf("%s%s?client_id=%s&to=%s&ttl=%d", c.baseURL, messagePath, from, to, ttl)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(base64.StdEncoding.EncodeToString(message)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "bridge post")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Wrapf(ErrBridgeStatus, "status %d", resp.StatusCode)
	}
	return nil
}
