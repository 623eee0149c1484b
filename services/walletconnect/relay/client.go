package relay

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/status-im/dapp-connector/logutils"
	"github.com/status-im/dapp-connector/services/wallet/async"
)

const (
	DefaultRelayURL = "wss://relay.walletconnect.com"

	methodSubscribe    = "irn_subscribe"
	methodUnsubscribe  = "irn_unsubscribe"
	methodPublish      = "irn_publish"
	methodSubscription = "irn_subscription"

	requestTimeout = 10 * time.Second
	pingInterval   = 30 * time.Second
	writeTimeout   = 5 * time.Second
)

var (
	ErrNotConnected = errors.New("relay not connected")
	ErrClosed       = errors.New("relay client closed")
)

// MessageHandler receives every message published on a subscribed topic.
type MessageHandler func(topic, message string, tag int)

type Config struct {
	URL       string
	ProjectID string
	// Origin is sent with the websocket handshake; the relay checks it
	// against the project allow list.
	Origin string
}

type publishParams struct {
	Topic   string `json:"topic"`
	Message string `json:"message"`
	TTL     int    `json:"ttl"`
	Tag     int    `json:"tag"`
	Prompt  bool   `json:"prompt,omitempty"`
}

type subscribeParams struct {
	Topic string `json:"topic"`
}

type unsubscribeParams struct {
	Topic string `json:"topic"`
	ID    string `json:"id"`
}

type subscriptionParams struct {
	ID   string `json:"id"`
	Data struct {
		Topic       string `json:"topic"`
		Message     string `json:"message"`
		PublishedAt int64  `json:"publishedAt"`
		Tag         int    `json:"tag"`
	} `json:"data"`
}

// Client is a WalletConnect relay client over a single websocket. It
// reconnects with exponential backoff and restores subscriptions.
type Client struct {
	config  Config
	key     ed25519.PrivateKey
	handler MessageHandler
	dialer  *websocket.Dialer
	logger  *zap.Logger

	mu            sync.Mutex
	conn          *websocket.Conn
	subscriptions map[string]string
	pending       map[int64]chan *Payload
	group         *async.Group

	writeMu sync.Mutex
}

func NewClient(config Config, key ed25519.PrivateKey, handler MessageHandler) *Client {
	if config.URL == "" {
		config.URL = DefaultRelayURL
	}
	return &Client{
		config:        config,
		key:           key,
		handler:       handler,
		dialer:        websocket.DefaultDialer,
		logger:        logutils.ZapLogger().Named("wc-relay"),
		subscriptions: make(map[string]string),
		pending:       make(map[int64]chan *Payload),
	}
}

func (c *Client) connectURL() (string, error) {
	u, err := url.Parse(c.config.URL)
	if err != nil {
		return "", err
	}
	token, err := SignAuthToken(c.key, c.config.URL, time.Now())
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("auth", token)
	q.Set("projectId", c.config.ProjectID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	target, err := c.connectURL()
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	if c.config.Origin != "" {
		header.Set("Origin", c.config.Origin)
	}
	conn, _, err := c.dialer.DialContext(ctx, target, header)
	return conn, err
}

// Start opens the socket and keeps it alive until Stop.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.group != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
	c.group = async.NewGroup(context.Background())
	c.group.Add(c.run)
	c.group.Add(async.InfiniteCommand{Interval: pingInterval, Runable: c.ping}.Run)
	return nil
}

// Stop closes the socket and fails every pending request.
func (c *Client) Stop() {
	c.mu.Lock()
	group := c.group
	conn := c.conn
	c.group = nil
	c.conn = nil
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if group == nil {
		return
	}
	group.Stop()
	if conn != nil {
		_ = conn.Close()
	}
	group.Wait()
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *Client) run(ctx context.Context) error {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn != nil {
			c.readLoop(conn)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()

		if err := c.reconnect(ctx); err != nil {
			return err
		}
	}
}

func (c *Client) reconnect(ctx context.Context) error {
	var conn *websocket.Conn
	err := backoff.Retry(func() error {
		var err error
		conn, err = c.dial(ctx)
		if err != nil {
			c.logger.Debug("relay reconnect failed", zap.Error(err))
		}
		return err
	}, backoff.WithContext(backoff.NewExponentialBackOff(), ctx))
	if err != nil {
		return err
	}

	c.mu.Lock()
	if ctx.Err() != nil {
		c.mu.Unlock()
		_ = conn.Close()
		return ctx.Err()
	}
	c.conn = conn
	topics := make([]string, 0, len(c.subscriptions))
	for topic := range c.subscriptions {
		topics = append(topics, topic)
	}
	c.mu.Unlock()

	c.logger.Info("relay reconnected", zap.Int("subscriptions", len(topics)))
	go func() {
		for _, topic := range topics {
			if err := c.Subscribe(ctx, topic); err != nil {
				c.logger.Warn("resubscribe failed", zap.String("topic", topic), zap.Error(err))
			}
		}
	}()
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.logger.Debug("relay read stopped", zap.Error(err))
			return
		}
		var payload Payload
		if err := json.Unmarshal(data, &payload); err != nil {
			c.logger.Warn("malformed relay payload", zap.Error(err))
			continue
		}
		if payload.IsRequest() {
			c.handleRequest(&payload)
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[payload.ID]
		delete(c.pending, payload.ID)
		c.mu.Unlock()
		if ok {
			ch <- &payload
		}
	}
}

func (c *Client) handleRequest(payload *Payload) {
	if payload.Method != methodSubscription {
		c.logger.Debug("ignoring relay request", zap.String("method", payload.Method))
		return
	}
	var params subscriptionParams
	if err := json.Unmarshal(payload.Params, &params); err != nil {
		c.logger.Warn("malformed subscription payload", zap.Error(err))
		return
	}

	ack, err := NewResult(payload.ID, true)
	if err == nil {
		err = c.write(ack)
	}
	if err != nil {
		c.logger.Warn("failed to ack relay message", zap.Error(err))
	}

	if c.handler != nil {
		c.handler(params.Data.Topic, params.Data.Message, params.Data.Tag)
	}
}

func (c *Client) ping(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

func (c *Client) write(v interface{}) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(v)
}

func (c *Client) call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	req, err := NewRequest(method, params)
	if err != nil {
		return nil, err
	}

	ch := make(chan *Payload, 1)
	c.mu.Lock()
	c.pending[req.ID] = ch
	c.mu.Unlock()

	cleanup := func() {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
	}

	if err := c.write(req); err != nil {
		cleanup()
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		cleanup()
		return nil, ctx.Err()
	case resp, ok := <-ch:
		if !ok {
			return nil, ErrClosed
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	}
}

// Subscribe starts delivering messages published on topic.
func (c *Client) Subscribe(ctx context.Context, topic string) error {
	result, err := c.call(ctx, methodSubscribe, subscribeParams{Topic: topic})
	if err != nil {
		return err
	}
	var id string
	if err := json.Unmarshal(result, &id); err != nil {
		return err
	}
	c.mu.Lock()
	c.subscriptions[topic] = id
	c.mu.Unlock()
	return nil
}

func (c *Client) Unsubscribe(ctx context.Context, topic string) error {
	c.mu.Lock()
	id, ok := c.subscriptions[topic]
	delete(c.subscriptions, topic)
	c.mu.Unlock()
	if !ok {
		return nil
	}
	_, err := c.call(ctx, methodUnsubscribe, unsubscribeParams{Topic: topic, ID: id})
	return err
}

func (c *Client) Subscribed(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subscriptions[topic]
	return ok
}

// Publish sends an already encrypted message on topic.
func (c *Client) Publish(ctx context.Context, topic, message string, tag, ttl int) error {
	_, err := c.call(ctx, methodPublish, publishParams{
		Topic:   topic,
		Message: message,
		TTL:     ttl,
		Tag:     tag,
		Prompt:  tag == TagSessionRequest,
	})
	return err
}
