// Package tonconnect connects TON dApps through a TonConnect HTTP bridge.
// Every connected dApp has its own encrypted session; one SSE stream
// listens for all of them and is reopened whenever a session is added or
// removed.
package tonconnect

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gojek/heimdall/v7/httpclient"
	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	statusErrors "github.com/status-im/dapp-connector/errors"
	"github.com/status-im/dapp-connector/kvstore"
	"github.com/status-im/dapp-connector/logutils"
	"github.com/status-im/dapp-connector/services/connector/chain"
	"github.com/status-im/dapp-connector/services/connector/commands"
	"github.com/status-im/dapp-connector/services/connector/origin"
	"github.com/status-im/dapp-connector/services/tonconnect/bridge"
	"github.com/status-im/dapp-connector/services/wallet/async"
)

const (
	defaultDebounce = 500 * time.Millisecond
	defaultTTL      = 300
	maxSeenEvents   = 1000
)

// Dispatcher hands a request context to the gateway of family.
type Dispatcher interface {
	Dispatch(ctx context.Context, family chain.Family, rc *commands.RequestContext) error
}

type Config struct {
	BridgeURL          string
	UniversalLinkHost  string
	MaxProtocolVersion int
	DebounceInterval   time.Duration
	// MessageTTL is in seconds.
	MessageTTL int
	AppName    string
	AppVersion string
}

// SessionInfo describes a connected dApp without its key material.
type SessionInfo struct {
	URL          string `json:"url"`
	Title        string `json:"title"`
	FaviconURL   string `json:"faviconUrl,omitempty"`
	ClientID     string `json:"clientId"`
	DAppClientID string `json:"dappClientId"`
}

type Adapter struct {
	config     Config
	store      *store
	bridge     *bridge.Client
	http       *httpclient.Client
	dispatcher Dispatcher
	logger     *zap.Logger
	eventID    int64

	mu          sync.RWMutex
	ctx         context.Context
	debouncer   *async.Debouncer
	connections map[string]*Connection
	handshakes  map[string]*handshake

	// subMu serializes resubscription.
	subMu        sync.Mutex
	subscription string
	listener     *async.Group

	queueMu sync.Mutex
	queue   []bridge.Event
	// seen holds recent event ids; the bridge redelivers after reconnects.
	seen *ttlcache.Cache[string, struct{}]
}

func NewAdapter(config Config, kv kvstore.Store, dispatcher Dispatcher) *Adapter {
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = defaultDebounce
	}
	if config.MessageTTL <= 0 {
		config.MessageTTL = defaultTTL
	}
	return &Adapter{
		config:      config,
		store:       newStore(kv),
		bridge:      bridge.NewClient(config.BridgeURL),
		http:        newManifestClient(),
		dispatcher:  dispatcher,
		logger:      logutils.ZapLogger().Named("tonconnect"),
		eventID:     time.Now().UnixMilli(),
		connections: make(map[string]*Connection),
		handshakes:  make(map[string]*handshake),
		seen: ttlcache.New[string, struct{}](
			ttlcache.WithTTL[string, struct{}](2*time.Duration(config.MessageTTL)*time.Second),
			ttlcache.WithCapacity[string, struct{}](maxSeenEvents),
		),
	}
}

// Start loads stored sessions and opens the bridge stream. ctx bounds the
// stream and the handling of bridge messages.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.ctx != nil {
		a.mu.Unlock()
		return nil
	}
	conns, err := a.store.connections()
	if err != nil {
		a.mu.Unlock()
		return err
	}
	a.connections = conns
	a.ctx = ctx
	a.debouncer = async.NewDebouncer(a.config.DebounceInterval, a.flush)
	a.mu.Unlock()
	go a.seen.Start()

	a.logger.Info("tonconnect started", zap.Int("sessions", len(conns)))
	return a.Initialize()
}

// Stop closes the bridge stream and forgets pending handshakes. Stored
// sessions survive.
func (a *Adapter) Stop() {
	a.mu.Lock()
	debouncer := a.debouncer
	a.ctx = nil
	a.debouncer = nil
	a.handshakes = make(map[string]*handshake)
	a.mu.Unlock()

	a.subMu.Lock()
	listener := a.listener
	a.listener = nil
	a.subscription = ""
	a.subMu.Unlock()

	if listener != nil {
		listener.Stop()
		listener.Wait()
	}
	if debouncer != nil {
		debouncer.Stop()
		a.seen.Stop()
	}

	a.queueMu.Lock()
	a.queue = nil
	a.queueMu.Unlock()
}

func (a *Adapter) lifecycle() context.Context {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ctx
}

func (a *Adapter) IsStarted() bool {
	return a.lifecycle() != nil
}

func (a *Adapter) clientIDs() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ids := make([]string, 0, len(a.connections))
	for _, c := range a.connections {
		ids = append(ids, c.ClientID())
	}
	sort.Strings(ids)
	return ids
}

// Initialize makes the bridge stream match the stored sessions: closed
// when there are none, otherwise one stream for all of them resuming from
// the last processed event.
func (a *Adapter) Initialize() error {
	ctx := a.lifecycle()
	if ctx == nil {
		return ErrNotStarted
	}
	ids := a.clientIDs()
	key := strings.Join(ids, ",")

	a.subMu.Lock()
	defer a.subMu.Unlock()

	if key == a.subscription && (key == "" || a.listener != nil) {
		return nil
	}
	if a.listener != nil {
		// the old stream winds down on its own
		a.listener.Stop()
		a.listener = nil
	}
	a.subscription = key
	if len(ids) == 0 {
		a.logger.Debug("no tonconnect sessions, bridge stream closed")
		return nil
	}

	lastEventID, err := a.store.lastEventID()
	if err != nil {
		a.subscription = ""
		return err
	}
	group := async.NewGroup(ctx)
	group.Add(func(ctx context.Context) error {
		err := a.bridge.Listen(ctx, ids, lastEventID, a.onEvent)
		if err != nil && ctx.Err() == nil {
			a.logger.Error("bridge stream stopped", zap.Error(err))
		}
		return nil
	})
	a.listener = group
	a.logger.Debug("bridge stream opened", zap.Int("sessions", len(ids)), zap.String("lastEventId", lastEventID))
	return nil
}

// onEvent queues a bridge event. Redelivered events are dropped and the
// queue is handled once the stream has been quiet for the debounce
// interval.
func (a *Adapter) onEvent(e bridge.Event) {
	a.mu.RLock()
	debouncer := a.debouncer
	a.mu.RUnlock()
	if debouncer == nil {
		return
	}

	a.queueMu.Lock()
	if e.ID != "" && !a.firstDelivery(e.ID) {
		a.queueMu.Unlock()
		return
	}
	a.queue = append(a.queue, e)
	a.queueMu.Unlock()

	debouncer.Trigger()
}

// firstDelivery records id and reports whether it was new. Ids expire
// after twice the message TTL; past capacity the oldest is forgotten.
func (a *Adapter) firstDelivery(id string) bool {
	if a.seen.Has(id) {
		return false
	}
	a.seen.Set(id, struct{}{}, ttlcache.DefaultTTL)
	return true
}

func (a *Adapter) flush() {
	ctx := a.lifecycle()
	if ctx == nil {
		return
	}
	a.queueMu.Lock()
	queue := a.queue
	a.queue = nil
	a.queueMu.Unlock()

	for _, e := range queue {
		if err := a.HandleMessage(ctx, e); err != nil {
			a.logger.Warn("failed to handle bridge message", zap.String("from", e.From), zap.String("eventId", e.ID), zap.Error(err))
		}
	}
}

func (a *Adapter) connectionByDApp(dappClientID string) *Connection {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, c := range a.connections {
		if c.DAppClientID == dappClientID {
			return c
		}
	}
	return nil
}

func (a *Adapter) connectionByClientID(clientID string) *Connection {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, c := range a.connections {
		if c.ClientID() == clientID {
			return c
		}
	}
	return nil
}

// HandleMessage decrypts a bridge event and dispatches the request it
// carries. Events from senders without a session are an error.
func (a *Adapter) HandleMessage(ctx context.Context, e bridge.Event) error {
	if e.ID != "" {
		if err := a.store.saveLastEventID(e.ID); err != nil {
			a.logger.Warn("failed to store last event id", zap.Error(err))
		}
	}

	conn := a.connectionByDApp(e.From)
	if conn == nil {
		return errors.Wrap(ErrUnknownSession, e.From)
	}
	plain, err := conn.Session.Decrypt(e.Message, e.From)
	if err != nil {
		return err
	}
	var req appRequest
	if err := json.Unmarshal(plain, &req); err != nil {
		return errors.Wrap(err, "malformed app request")
	}

	params := make([]interface{}, 0, len(req.Params))
	for _, p := range req.Params {
		params = append(params, p)
	}
	rc := &commands.RequestContext{
		Sender: origin.Sender{Title: conn.Title, URL: conn.URL, ImageURL: conn.FaviconURL},
		Request: commands.RPCRequest{
			ID:     commands.RequestID(req.ID),
			Method: req.Method,
			Params: params,
		},
		TonConnect: &commands.TonConnectContext{
			ClientID:     conn.ClientID(),
			DAppClientID: conn.DAppClientID,
		},
	}
	a.logger.Debug("bridge request", zap.String("method", req.Method), zap.String("url", conn.URL))
	return a.dispatcher.Dispatch(ctx, chain.Ton, rc)
}

// Connect starts a handshake from a connect link. Malformed links and
// manifests are reported to the dApp before the error is returned.
func (a *Adapter) Connect(ctx context.Context, link string) error {
	if !a.IsStarted() {
		return ErrNotStarted
	}

	parsed, err := ParseDeepLink(link, a.config.UniversalLinkHost, a.config.MaxProtocolVersion)
	if err != nil {
		if parsed != nil && parsed.ClientID != "" {
			a.reportHandshakeError(ctx, parsed.ClientID, CodeBadRequest, err.Error())
		}
		return err
	}

	session, err := bridge.NewSession()
	if err != nil {
		return err
	}
	manifest, err := a.fetchManifest(ctx, parsed.Request.ManifestURL)
	if err != nil {
		code := CodeManifestNotFound
		if errors.Is(err, ErrManifestContentError) {
			code = CodeManifestContentError
		}
		if postErr := a.postConnectError(ctx, session, parsed.ClientID, code, err.Error()); postErr != nil {
			a.logger.Warn("failed to report manifest error", zap.Error(postErr))
		}
		return err
	}

	a.mu.Lock()
	a.handshakes[parsed.ClientID] = &handshake{
		session:  session,
		dappID:   parsed.ClientID,
		manifest: *manifest,
		request:  parsed.Request,
	}
	a.mu.Unlock()

	rc := &commands.RequestContext{
		Sender: origin.Sender{Title: manifest.Name, URL: manifest.URL, ImageURL: manifest.IconURL},
		Request: commands.RPCRequest{
			ID:     commands.RequestID(uuid.NewString()),
			Method: commands.MethodConnect,
			Params: []interface{}{},
		},
		TonConnect: &commands.TonConnectContext{
			ClientID:       session.ClientID(),
			DAppClientID:   parsed.ClientID,
			Handshake:      true,
			Items:          parsed.Request.itemNames(),
			ReturnStrategy: parsed.ReturnStrategy,
		},
	}
	a.logger.Debug("connect request", zap.String("url", manifest.URL), zap.Int("version", parsed.Version))

	if err := a.dispatcher.Dispatch(ctx, chain.Ton, rc); err != nil {
		if errors.Is(err, commands.ErrNotInitialized) {
			if h := a.takeHandshake(parsed.ClientID); h != nil {
				a.reportHandshakeError(ctx, parsed.ClientID, CodeUnknown, "Wallet is not ready")
			}
		}
		return err
	}
	return nil
}

// reportHandshakeError answers a link that never became a handshake, from
// a throwaway session.
func (a *Adapter) reportHandshakeError(ctx context.Context, dappClientID string, code int, message string) {
	session, err := bridge.NewSession()
	if err != nil {
		return
	}
	if err := a.postConnectError(ctx, session, dappClientID, code, message); err != nil {
		a.logger.Warn("failed to report connect error", zap.Error(err))
	}
}

func (a *Adapter) takeHandshake(dappClientID string) *handshake {
	a.mu.Lock()
	defer a.mu.Unlock()
	h := a.handshakes[dappClientID]
	delete(a.handshakes, dappClientID)
	return h
}

func (a *Adapter) nextEventID() int64 {
	return atomic.AddInt64(&a.eventID, 1)
}

// errorCode maps provider errors onto TonConnect error codes.
func errorCode(pErr *statusErrors.ProviderError) int {
	switch pErr.Code {
	case statusErrors.ProviderCodeUserRejected:
		return CodeUserDeclined
	case statusErrors.ProviderCodeInvalidParams:
		return CodeBadRequest
	case statusErrors.ProviderCodeUnsupportedMethod:
		return CodeMethodNotSupported
	case statusErrors.ProviderCodeUnauthorized:
		return CodeUnknownApp
	}
	return CodeUnknown
}

func connectItems(result interface{}) ([]commands.TonAddrItem, error) {
	switch r := result.(type) {
	case commands.TonConnectResult:
		return r.Items, nil
	case *commands.TonConnectResult:
		return r.Items, nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	var decoded commands.TonConnectResult
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}
	return decoded.Items, nil
}

// Respond delivers a gateway result. An approved handshake becomes a
// stored session; an answered disconnect removes it.
func (a *Adapter) Respond(ctx context.Context, family chain.Family, rc *commands.RequestContext, result interface{}) error {
	tc := rc.TonConnect
	if tc == nil {
		return ErrUnknownSession
	}
	if tc.Handshake {
		return a.completeHandshake(ctx, tc, result)
	}

	conn := a.connectionByClientID(tc.ClientID)
	if conn == nil {
		return ErrUnknownSession
	}
	if rc.Request.Method == commands.MethodDisconnect {
		err := a.PostMessage(ctx, conn.Session, conn.DAppClientID, walletResponse{Result: struct{}{}, ID: string(rc.Request.ID)})
		if delErr := a.DeleteConnection(conn.URL); delErr != nil && !errors.Is(delErr, ErrNotStarted) {
			return delErr
		}
		return err
	}
	return a.PostMessage(ctx, conn.Session, conn.DAppClientID, walletResponse{Result: result, ID: string(rc.Request.ID)})
}

func (a *Adapter) completeHandshake(ctx context.Context, tc *commands.TonConnectContext, result interface{}) error {
	h := a.takeHandshake(tc.DAppClientID)
	if h == nil {
		return ErrUnknownHandshake
	}
	items, err := connectItems(result)
	if err != nil {
		return err
	}
	event := walletEvent{
		Event:   eventConnect,
		ID:      a.nextEventID(),
		Payload: connectPayload{Items: items, Device: a.deviceInfo()},
	}
	if err := a.PostMessage(ctx, h.session, h.dappID, event); err != nil {
		return err
	}
	return a.UpsertConnection(&Connection{
		Session:      h.session,
		DAppClientID: h.dappID,
		Title:        h.manifest.Name,
		URL:          h.manifest.URL,
		FaviconURL:   h.manifest.IconURL,
	})
}

// Reject delivers a gateway rejection: a connect_error for handshakes, an
// error response otherwise.
func (a *Adapter) Reject(ctx context.Context, family chain.Family, rc *commands.RequestContext, pErr *statusErrors.ProviderError) error {
	tc := rc.TonConnect
	if tc == nil {
		return ErrUnknownSession
	}
	if tc.Handshake {
		h := a.takeHandshake(tc.DAppClientID)
		if h == nil {
			return ErrUnknownHandshake
		}
		return a.postConnectError(ctx, h.session, h.dappID, errorCode(pErr), pErr.Message)
	}

	conn := a.connectionByClientID(tc.ClientID)
	if conn == nil {
		return ErrUnknownSession
	}
	return a.PostMessage(ctx, conn.Session, conn.DAppClientID, walletResponse{
		Error: &walletError{Code: errorCode(pErr), Message: pErr.Message},
		ID:    string(rc.Request.ID),
	})
}

func (a *Adapter) postConnectError(ctx context.Context, session *bridge.Session, dappClientID string, code int, message string) error {
	return a.PostMessage(ctx, session, dappClientID, walletEvent{
		Event:   eventConnectError,
		ID:      a.nextEventID(),
		Payload: walletError{Code: code, Message: message},
	})
}

// PostMessage encrypts payload for the dApp and posts it to the bridge.
func (a *Adapter) PostMessage(ctx context.Context, session *bridge.Session, dappClientID string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	sealed, err := session.Encrypt(data, dappClientID)
	if err != nil {
		return err
	}
	return a.bridge.Send(ctx, session.ClientID(), dappClientID, a.config.MessageTTL, sealed)
}

// UpsertConnection stores conn under its url and resubscribes.
func (a *Adapter) UpsertConnection(conn *Connection) error {
	a.mu.Lock()
	a.connections[conn.URL] = conn
	err := a.store.saveConnections(a.connections)
	a.mu.Unlock()
	if err != nil {
		return err
	}
	return a.Initialize()
}

// DeleteConnection removes the session of url and resubscribes.
func (a *Adapter) DeleteConnection(url string) error {
	a.mu.Lock()
	if _, ok := a.connections[url]; !ok {
		a.mu.Unlock()
		return nil
	}
	delete(a.connections, url)
	err := a.store.saveConnections(a.connections)
	a.mu.Unlock()
	if err != nil {
		return err
	}
	return a.Initialize()
}

// Disconnect ends the session of url from the wallet side.
func (a *Adapter) Disconnect(ctx context.Context, url string) error {
	a.mu.RLock()
	conn := a.connections[url]
	a.mu.RUnlock()
	if conn == nil {
		return ErrUnknownSession
	}
	event := walletEvent{Event: eventDisconnect, ID: a.nextEventID(), Payload: struct{}{}}
	if err := a.PostMessage(ctx, conn.Session, conn.DAppClientID, event); err != nil {
		a.logger.Warn("failed to notify dApp of disconnect", zap.String("url", url), zap.Error(err))
	}
	return a.DeleteConnection(url)
}

func (a *Adapter) DisconnectAll(ctx context.Context) error {
	for _, s := range a.Sessions() {
		if err := a.Disconnect(ctx, s.URL); err != nil && !errors.Is(err, ErrUnknownSession) {
			return err
		}
	}
	return nil
}

// Sessions lists connected dApps ordered by url.
func (a *Adapter) Sessions() []SessionInfo {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]SessionInfo, 0, len(a.connections))
	for _, c := range a.connections {
		out = append(out, SessionInfo{
			URL:          c.URL,
			Title:        c.Title,
			FaviconURL:   c.FaviconURL,
			ClientID:     c.ClientID(),
			DAppClientID: c.DAppClientID,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}

// ListenToURL connects from the launch url and every url received on urls
// that is a connect link, until ctx is done or urls is closed.
func (a *Adapter) ListenToURL(ctx context.Context, initial string, urls <-chan string) {
	handle := func(u string) {
		if !IsDeepLink(u, a.config.UniversalLinkHost) {
			return
		}
		if err := a.Connect(ctx, u); err != nil {
			a.logger.Warn("tonconnect link failed", zap.Error(err))
		}
	}
	if initial != "" {
		handle(initial)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-urls:
			if !ok {
				return
			}
			handle(u)
		}
	}
}
