// Package walletconnect connects remote dApps through the WalletConnect v2
// relay. Proposals and session requests are turned into request contexts
// and handed to the gateway of their family; the gateway's decisions come
// back through the Responder methods.
package walletconnect

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	statusErrors "github.com/status-im/dapp-connector/errors"
	"github.com/status-im/dapp-connector/kvstore"
	"github.com/status-im/dapp-connector/logutils"
	"github.com/status-im/dapp-connector/services/connector/chain"
	"github.com/status-im/dapp-connector/services/connector/commands"
	persistence "github.com/status-im/dapp-connector/services/connector/database"
	"github.com/status-im/dapp-connector/services/connector/origin"
	"github.com/status-im/dapp-connector/services/wallet/async"
	"github.com/status-im/dapp-connector/services/walletconnect/relay"
)

const (
	sessionTTL   = 7 * 24 * time.Hour
	inboxSize    = 256
	initFlightID = "init"
)

var ErrorPairingExpired = errors.New("pairing uri has expired")

// Dispatcher hands a request context to the gateway of family.
type Dispatcher interface {
	Dispatch(ctx context.Context, family chain.Family, rc *commands.RequestContext) error
}

type Config struct {
	ProjectID string
	RelayURL  string
	Metadata  Metadata
}

type inbound struct {
	topic   string
	message string
	tag     int
}

type Adapter struct {
	config     Config
	db         *persistence.Database
	networks   *chain.Registry
	store      *store
	dispatcher Dispatcher
	logger     *zap.Logger

	init singleflight.Group
	// initMu is held by a running start and by Stop.
	initMu sync.Mutex

	mu         sync.RWMutex
	initCancel context.CancelFunc
	client     *relay.Client
	group     *async.Group
	inbox     chan inbound
	pairings  map[string]*Pairing
	sessions  map[string]*Session
	proposals map[int64]*pendingProposal
}

func NewAdapter(config Config, kv kvstore.Store, db *persistence.Database, networks *chain.Registry, dispatcher Dispatcher) *Adapter {
	return &Adapter{
		config:     config,
		db:         db,
		networks:   networks,
		store:      newStore(kv),
		dispatcher: dispatcher,
		logger:     logutils.ZapLogger().Named("walletconnect"),
		pairings:   make(map[string]*Pairing),
		sessions:   make(map[string]*Session),
		proposals:  make(map[int64]*pendingProposal),
	}
}

func (a *Adapter) IsInitialized() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.client != nil
}

// Initialize connects to the relay and restores stored pairings and
// sessions. Concurrent callers share one attempt; a failed attempt can be
// retried.
func (a *Adapter) Initialize(ctx context.Context) error {
	_, err, _ := a.init.Do(initFlightID, func() (interface{}, error) {
		a.initMu.Lock()
		defer a.initMu.Unlock()
		if a.IsInitialized() {
			return nil, nil
		}

		ctx, cancel := context.WithCancel(ctx)
		a.mu.Lock()
		a.initCancel = cancel
		a.mu.Unlock()
		defer func() {
			a.mu.Lock()
			a.initCancel = nil
			a.mu.Unlock()
			cancel()
		}()
		return nil, a.start(ctx)
	})
	return err
}

func (a *Adapter) start(ctx context.Context) error {
	if a.config.ProjectID == "" {
		return ErrorMissingProjectID
	}
	key, err := a.store.clientKey()
	if err != nil {
		return err
	}
	pairings, err := a.store.pairings()
	if err != nil {
		return err
	}
	sessions, err := a.store.sessions()
	if err != nil {
		return err
	}

	now := time.Now().Unix()
	for topic, p := range pairings {
		if p.Expiry != 0 && p.Expiry < now {
			delete(pairings, topic)
		}
	}
	for topic, s := range sessions {
		if s.Expiry < now {
			delete(sessions, topic)
		}
	}

	client := relay.NewClient(relay.Config{
		URL:       a.config.RelayURL,
		ProjectID: a.config.ProjectID,
		Origin:    a.config.Metadata.URL,
	}, key, a.enqueue)

	inbox := make(chan inbound, inboxSize)
	group := async.NewGroup(context.Background())

	a.mu.Lock()
	a.inbox = inbox
	a.mu.Unlock()

	if err := client.Start(ctx); err != nil {
		group.Stop()
		return err
	}
	group.Add(func(ctx context.Context) error {
		a.worker(ctx, inbox)
		return nil
	})

	a.mu.Lock()
	if ctx.Err() != nil {
		a.mu.Unlock()
		client.Stop()
		group.Stop()
		group.Wait()
		return ctx.Err()
	}
	a.client = client
	a.group = group
	a.pairings = pairings
	a.sessions = sessions
	a.mu.Unlock()

	for topic := range pairings {
		if err := client.Subscribe(ctx, topic); err != nil {
			a.logger.Warn("failed to restore pairing", zap.String("topic", topic), zap.Error(err))
		}
	}
	for topic := range sessions {
		if err := client.Subscribe(ctx, topic); err != nil {
			a.logger.Warn("failed to restore session", zap.String("topic", topic), zap.Error(err))
		}
	}
	a.logger.Info("walletconnect initialized", zap.Int("pairings", len(pairings)), zap.Int("sessions", len(sessions)))
	return nil
}

// Stop disconnects from the relay. An initialization in flight is
// cancelled and waited for. Stored sessions survive.
func (a *Adapter) Stop() {
	a.mu.RLock()
	cancel := a.initCancel
	a.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	a.initMu.Lock()
	defer a.initMu.Unlock()

	a.mu.Lock()
	client := a.client
	group := a.group
	a.client = nil
	a.group = nil
	a.proposals = make(map[int64]*pendingProposal)
	a.mu.Unlock()

	if client != nil {
		client.Stop()
	}
	if group != nil {
		group.Stop()
		group.Wait()
	}
}

// enqueue runs on the relay read loop, which must stay free to deliver
// the responses the handlers wait for.
func (a *Adapter) enqueue(topic, message string, tag int) {
	a.mu.RLock()
	inbox := a.inbox
	a.mu.RUnlock()
	select {
	case inbox <- inbound{topic: topic, message: message, tag: tag}:
	default:
		a.logger.Warn("inbox full, dropping relay message", zap.String("topic", topic), zap.Int("tag", tag))
	}
}

func (a *Adapter) worker(ctx context.Context, inbox <-chan inbound) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-inbox:
			a.onMessage(ctx, m)
		}
	}
}

func (a *Adapter) relayClient() (*relay.Client, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.client == nil {
		return nil, ErrorNotInitialized
	}
	return a.client, nil
}

// Connect pairs with a dApp from its wc: uri. The proposal follows on the
// pairing topic.
func (a *Adapter) Connect(ctx context.Context, uri string) error {
	parsed, err := relay.ParsePairingURI(uri)
	if err != nil {
		return err
	}
	if parsed.ExpiryTime != 0 && parsed.ExpiryTime < time.Now().Unix() {
		return ErrorPairingExpired
	}
	if err := a.Initialize(ctx); err != nil {
		return err
	}
	client, err := a.relayClient()
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.pairings[parsed.Topic] = &Pairing{Topic: parsed.Topic, SymKey: parsed.SymKey, Expiry: parsed.ExpiryTime}
	err = a.store.savePairings(a.pairings)
	a.mu.Unlock()
	if err != nil {
		return err
	}
	return client.Subscribe(ctx, parsed.Topic)
}

func (a *Adapter) onMessage(ctx context.Context, m inbound) {
	a.mu.RLock()
	pairing := a.pairings[m.topic]
	session := a.sessions[m.topic]
	a.mu.RUnlock()

	var symKey []byte
	switch {
	case session != nil:
		symKey = session.SymKey
	case pairing != nil:
		symKey = pairing.SymKey
	default:
		a.logger.Debug("message on unknown topic", zap.String("topic", m.topic))
		return
	}

	plain, err := relay.Decrypt(symKey, m.message)
	if err != nil {
		a.logger.Warn("failed to decrypt relay message", zap.String("topic", m.topic), zap.Error(err))
		return
	}
	var payload relay.Payload
	if err := json.Unmarshal(plain, &payload); err != nil {
		a.logger.Warn("malformed relay message", zap.String("topic", m.topic), zap.Error(err))
		return
	}

	if session != nil {
		a.onSessionMessage(ctx, session, &payload)
		return
	}
	a.onPairingMessage(ctx, pairing, &payload)
}

func (a *Adapter) onPairingMessage(ctx context.Context, pairing *Pairing, payload *relay.Payload) {
	switch payload.Method {
	case methodSessionPropose:
		a.handleProposal(ctx, pairing, payload)
	case methodPairingPing:
		a.publishResult(ctx, pairing.Topic, pairing.SymKey, payload.ID, true, relay.TagPairingPingResponse)
	case methodPairingDelete:
		a.publishResult(ctx, pairing.Topic, pairing.SymKey, payload.ID, true, relay.TagPairingDeleteResponse)
		a.removePairing(ctx, pairing.Topic)
	case "":
		if payload.Error != nil {
			a.logger.Debug("pairing peer returned an error", zap.Error(payload.Error))
		}
	default:
		a.logger.Debug("unhandled pairing method", zap.String("method", payload.Method))
	}
}

func (a *Adapter) onSessionMessage(ctx context.Context, session *Session, payload *relay.Payload) {
	switch payload.Method {
	case methodSessionRequest:
		a.handleRequest(ctx, session, payload)
	case methodSessionPing:
		a.publishResult(ctx, session.Topic, session.SymKey, payload.ID, true, relay.TagSessionPingResponse)
	case methodSessionExtend:
		a.publishResult(ctx, session.Topic, session.SymKey, payload.ID, true, relay.TagSessionExtendResponse)
	case methodSessionDelete:
		a.publishResult(ctx, session.Topic, session.SymKey, payload.ID, true, relay.TagSessionDeleteResponse)
		a.removeSession(ctx, session.Topic)
	case "":
		if payload.Error != nil {
			a.logger.Warn("session peer returned an error", zap.String("topic", session.Topic), zap.Error(payload.Error))
			return
		}
		a.acknowledge(session.Topic)
	default:
		a.logger.Debug("unhandled session method", zap.String("method", payload.Method))
	}
}

func senderFromMetadata(m Metadata) origin.Sender {
	sender := origin.Sender{Title: m.Name, URL: m.URL}
	if len(m.Icons) > 0 {
		sender.ImageURL = m.Icons[0]
	}
	return sender
}

func (a *Adapter) handleProposal(ctx context.Context, pairing *Pairing, payload *relay.Payload) {
	var params ProposalParams
	if err := json.Unmarshal(payload.Params, &params); err != nil {
		a.logger.Warn("malformed session proposal", zap.Error(err))
		return
	}
	if err := a.store.saveMetadata(params.Proposer.Metadata); err != nil {
		a.logger.Warn("failed to store dApp metadata", zap.Error(err))
	}

	chains, err := proposalChains(params, a.networks, a.logger)
	if err != nil {
		a.publishError(ctx, pairing.Topic, pairing.SymKey, payload.ID, relay.ReasonUnsupportedChains, "Unsupported chains", relay.TagSessionProposeResponse)
		return
	}
	family := proposalFamily(chains)

	a.mu.Lock()
	a.proposals[payload.ID] = &pendingProposal{ID: payload.ID, PairingTopic: pairing.Topic, Params: params}
	peer := params.Proposer.Metadata
	pairing.Peer = &peer
	if err := a.store.savePairings(a.pairings); err != nil {
		a.logger.Warn("failed to store pairing", zap.Error(err))
	}
	a.mu.Unlock()

	rc := &commands.RequestContext{
		Sender: senderFromMetadata(params.Proposer.Metadata),
		Request: commands.RPCRequest{
			ID:     commands.RequestID(strconv.FormatInt(payload.ID, 10)),
			Method: commands.MethodConnect,
			Params: []interface{}{},
		},
		WalletConnect: &commands.WalletConnectContext{
			Proposal: &commands.WalletConnectProposal{
				ID:           payload.ID,
				PairingTopic: pairing.Topic,
				ChainIDs:     chainIDs(chains[family]),
			},
		},
	}
	a.logger.Debug("session proposal", zap.Int64("id", payload.ID), zap.String("url", params.Proposer.Metadata.URL), zap.Stringer("blockchain", family))

	if err := a.dispatcher.Dispatch(ctx, family, rc); err != nil {
		a.logger.Warn("failed to dispatch session proposal", zap.Error(err))
		if errors.Is(err, commands.ErrNotInitialized) {
			_ = a.RejectConnection(ctx, payload.ID, relay.ReasonUserRejected, "Wallet is not ready")
		}
	}
}

// requestParams turns the dApp's params into a positional list. Solana and
// TON send a single object.
func requestParams(raw json.RawMessage) []interface{} {
	if len(raw) == 0 || string(raw) == "null" {
		return []interface{}{}
	}
	var list []interface{}
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var single interface{}
	if err := json.Unmarshal(raw, &single); err != nil {
		return []interface{}{}
	}
	return []interface{}{single}
}

func (a *Adapter) handleRequest(ctx context.Context, session *Session, payload *relay.Payload) {
	var params RequestParams
	if err := json.Unmarshal(payload.Params, &params); err != nil {
		a.publishError(ctx, session.Topic, session.SymKey, payload.ID, statusErrors.ProviderCodeInvalidParams, err.Error(), relay.TagSessionRequestResponse)
		return
	}

	a.mu.RLock()
	approved := sessionHasChain(session, params.ChainID)
	meta := session.Peer.Metadata
	a.mu.RUnlock()

	network, err := a.networks.ParseCAIP2(params.ChainID)
	if err != nil || !approved {
		a.publishError(ctx, session.Topic, session.SymKey, payload.ID, relay.ReasonUnsupportedChains, "Unsupported chains", relay.TagSessionRequestResponse)
		return
	}

	if stored, err := a.store.metadata(meta.URL); err == nil && stored != nil {
		meta = *stored
	}

	rc := &commands.RequestContext{
		Sender: senderFromMetadata(meta),
		Request: commands.RPCRequest{
			ID:     commands.RequestID(strconv.FormatInt(payload.ID, 10)),
			Method: params.Request.Method,
			Params: requestParams(params.Request.Params),
		},
		WalletConnect: &commands.WalletConnectContext{
			Request: &commands.WalletConnectRequest{
				ID:      payload.ID,
				Topic:   session.Topic,
				ChainID: network.ChainID,
			},
		},
	}
	if err := a.dispatcher.Dispatch(ctx, network.Family, rc); err != nil {
		a.logger.Warn("failed to dispatch session request", zap.String("method", params.Request.Method), zap.Error(err))
		if errors.Is(err, commands.ErrNotInitialized) {
			_ = a.RejectRequest(ctx, session.Topic, payload.ID, statusErrors.AsProviderError(err))
		}
	}
}

// Respond delivers a gateway result: an approved proposal settles a
// session, anything else answers a session request.
func (a *Adapter) Respond(ctx context.Context, family chain.Family, rc *commands.RequestContext, result interface{}) error {
	wc := rc.WalletConnect
	switch {
	case wc == nil:
		return ErrorUnknownTopic
	case wc.Proposal != nil:
		return a.ConfirmConnection(ctx, wc.Proposal.ID)
	case wc.Request != nil:
		return a.ConfirmRequest(ctx, wc.Request.Topic, wc.Request.ID, result)
	}
	return ErrorUnknownTopic
}

func (a *Adapter) Reject(ctx context.Context, family chain.Family, rc *commands.RequestContext, pErr *statusErrors.ProviderError) error {
	wc := rc.WalletConnect
	switch {
	case wc == nil:
		return ErrorUnknownTopic
	case wc.Proposal != nil:
		code := relay.ReasonUserRejected
		if pErr.Code == statusErrors.ProviderCodeUnrecognizedChain {
			code = relay.ReasonUnsupportedChains
		}
		return a.RejectConnection(ctx, wc.Proposal.ID, code, pErr.Message)
	case wc.Request != nil:
		return a.RejectRequest(ctx, wc.Request.Topic, wc.Request.ID, pErr)
	}
	return ErrorUnknownTopic
}

func (a *Adapter) takeProposal(id int64) (*pendingProposal, *Pairing, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	proposal, ok := a.proposals[id]
	if !ok {
		return nil, nil, ErrorUnknownProposal
	}
	delete(a.proposals, id)
	pairing, ok := a.pairings[proposal.PairingTopic]
	if !ok {
		return nil, nil, ErrorUnknownTopic
	}
	return proposal, pairing, nil
}

// ConfirmConnection settles a session for an approved proposal. The session
// spans every configured chain of each family with a selected wallet.
func (a *Adapter) ConfirmConnection(ctx context.Context, proposalID int64) error {
	client, err := a.relayClient()
	if err != nil {
		return err
	}
	proposal, pairing, err := a.takeProposal(proposalID)
	if err != nil {
		return err
	}

	chains, err := proposalChains(proposal.Params, a.networks, a.logger)
	if err != nil {
		a.publishError(ctx, pairing.Topic, pairing.SymKey, proposalID, relay.ReasonUnsupportedChains, "Unsupported chains", relay.TagSessionProposeResponse)
		return err
	}
	wallets := make(map[chain.Family]*chain.Wallet)
	for _, family := range relayFamilies {
		wallet, err := a.db.SelectedWallet(family)
		if err != nil {
			return err
		}
		wallets[family] = wallet
	}
	namespaces := sessionNamespaces(a.networks, wallets)
	if _, ok := namespaces[proposalFamily(chains).Namespace()]; !ok {
		a.publishError(ctx, pairing.Topic, pairing.SymKey, proposalID, relay.ReasonUnsupportedChains, "No wallet for the requested chains", relay.TagSessionProposeResponse)
		return ErrorChainsNotSupported
	}

	self, err := relay.GenerateKeyPair()
	if err != nil {
		return err
	}
	symKey, err := relay.DeriveSymKey(self.Private, proposal.Params.Proposer.PublicKey)
	if err != nil {
		return err
	}
	session := &Session{
		Topic:        relay.Topic(symKey),
		PairingTopic: pairing.Topic,
		SymKey:       symKey,
		SelfPublic:   self.PublicHex(),
		Peer:         proposal.Params.Proposer,
		Namespaces:   namespaces,
		Expiry:       time.Now().Add(sessionTTL).Unix(),
	}

	if err := client.Subscribe(ctx, session.Topic); err != nil {
		return err
	}

	a.mu.Lock()
	a.sessions[session.Topic] = session
	pairing.Active = true
	err = a.store.saveSessions(a.sessions)
	if err == nil {
		err = a.store.savePairings(a.pairings)
	}
	a.mu.Unlock()
	if err != nil {
		return err
	}

	err = a.publish(ctx, pairing.Topic, pairing.SymKey, mustResult(proposalID, proposalResult{
		Relay:              Relay{Protocol: "irn"},
		ResponderPublicKey: self.PublicHex(),
	}), relay.TagSessionProposeResponse, relay.TTLFiveMinutes)
	if err != nil {
		return err
	}

	settle, err := relay.NewRequest(methodSessionSettle, settleParams{
		Relay:        Relay{Protocol: "irn"},
		Namespaces:   namespaces,
		Controller:   Participant{PublicKey: self.PublicHex(), Metadata: a.config.Metadata},
		Expiry:       session.Expiry,
		PairingTopic: pairing.Topic,
	})
	if err != nil {
		return err
	}
	a.logger.Info("session settled", zap.String("topic", session.Topic), zap.String("url", session.Peer.Metadata.URL))
	return a.publish(ctx, session.Topic, symKey, settle, relay.TagSessionSettle, relay.TTLFiveMinutes)
}

// RejectConnection declines a proposal with an SDK reason code.
func (a *Adapter) RejectConnection(ctx context.Context, proposalID int64, code int, message string) error {
	_, pairing, err := a.takeProposal(proposalID)
	if err != nil {
		return err
	}
	return a.publish(ctx, pairing.Topic, pairing.SymKey, relay.NewErrorResponse(proposalID, code, message), relay.TagSessionProposeResponse, relay.TTLFiveMinutes)
}

func (a *Adapter) session(topic string) (*Session, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s, ok := a.sessions[topic]
	if !ok {
		return nil, ErrorUnknownSession
	}
	return s, nil
}

func (a *Adapter) ConfirmRequest(ctx context.Context, topic string, requestID int64, result interface{}) error {
	s, err := a.session(topic)
	if err != nil {
		return err
	}
	resp, err := relay.NewResult(requestID, result)
	if err != nil {
		return err
	}
	return a.publish(ctx, topic, s.SymKey, resp, relay.TagSessionRequestResponse, relay.TTLFiveMinutes)
}

func (a *Adapter) RejectRequest(ctx context.Context, topic string, requestID int64, pErr *statusErrors.ProviderError) error {
	s, err := a.session(topic)
	if err != nil {
		return err
	}
	return a.publish(ctx, topic, s.SymKey, relay.NewErrorResponse(requestID, pErr.Code, pErr.Message), relay.TagSessionRequestResponse, relay.TTLFiveMinutes)
}

// EmitAccountsChanged moves every session of family to wallet and tells
// the dApps. Wallets whose address does not fit the family are ignored.
func (a *Adapter) EmitAccountsChanged(ctx context.Context, family chain.Family, wallet chain.Wallet) error {
	if !validAddress(family, wallet.Address) {
		a.logger.Debug("address does not belong to the family", zap.Stringer("blockchain", family))
		return nil
	}
	if !a.IsInitialized() {
		return nil
	}

	a.mu.Lock()
	var targets []*Session
	for _, s := range a.sessions {
		ns, ok := s.Namespaces[family.Namespace()]
		if !ok {
			continue
		}
		accounts := make([]string, 0, len(ns.Chains))
		for _, caip2 := range ns.Chains {
			accounts = append(accounts, caip2+":"+wallet.Address)
		}
		ns.Accounts = accounts
		s.Namespaces[family.Namespace()] = ns
		targets = append(targets, s)
	}
	err := a.store.saveSessions(a.sessions)
	a.mu.Unlock()
	if err != nil {
		return err
	}

	var firstErr error
	for _, s := range targets {
		if err := a.emitAccounts(ctx, s, family, wallet.Address); err != nil {
			a.logger.Warn("failed to emit accountsChanged", zap.String("topic", s.Topic), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (a *Adapter) emitAccounts(ctx context.Context, s *Session, family chain.Family, address string) error {
	a.mu.RLock()
	namespaces := make(map[string]Namespace, len(s.Namespaces))
	for k, v := range s.Namespaces {
		namespaces[k] = v
	}
	chainID, hasChain := sessionChain(s, family)
	a.mu.RUnlock()

	update, err := relay.NewRequest(methodSessionUpdate, map[string]interface{}{"namespaces": namespaces})
	if err != nil {
		return err
	}
	if err := a.publish(ctx, s.Topic, s.SymKey, update, relay.TagSessionUpdate, relay.TTLOneDay); err != nil {
		return err
	}

	if !hasChain {
		return nil
	}
	event, err := relay.NewRequest(methodSessionEvent, eventParams{
		Event:   sessionEvent{Name: eventAccountsChanged, Data: []string{address}},
		ChainID: chainID,
	})
	if err != nil {
		return err
	}
	return a.publish(ctx, s.Topic, s.SymKey, event, relay.TagSessionEvent, relay.TTLFiveMinutes)
}

// Disconnect ends a session on behalf of the user.
func (a *Adapter) Disconnect(ctx context.Context, topic string) error {
	s, err := a.session(topic)
	if err != nil {
		return err
	}
	req, err := relay.NewRequest(methodSessionDelete, reason{Code: relay.ReasonUserDisconnected, Message: "User disconnected."})
	if err != nil {
		return err
	}
	if err := a.publish(ctx, topic, s.SymKey, req, relay.TagSessionDelete, relay.TTLOneDay); err != nil {
		a.logger.Warn("failed to notify session delete", zap.String("topic", topic), zap.Error(err))
	}
	a.removeSession(ctx, topic)
	return nil
}

func (a *Adapter) DisconnectAll(ctx context.Context) error {
	for _, s := range a.Sessions() {
		if err := a.Disconnect(ctx, s.Topic); err != nil {
			return err
		}
	}
	return nil
}

// Sessions returns the active sessions ordered by topic.
func (a *Adapter) Sessions() []Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Session, 0, len(a.sessions))
	for _, s := range a.sessions {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Topic < out[j].Topic })
	return out
}

// DAppMetadata returns what a dApp last declared about itself.
func (a *Adapter) DAppMetadata(url string) (*Metadata, error) {
	return a.store.metadata(url)
}

func (a *Adapter) acknowledge(topic string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.sessions[topic]
	if !ok || s.Acknowledged {
		return
	}
	s.Acknowledged = true
	if err := a.store.saveSessions(a.sessions); err != nil {
		a.logger.Warn("failed to store session", zap.Error(err))
	}
}

func (a *Adapter) removeSession(ctx context.Context, topic string) {
	a.mu.Lock()
	delete(a.sessions, topic)
	err := a.store.saveSessions(a.sessions)
	client := a.client
	a.mu.Unlock()
	if err != nil {
		a.logger.Warn("failed to store sessions", zap.Error(err))
	}
	if client != nil {
		if err := client.Unsubscribe(ctx, topic); err != nil {
			a.logger.Debug("unsubscribe failed", zap.String("topic", topic), zap.Error(err))
		}
	}
}

func (a *Adapter) removePairing(ctx context.Context, topic string) {
	a.mu.Lock()
	delete(a.pairings, topic)
	err := a.store.savePairings(a.pairings)
	client := a.client
	a.mu.Unlock()
	if err != nil {
		a.logger.Warn("failed to store pairings", zap.Error(err))
	}
	if client != nil {
		if err := client.Unsubscribe(ctx, topic); err != nil {
			a.logger.Debug("unsubscribe failed", zap.String("topic", topic), zap.Error(err))
		}
	}
}

func mustResult(id int64, result interface{}) *relay.Response {
	resp, err := relay.NewResult(id, result)
	if err != nil {
		return relay.NewErrorResponse(id, statusErrors.ProviderCodeInternalError, err.Error())
	}
	return resp
}

func (a *Adapter) publish(ctx context.Context, topic string, symKey []byte, v interface{}, tag, ttl int) error {
	client, err := a.relayClient()
	if err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	message, err := relay.Encrypt(symKey, data)
	if err != nil {
		return err
	}
	return client.Publish(ctx, topic, message, tag, ttl)
}

func (a *Adapter) publishResult(ctx context.Context, topic string, symKey []byte, id int64, result interface{}, tag int) {
	if err := a.publish(ctx, topic, symKey, mustResult(id, result), tag, relay.TTLFiveMinutes); err != nil {
		a.logger.Warn("failed to publish result", zap.String("topic", topic), zap.Error(err))
	}
}

func (a *Adapter) publishError(ctx context.Context, topic string, symKey []byte, id int64, code int, message string, tag int) {
	if err := a.publish(ctx, topic, symKey, relay.NewErrorResponse(id, code, message), tag, relay.TTLFiveMinutes); err != nil {
		a.logger.Warn("failed to publish error", zap.String("topic", topic), zap.Error(err))
	}
}
