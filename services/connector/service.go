package connector

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	gethrpc "github.com/ethereum/go-ethereum/rpc"

	"github.com/status-im/dapp-connector/common"
	statusErrors "github.com/status-im/dapp-connector/errors"
	"github.com/status-im/dapp-connector/kvstore"
	"github.com/status-im/dapp-connector/logutils"
	"github.com/status-im/dapp-connector/params"
	"github.com/status-im/dapp-connector/services/connector/approvals"
	"github.com/status-im/dapp-connector/services/connector/chain"
	"github.com/status-im/dapp-connector/services/connector/channel"
	"github.com/status-im/dapp-connector/services/connector/commands"
	persistence "github.com/status-im/dapp-connector/services/connector/database"
	"github.com/status-im/dapp-connector/services/connector/eventbus"
	"github.com/status-im/dapp-connector/services/tonconnect"
	"github.com/status-im/dapp-connector/services/walletconnect"
)

var (
	ErrNotLoggedIn           = &statusErrors.ErrorResponse{Code: statusErrors.ErrorCode("DC-006"), Details: "no user is logged in"}
	ErrWalletConnectDisabled = &statusErrors.ErrorResponse{Code: statusErrors.ErrorCode("DC-007"), Details: "walletconnect is disabled"}
	ErrTonConnectDisabled    = &statusErrors.ErrorResponse{Code: statusErrors.ErrorCode("DC-008"), Details: "tonconnect is disabled"}
	ErrUnsupportedURL        = &statusErrors.ErrorResponse{Code: statusErrors.ErrorCode("DC-009"), Details: "url is not a connect link"}
)

const (
	urlBuffer           = 8
	walletConnectScheme = "wc:"
)

type options struct {
	navigator commands.Navigator
	send      channel.SendFunc
	dialer    commands.RPCDialer
	launchURL string
}

type Option func(*options)

// WithNavigator replaces the signal based approval navigation.
func WithNavigator(n commands.Navigator) Option {
	return func(o *options) { o.navigator = n }
}

// WithChannelSender replaces the signal that carries embedded channel
// messages.
func WithChannelSender(send channel.SendFunc) Option {
	return func(o *options) { o.send = send }
}

func WithRPCDialer(d commands.RPCDialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithLaunchURL is the url the process was started with. It is handled once,
// on the first login.
func WithLaunchURL(u string) Option {
	return func(o *options) { o.launchURL = u }
}

// Service owns the gateways, the transports feeding them and the stores
// behind them. Gateways and adapters run only while a user is logged in.
type Service struct {
	config    *params.ConnectorConfig
	kv        kvstore.Store
	db        *persistence.Database
	bus       *eventbus.Bus
	networks  *chain.Registry
	gateways  map[chain.Family]*commands.Gateway
	channel   *channel.Channel
	navigator commands.Navigator
	wc        *walletconnect.Adapter
	ton       *tonconnect.Adapter
	urls      chan string
	logger    *zap.Logger

	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	launchURL string
}

func NewService(config *params.ConnectorConfig, kv kvstore.Store, opts ...Option) (*Service, error) {
	o := options{navigator: commands.SignalNavigator{}}
	for _, opt := range opts {
		opt(&o)
	}

	networks, err := chain.NewRegistry(config.Networks)
	if err != nil {
		return nil, err
	}

	s := &Service{
		config:    config,
		kv:        kv,
		db:        persistence.NewDatabase(kv, config.BrowserHistoryLimit),
		bus:       eventbus.New(),
		networks:  networks,
		gateways:  make(map[chain.Family]*commands.Gateway),
		channel:   channel.New(o.send),
		navigator: o.navigator,
		urls:      make(chan string, urlBuffer),
		logger:    logutils.ZapLogger().Named("connector"),
		launchURL: o.launchURL,
	}

	strategies := []commands.Strategy{
		commands.NewEvmStrategy(),
		commands.NewSolanaStrategy(),
		commands.NewTonStrategy(),
	}
	for _, strategy := range strategies {
		g := commands.NewGateway(strategy, commands.GatewayConfig{
			DB:              s.db,
			Bus:             s.bus,
			Networks:        networks,
			ApprovalTimeout: config.ApprovalTimeout,
			RPCDialer:       o.dialer,
		})
		g.SetResponder(approvals.TransportEmbedded, s.channel)
		g.SetNotifier(s.channel)
		s.gateways[strategy.Family()] = g
	}

	if config.WalletConnect.Enabled {
		wc := config.WalletConnect
		s.wc = walletconnect.NewAdapter(walletconnect.Config{
			ProjectID: wc.ProjectID,
			RelayURL:  wc.RelayURL,
			Metadata: walletconnect.Metadata{
				Name:        wc.Metadata.Name,
				Description: wc.Metadata.Description,
				URL:         wc.Metadata.URL,
				Icons:       wc.Metadata.Icons,
			},
		}, kv, s.db, networks, s)
		s.gateways[chain.Evm].SetResponder(approvals.TransportWalletConnect, s.wc)
		s.gateways[chain.Solana].SetResponder(approvals.TransportWalletConnect, s.wc)
	}

	if config.TonConnect.Enabled {
		tc := config.TonConnect
		s.ton = tonconnect.NewAdapter(tonconnect.Config{
			BridgeURL:          tc.BridgeURL,
			UniversalLinkHost:  tc.UniversalLinkHost,
			MaxProtocolVersion: tc.MaxProtocolVersion,
			DebounceInterval:   tc.DebounceInterval,
			MessageTTL:         tc.MessageTTL,
			AppName:            tc.AppName,
			AppVersion:         tc.AppVersion,
		}, kv, s)
		s.gateways[chain.Ton].SetResponder(approvals.TransportTonConnect, s.ton)
	}

	return s, nil
}

// OpenURL routes a link opened in the host application: wc: uris pair over
// WalletConnect, TonConnect links are queued for the bridge adapter.
func (s *Service) OpenURL(ctx context.Context, u string) error {
	if _, err := s.lifecycle(); err != nil {
		return err
	}
	if strings.HasPrefix(u, walletConnectScheme) {
		if s.wc == nil {
			return ErrWalletConnectDisabled
		}
		return s.wc.Connect(ctx, u)
	}
	if !tonconnect.IsDeepLink(u, s.config.TonConnect.UniversalLinkHost) {
		return ErrUnsupportedURL
	}
	if s.ton == nil {
		return ErrTonConnectDisabled
	}
	select {
	case s.urls <- u:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispatch hands rc to the gateway of family.
func (s *Service) Dispatch(ctx context.Context, family chain.Family, rc *commands.RequestContext) error {
	g, ok := s.gateways[family]
	if !ok {
		return chain.ErrUnknownFamily
	}
	return g.HandleRequest(ctx, rc)
}

func (s *Service) gateway(family chain.Family) (*commands.Gateway, error) {
	g, ok := s.gateways[family]
	if !ok {
		return nil, chain.ErrUnknownFamily
	}
	return g, nil
}

func (s *Service) IsLoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctx != nil
}

func (s *Service) lifecycle() (context.Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ctx == nil {
		return nil, ErrNotLoggedIn
	}
	return s.ctx, nil
}

// Login opens the session of user, creating it when another user or
// nobody was logged in, and starts the gateways and adapters.
func (s *Service) Login(user persistence.User) error {
	session, err := s.db.GetSessionData()
	if err != nil {
		return err
	}
	if session == nil || session.User == nil || session.User.ID != user.ID {
		if err := s.db.SetSessionData(persistence.NewSessionRecord(&user)); err != nil {
			return err
		}
	}
	s.activate()
	return nil
}

// activate is idempotent.
func (s *Service) activate() {
	s.mu.Lock()
	if s.ctx != nil {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.ctx = ctx
	s.cancel = cancel
	launchURL := s.launchURL
	s.launchURL = ""
	s.mu.Unlock()

	for _, g := range s.gateways {
		g.Initialize(s.navigator)
	}

	if s.ton != nil {
		if err := s.ton.Start(ctx); err != nil {
			s.logger.Error("failed to start tonconnect", zap.Error(err))
		}
		go func() {
			defer common.LogOnPanic()
			s.ton.ListenToURL(ctx, launchURL, s.urls)
		}()
	}
	if s.wc != nil {
		// the relay may be unreachable, Connect retries initialization
		go func() {
			defer common.LogOnPanic()
			if err := s.wc.Initialize(ctx); err != nil {
				s.logger.Warn("walletconnect initialization failed", zap.Error(err))
			}
		}()
	}
	s.logger.Info("connector activated")
}

func (s *Service) deactivate() {
	s.mu.Lock()
	cancel := s.cancel
	s.ctx = nil
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	// a background relay initialization started with this context must not
	// outlive the session
	cancel()

	if s.wc != nil {
		s.wc.Stop()
	}
	if s.ton != nil {
		s.ton.Stop()
	}
	for _, g := range s.gateways {
		g.Uninitialize()
	}
	s.logger.Info("connector deactivated")
}

// Logout ends relay and bridge sessions, stops everything and deletes the
// session record.
func (s *Service) Logout(ctx context.Context) error {
	if !s.IsLoggedIn() {
		return ErrNotLoggedIn
	}
	if s.wc != nil && s.wc.IsInitialized() {
		if err := s.wc.DisconnectAll(ctx); err != nil {
			s.logger.Warn("failed to end walletconnect sessions", zap.Error(err))
		}
	}
	if s.ton != nil {
		if err := s.ton.DisconnectAll(ctx); err != nil {
			s.logger.Warn("failed to end tonconnect sessions", zap.Error(err))
		}
	}
	s.deactivate()
	return s.db.DeleteSessionData()
}

// Start resumes the session of a user who was logged in before the
// process stopped.
func (s *Service) Start() error {
	session, err := s.db.GetSessionData()
	if err != nil {
		return err
	}
	if session != nil && session.User != nil {
		s.activate()
	}
	return nil
}

// Stop keeps the session record for the next Start.
func (s *Service) Stop() error {
	s.deactivate()
	return nil
}

func (s *Service) APIs() []gethrpc.API {
	return []gethrpc.API{
		{
			Namespace: "connector",
			Version:   "0.1.0",
			Service:   NewAPI(s),
		},
	}
}
