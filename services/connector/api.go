package connector

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	statusErrors "github.com/status-im/dapp-connector/errors"
	"github.com/status-im/dapp-connector/services/connector/chain"
	"github.com/status-im/dapp-connector/services/connector/channel"
	"github.com/status-im/dapp-connector/services/connector/commands"
	persistence "github.com/status-im/dapp-connector/services/connector/database"
	"github.com/status-im/dapp-connector/services/connector/eventbus"
	"github.com/status-im/dapp-connector/services/connector/origin"
	"github.com/status-im/dapp-connector/services/tonconnect"
	"github.com/status-im/dapp-connector/services/walletconnect"
)

// API is exposed under the "connector" RPC namespace.
type API struct {
	s *Service
}

func NewAPI(s *Service) *API {
	return &API{s: s}
}

func (api *API) Login(user persistence.User) error {
	return api.s.Login(user)
}

func (api *API) Logout(ctx context.Context) error {
	return api.s.Logout(ctx)
}

// CallRPC dispatches a request from embedded web content. Relay and bridge
// tags are ignored, those requests only arrive through their adapters.
func (api *API) CallRPC(ctx context.Context, family chain.Family, rc commands.RequestContext) error {
	if _, err := api.s.lifecycle(); err != nil {
		return err
	}
	rc.TonConnect = nil
	rc.WalletConnect = nil
	if rc.Request.Params == nil {
		rc.Request.Params = []interface{}{}
	}
	api.s.channel.Attach(rc.Origin().Key())
	return api.s.Dispatch(ctx, family, &rc)
}

// HandleChannelMessage dispatches a raw message posted by embedded web
// content. The sender's channel is considered open from then on.
func (api *API) HandleChannelMessage(ctx context.Context, message json.RawMessage) error {
	if _, err := api.s.lifecycle(); err != nil {
		return err
	}
	family, rc, err := channel.ParseMessage(message)
	if err != nil {
		return err
	}
	api.s.channel.Attach(rc.Origin().Key())
	return api.s.Dispatch(ctx, family, rc)
}

// OpenChannel and CloseChannel follow the lifetime of a dApp page.
func (api *API) OpenChannel(url string) {
	api.s.channel.Attach(origin.Key(url))
}

func (api *API) CloseChannel(url string) {
	api.s.channel.Detach(origin.Key(url))
}

// ResolveApproval delivers the user's approval. Connection approvals
// carry a commands.ConnectApproval.
func (api *API) ResolveApproval(ctx context.Context, family chain.Family, requestID string, result json.RawMessage) error {
	if _, err := api.s.lifecycle(); err != nil {
		return err
	}
	g, err := api.s.gateway(family)
	if err != nil {
		return err
	}
	return g.ResolveApproval(ctx, requestID, result)
}

// RejectApproval delivers the user's refusal; a nil error means declined.
func (api *API) RejectApproval(ctx context.Context, family chain.Family, requestID string, pErr *statusErrors.ProviderError) error {
	if _, err := api.s.lifecycle(); err != nil {
		return err
	}
	g, err := api.s.gateway(family)
	if err != nil {
		return err
	}
	return g.RejectApproval(ctx, requestID, pErr)
}

// PendingApprovals lists what waits for the user across all gateways.
func (api *API) PendingApprovals() ([]commands.NavigationPayload, error) {
	if _, err := api.s.lifecycle(); err != nil {
		return nil, err
	}
	var out []commands.NavigationPayload
	for _, family := range chain.Families() {
		out = append(out, api.s.gateways[family].PendingApprovals()...)
	}
	return out, nil
}

// SelectWallet makes wallet the active one of family and tells connected
// dApps.
func (api *API) SelectWallet(ctx context.Context, family chain.Family, wallet chain.Wallet) error {
	if _, err := api.s.lifecycle(); err != nil {
		return err
	}
	if wallet.Family == "" {
		wallet.Family = family
	}
	if err := api.s.db.SelectWallet(family, wallet); err != nil {
		return err
	}
	api.s.bus.Publish(eventbus.Event{
		Type:   eventbus.EventWalletChanged,
		Family: family,
		Wallet: &wallet,
	})

	if api.s.wc != nil && api.s.wc.IsInitialized() && family != chain.Ton {
		if err := api.s.wc.EmitAccountsChanged(ctx, family, wallet); err != nil {
			api.s.logger.Warn("failed to announce wallet to walletconnect sessions", zap.Error(err))
		}
	}
	return nil
}

func (api *API) SelectedWallet(family chain.Family) (*chain.Wallet, error) {
	if _, err := api.s.lifecycle(); err != nil {
		return nil, err
	}
	return api.s.db.SelectedWallet(family)
}

// UpdateWallets refreshes stored copies of wallets, e.g. after a rename or
// a multisig deployment on another chain.
func (api *API) UpdateWallets(family chain.Family, wallets []chain.Wallet) error {
	if _, err := api.s.lifecycle(); err != nil {
		return err
	}
	return api.s.db.UpdateWallets(family, wallets)
}

// SetCurrentTab records the foreground dApp; an empty sender url clears it.
func (api *API) SetCurrentTab(sender origin.Sender, meta *origin.PageMetadata) error {
	if _, err := api.s.lifecycle(); err != nil {
		return err
	}
	if sender.URL == "" {
		return api.s.db.SetCurrentTab(nil)
	}
	o := origin.Resolve(sender, meta)
	return api.s.db.SetCurrentTab(&o)
}

func (api *API) BrowserHistory() ([]origin.Origin, error) {
	if _, err := api.s.lifecycle(); err != nil {
		return nil, err
	}
	return api.s.db.BrowserHistory()
}

func (api *API) GetConnectedSites() (map[string]persistence.ConnectionRecord, error) {
	if _, err := api.s.lifecycle(); err != nil {
		return nil, err
	}
	return api.s.db.GetConnectedSites()
}

// RecallDAppPermission disconnects the origin of url from the given
// families, or from all of them.
func (api *API) RecallDAppPermission(url string, families []chain.Family) error {
	if _, err := api.s.lifecycle(); err != nil {
		return err
	}
	key := origin.Key(url)
	if key == "" {
		return origin.ErrMissingURL
	}

	removed := families
	if len(removed) == 0 {
		removed = chain.Families()
	}
	var connected []chain.Family
	for _, f := range removed {
		conn, err := api.s.db.Connection(key, f)
		if err != nil {
			return err
		}
		if conn != nil {
			connected = append(connected, f)
		}
	}

	if err := api.s.db.RemoveConnectedSite(key, families...); err != nil {
		return err
	}
	for _, f := range connected {
		api.s.bus.Publish(eventbus.Event{
			Type:   eventbus.EventDisconnected,
			Family: f,
			Origin: key,
		})
	}
	return nil
}

// WalletConnectSession is a relay session without its key material.
type WalletConnectSession struct {
	Topic      string                             `json:"topic"`
	Peer       walletconnect.Metadata             `json:"peer"`
	Namespaces map[string]walletconnect.Namespace `json:"namespaces"`
	Expiry     int64                              `json:"expiry"`
}

func (api *API) walletConnect() (*walletconnect.Adapter, error) {
	if _, err := api.s.lifecycle(); err != nil {
		return nil, err
	}
	if api.s.wc == nil {
		return nil, ErrWalletConnectDisabled
	}
	return api.s.wc, nil
}

// PairWalletConnect pairs with a dApp from a wc: uri.
func (api *API) PairWalletConnect(ctx context.Context, uri string) error {
	wc, err := api.walletConnect()
	if err != nil {
		return err
	}
	return wc.Connect(ctx, uri)
}

func (api *API) WalletConnectSessions() ([]WalletConnectSession, error) {
	wc, err := api.walletConnect()
	if err != nil {
		return nil, err
	}
	sessions := wc.Sessions()
	out := make([]WalletConnectSession, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, WalletConnectSession{
			Topic:      s.Topic,
			Peer:       s.Peer.Metadata,
			Namespaces: s.Namespaces,
			Expiry:     s.Expiry,
		})
	}
	return out, nil
}

func (api *API) DisconnectWalletConnect(ctx context.Context, topic string) error {
	wc, err := api.walletConnect()
	if err != nil {
		return err
	}
	return wc.Disconnect(ctx, topic)
}

func (api *API) tonConnect() (*tonconnect.Adapter, error) {
	if _, err := api.s.lifecycle(); err != nil {
		return nil, err
	}
	if api.s.ton == nil {
		return nil, ErrTonConnectDisabled
	}
	return api.s.ton, nil
}

// ConnectTonConnect starts a handshake from a tc:// or universal link.
func (api *API) ConnectTonConnect(ctx context.Context, link string) error {
	ton, err := api.tonConnect()
	if err != nil {
		return err
	}
	return ton.Connect(ctx, link)
}

func (api *API) TonConnectSessions() ([]tonconnect.SessionInfo, error) {
	ton, err := api.tonConnect()
	if err != nil {
		return nil, err
	}
	return ton.Sessions(), nil
}

func (api *API) DisconnectTonConnect(ctx context.Context, url string) error {
	ton, err := api.tonConnect()
	if err != nil {
		return err
	}
	return ton.Disconnect(ctx, url)
}

// OpenURL handles a wc: or TonConnect link opened in the host application.
func (api *API) OpenURL(ctx context.Context, url string) error {
	return api.s.OpenURL(ctx, url)
}
