package commands

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	statusErrors "github.com/status-im/dapp-connector/errors"
	"github.com/status-im/dapp-connector/services/connector/approvals"
	"github.com/status-im/dapp-connector/services/connector/chain"
	"github.com/status-im/dapp-connector/services/connector/eventbus"
)

type ConnectCommand struct {
	g *Gateway
}

func (c *ConnectCommand) Execute(ctx context.Context, rc *RequestContext) error {
	g := c.g

	params, err := g.strategy.ParseConnect(&rc.Request)
	if err != nil {
		if isProviderError(err) {
			return err
		}
		return invalidParams(err)
	}

	o := rc.Origin()
	conn, err := g.currentConnection(rc)
	if err != nil {
		return err
	}
	selected, err := g.db.SelectedWallet(g.family)
	if err != nil {
		return err
	}

	outcome := DecideConnect(ConnectInput{
		ShouldPrompt:    params.ShouldPrompt,
		Connected:       conn != nil,
		WalletSelected:  selected != nil,
		ExternalPairing: rc.ExternalPairing(),
	})

	switch outcome.Kind {
	case OutcomeReject:
		return outcome.Reason

	case OutcomeResolve:
		g.respond(ctx, rc, g.strategy.ConnectResult(rc.Request.Method, conn.Wallet, conn.ChainID))
		return nil

	case OutcomeConnectDirect:
		chainID := conn.ChainID
		if params.ChainID != 0 {
			chainID = params.ChainID
		}
		return g.connect(ctx, rc, *selected, chainID)
	}

	chainID := params.ChainID
	if chainID == 0 && conn != nil {
		chainID = conn.ChainID
	}
	payload := NavigationPayload{
		ChainID: chainID,
		Wallet:  selected,
	}
	if rc.WalletConnect != nil && rc.WalletConnect.Proposal != nil {
		payload.PairingHandle = rc.WalletConnect.Proposal.PairingTopic
	}
	if rc.TonConnect != nil {
		payload.PairingHandle = rc.TonConnect.DAppClientID
	}
	g.logger.Debug("connection needs approval", zap.String("origin", o.Key()))
	return g.prompt(ctx, rc, approvals.KindConnection, payload)
}

// completeConnect runs when the user approved a connection request.
func (g *Gateway) completeConnect(ctx context.Context, rc *RequestContext, result json.RawMessage) error {
	var approval ConnectApproval
	if err := json.Unmarshal(result, &approval); err != nil {
		g.reject(ctx, rc, invalidParams(err))
		return err
	}
	if approval.Wallet.Family == "" {
		approval.Wallet.Family = g.family
	}
	if approval.Wallet.Family != g.family {
		g.reject(ctx, rc, ErrUserRejected)
		return ErrWrongFamily
	}

	chainID := approval.ChainID
	if chainID == 0 {
		chainID = approval.Wallet.ChainID
	}
	if chainID == 0 {
		def, err := g.networks.DefaultChainID(g.family)
		if err != nil {
			g.reject(ctx, rc, ErrUnsupportedChain)
			return nil
		}
		chainID = def
	}

	if err := g.connect(ctx, rc, approval.Wallet, chainID); err != nil {
		g.reject(ctx, rc, statusErrors.AsProviderError(err))
	}
	return nil
}

// connect binds wallet to the sender, selects it and answers the request.
// Relay and bridge sessions are owned by their adapters, only embedded
// origins get a connection record.
func (g *Gateway) connect(ctx context.Context, rc *RequestContext, wallet chain.Wallet, chainID int64) error {
	if !g.networks.Supported(g.family, chainID) {
		return ErrUnsupportedChain
	}
	if !wallet.IsDeployedOn(chainID) {
		return ErrWalletNotDeployed
	}

	o := rc.Origin()
	if rc.Transport() == approvals.TransportEmbedded {
		if err := g.db.AddConnectedSite(o, g.family, wallet, chainID); err != nil {
			return err
		}
	}

	wallet.ChainID = chainID
	if err := g.db.SelectWallet(g.family, wallet); err != nil {
		return err
	}

	g.respond(ctx, rc, g.strategy.ConnectResult(rc.Request.Method, wallet, chainID))

	g.bus.Publish(eventbus.Event{
		Type:    eventbus.EventConnected,
		Family:  g.family,
		Origin:  o.Key(),
		ChainID: g.eventChainID(chainID),
		Wallet:  &wallet,
	})
	return nil
}
