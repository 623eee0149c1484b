package commands

import (
	"context"

	"go.uber.org/zap"

	"github.com/status-im/dapp-connector/services/connector/eventbus"
)

type SwitchChainCommand struct {
	g *Gateway
}

func (c *SwitchChainCommand) Execute(ctx context.Context, rc *RequestContext) error {
	g := c.g

	chainID, err := g.strategy.ParseSwitchChain(&rc.Request)
	if err != nil {
		if isProviderError(err) {
			return err
		}
		return invalidParams(err)
	}

	conn, err := g.currentConnection(rc)
	if err != nil {
		return err
	}
	if conn == nil {
		return ErrNotConnected
	}
	if !g.networks.Supported(g.family, chainID) {
		return ErrUnsupportedChain
	}
	if !conn.Wallet.IsDeployedOn(chainID) {
		return ErrWalletNotDeployed
	}

	if conn.ChainID == chainID {
		g.respond(ctx, rc, nil)
		return nil
	}

	key := rc.Origin().Key()
	if err := g.db.UpdateChainID(key, g.family, chainID); err != nil {
		return err
	}
	g.logger.Debug("chain switched", zap.String("origin", key), zap.Int64("chainId", chainID))

	g.respond(ctx, rc, nil)

	g.bus.Publish(eventbus.Event{
		Type:    eventbus.EventChainIDUpdated,
		Family:  g.family,
		Origin:  key,
		ChainID: g.eventChainID(chainID),
	})
	return nil
}
