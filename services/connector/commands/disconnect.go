package commands

import (
	"context"

	"github.com/status-im/dapp-connector/services/connector/approvals"
	"github.com/status-im/dapp-connector/services/connector/eventbus"
)

type DisconnectCommand struct {
	g *Gateway
}

func (c *DisconnectCommand) Execute(ctx context.Context, rc *RequestContext) error {
	g := c.g
	key := rc.Origin().Key()

	if rc.Transport() == approvals.TransportEmbedded {
		conn, err := g.currentConnection(rc)
		if err != nil {
			return err
		}
		if conn == nil {
			g.respond(ctx, rc, true)
			return nil
		}
		if err := g.db.RemoveConnectedSite(key, g.family); err != nil {
			return err
		}
	}

	g.respond(ctx, rc, true)

	g.bus.Publish(eventbus.Event{
		Type:   eventbus.EventDisconnected,
		Family: g.family,
		Origin: key,
	})
	return nil
}
