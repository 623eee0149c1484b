package commands

import (
	"context"

	"go.uber.org/zap"

	"github.com/status-im/dapp-connector/services/connector/eventbus"
)

func (g *Gateway) currentNotifier() Notifier {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.notifier
}

// onBusEvent turns wallet state changes into provider events for the
// embedded channel.
//
// Chain id updates go to the origin that switched. Connect and disconnect
// are only pushed to the current tab. Unscoped events reach the current
// tab when it is connected for the family.
func (g *Gateway) onBusEvent(e eventbus.Event) {
	if e.Family != g.family {
		return
	}
	notifier := g.currentNotifier()
	if notifier == nil {
		return
	}

	method, params, ok := g.strategy.Notification(e)
	if !ok {
		return
	}

	target := e.Origin
	switch e.Type {
	case eventbus.EventChainIDUpdated:
		if target == "" {
			return
		}

	case eventbus.EventConnected, eventbus.EventDisconnected:
		tab, err := g.db.CurrentTab()
		if err != nil || tab == nil || tab.Key() != e.Origin {
			return
		}

	default:
		tab, err := g.db.CurrentTab()
		if err != nil || tab == nil {
			return
		}
		target = tab.Key()
		conn, err := g.db.Connection(target, g.family)
		if err != nil || conn == nil {
			return
		}
	}

	if err := notifier.Notify(context.Background(), g.family, target, method, params); err != nil {
		g.logger.Warn("failed to notify", zap.String("event", string(e.Type)), zap.Error(err))
	}
}
