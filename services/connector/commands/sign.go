package commands

import (
	"context"

	"github.com/status-im/dapp-connector/services/connector/approvals"
)

// SignCommand forwards a signing request to the user. Requests arriving on
// an established relay or bridge session skip the connection check.
type SignCommand struct {
	g      *Gateway
	method string
	kind   approvals.Kind
}

func (c *SignCommand) Execute(ctx context.Context, rc *RequestContext) error {
	g := c.g

	var chainID int64
	if rc.ExternallyAuthenticated() {
		if rc.WalletConnect != nil && rc.WalletConnect.Request != nil {
			chainID = rc.WalletConnect.Request.ChainID
		}
	} else {
		conn, err := g.currentConnection(rc)
		if err != nil {
			return err
		}
		if conn == nil {
			return ErrNotConnected
		}
		chainID = conn.ChainID
	}

	sign, err := g.strategy.DecodeSign(c.method, &rc.Request)
	if err != nil {
		if isProviderError(err) {
			return err
		}
		return invalidParams(err)
	}

	if chainID == 0 {
		if chainID, err = g.activeChainID(nil); err != nil {
			return err
		}
	}

	return g.prompt(ctx, rc, c.kind, NavigationPayload{
		ChainID: chainID,
		Sign:    sign,
	})
}
