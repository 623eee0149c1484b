package commands

import (
	"context"
)

// ProviderStateCommand reports what an injected provider needs on page
// load: the connected account, if any, and the active chain.
type ProviderStateCommand struct {
	g *Gateway
}

func (c *ProviderStateCommand) Execute(ctx context.Context, rc *RequestContext) error {
	g := c.g
	conn, err := g.currentConnection(rc)
	if err != nil {
		return err
	}
	chainID, err := g.activeChainID(conn)
	if err != nil {
		return err
	}
	g.respond(ctx, rc, g.strategy.ProviderState(conn, chainID))
	return nil
}

// AccountsCommand lists the accounts connected to the sender, an empty list
// when there are none.
type AccountsCommand struct {
	g *Gateway
}

func (c *AccountsCommand) Execute(ctx context.Context, rc *RequestContext) error {
	g := c.g
	conn, err := g.currentConnection(rc)
	if err != nil {
		return err
	}
	accounts := []string{}
	if conn != nil {
		accounts = append(accounts, conn.Wallet.Address)
	}
	g.respond(ctx, rc, accounts)
	return nil
}

type ChainIDCommand struct {
	g *Gateway
}

func (c *ChainIDCommand) Execute(ctx context.Context, rc *RequestContext) error {
	g := c.g
	conn, err := g.currentConnection(rc)
	if err != nil {
		return err
	}
	chainID, err := g.activeChainID(conn)
	if err != nil {
		return err
	}
	g.respond(ctx, rc, g.strategy.FormatChainID(chainID))
	return nil
}
