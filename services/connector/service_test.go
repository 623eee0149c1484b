package connector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/status-im/dapp-connector/params"
	"github.com/status-im/dapp-connector/services/connector/chain"
	"github.com/status-im/dapp-connector/services/tonconnect/bridge/bridgetest"
)

func TestNewService(t *testing.T) {
	state := setupTests(t)

	assert.Len(t, state.service.gateways, len(chain.Families()))
	assert.Nil(t, state.service.wc)
	assert.Nil(t, state.service.ton)
	assert.False(t, state.service.IsLoggedIn())
}

func TestNewServiceRejectsBadNetworks(t *testing.T) {
	config := params.NewConnectorConfig(t.TempDir())
	config.Networks = append(config.Networks, params.NetworkConfig{Family: "btc", ChainID: 1})

	_, err := NewService(config, nil)
	require.Error(t, err)
}

func TestService_Start(t *testing.T) {
	state := setupTests(t)

	require.NoError(t, state.service.Start())
	assert.False(t, state.service.IsLoggedIn())

	state.login(t)
	require.NoError(t, state.service.Stop())
	assert.False(t, state.service.IsLoggedIn())

	// the session record survives Stop
	require.NoError(t, state.service.Start())
	assert.True(t, state.service.IsLoggedIn())
}

func TestService_LoginKeepsSessionOfSameUser(t *testing.T) {
	state := setupTests(t)
	state.login(t)
	state.connect(t)

	require.NoError(t, state.service.Stop())
	state.login(t)

	sites, err := state.api.GetConnectedSites()
	require.NoError(t, err)
	assert.Len(t, sites, 1)
}

func TestService_LoginAsOtherUserStartsFresh(t *testing.T) {
	state := setupTests(t)
	state.login(t)
	state.connect(t)

	require.NoError(t, state.service.Stop())
	require.NoError(t, state.api.Login(testUser2))

	sites, err := state.api.GetConnectedSites()
	require.NoError(t, err)
	assert.Empty(t, sites)
}

func TestService_Logout(t *testing.T) {
	state := setupTests(t)
	require.ErrorIs(t, state.api.Logout(state.ctx), ErrNotLoggedIn)

	state.login(t)
	state.connect(t)
	require.NoError(t, state.api.Logout(state.ctx))
	assert.False(t, state.service.IsLoggedIn())

	session, err := state.service.db.GetSessionData()
	require.NoError(t, err)
	assert.Nil(t, session)

	require.NoError(t, state.service.Start())
	assert.False(t, state.service.IsLoggedIn())
}

func TestService_StartsTonConnect(t *testing.T) {
	server := bridgetest.NewServer()
	defer server.Close()

	state := setupTests(t, func(c *params.ConnectorConfig) {
		c.TonConnect.Enabled = true
		c.TonConnect.BridgeURL = server.URL()
	})
	require.NotNil(t, state.service.ton)
	assert.False(t, state.service.ton.IsStarted())

	state.login(t)
	assert.True(t, state.service.ton.IsStarted())

	sessions, err := state.api.TonConnectSessions()
	require.NoError(t, err)
	assert.Empty(t, sessions)

	require.NoError(t, state.service.Stop())
	assert.False(t, state.service.ton.IsStarted())
}

func TestService_APIs(t *testing.T) {
	state := setupTests(t)

	apis := state.service.APIs()

	assert.Len(t, apis, 1)
	assert.Equal(t, "connector", apis[0].Namespace)
	assert.Equal(t, "0.1.0", apis[0].Version)
	assert.NotNil(t, apis[0].Service)
}
