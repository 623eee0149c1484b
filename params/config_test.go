package params

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewConfigFromJSON(t *testing.T) {
	testCases := []struct {
		name      string
		json      string
		expectErr string
		check     func(t *testing.T, c *ConnectorConfig)
	}{
		{
			name: "defaults are kept",
			json: `{"dataDir": "/tmp/connector"}`,
			check: func(t *testing.T, c *ConnectorConfig) {
				require.Equal(t, DefaultBrowserHistoryLimit, c.BrowserHistoryLimit)
				require.Equal(t, DefaultApprovalTimeout, c.ApprovalTimeout)
				require.Len(t, c.NetworksByFamily("evm"), 4)
				require.Len(t, c.NetworksByFamily("ton"), 2)
			},
		},
		{
			name:      "missing data dir",
			json:      `{}`,
			expectErr: "DataDir",
		},
		{
			name:      "bad log level",
			json:      `{"dataDir": "/tmp", "logLevel": "LOUD"}`,
			expectErr: "LogLevel",
		},
		{
			name:      "enabled walletconnect requires project id",
			json:      `{"dataDir": "/tmp", "walletConnect": {"enabled": true, "relayUrl": "wss://relay.walletconnect.org"}}`,
			expectErr: "ProjectID",
		},
		{
			name:      "walletconnect relay must be a websocket",
			json:      `{"dataDir": "/tmp", "walletConnect": {"enabled": true, "projectId": "p", "relayUrl": "https://relay"}}`,
			expectErr: "websocket",
		},
		{
			name:      "disabled walletconnect is not validated",
			json:      `{"dataDir": "/tmp", "walletConnect": {"enabled": false, "relayUrl": ""}}`,
			expectErr: "",
		},
		{
			name:      "duplicate network",
			json:      `{"dataDir": "/tmp", "networks": [{"family": "evm", "chainId": 1, "name": "a"}, {"family": "evm", "chainId": 1, "name": "b"}]}`,
			expectErr: "declared twice",
		},
		{
			name:      "non evm network needs caip2 reference",
			json:      `{"dataDir": "/tmp", "networks": [{"family": "solana", "chainId": 101, "name": "Solana"}]}`,
			expectErr: "CAIP-2",
		},
		{
			name:      "unknown family",
			json:      `{"dataDir": "/tmp", "networks": [{"family": "btc", "chainId": 1, "name": "Bitcoin"}]}`,
			expectErr: "Family",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := NewConfigFromJSON(tc.json)
			if tc.expectErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.expectErr)
				return
			}
			require.NoError(t, err)
			if tc.check != nil {
				tc.check(t, c)
			}
		})
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"dataDir": "`+dir+`", "logFile": "connector.log"}`), 0600))

	c, err := LoadConfigFromFile(path)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "connector.log"), c.LogFilePath())
	require.Equal(t, filepath.Join(dir, "connector.db"), c.DatabasePath())

	_, err = LoadConfigFromFile(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
}
