package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/status-im/dapp-connector/params"
)

func runConfig(t *testing.T, args ...string) (*params.ConnectorConfig, error) {
	var out bytes.Buffer
	app := &cli.App{
		Name:     "connectord",
		Writer:   &out,
		Commands: []*cli.Command{commandConfig()},
	}
	if err := app.Run(append([]string{"connectord", "config"}, args...)); err != nil {
		return nil, err
	}
	var config params.ConnectorConfig
	require.NoError(t, json.Unmarshal(out.Bytes(), &config))
	return &config, nil
}

func TestConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	config, err := runConfig(t, "--datadir", dir, "--log", "DEBUG", "--httpport", "9000")
	require.NoError(t, err)

	require.Equal(t, dir, config.DataDir)
	require.True(t, config.LogEnabled)
	require.Equal(t, "DEBUG", config.LogLevel)
	require.Equal(t, 9000, config.HTTPPort)
	require.NotEmpty(t, config.Networks)
}

func TestConfigFromFileRedactsKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"dataDir":"`+dir+`","databaseKey":"secret","httpPort":8600}`), 0600))

	config, err := runConfig(t, "--config", path)
	require.NoError(t, err)
	require.Equal(t, 8600, config.HTTPPort)
	require.Equal(t, "<redacted>", config.DatabaseKey)
}

func TestConfigRejectsBadLogLevel(t *testing.T) {
	_, err := runConfig(t, "--datadir", t.TempDir(), "--log", "LOUD")
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	require.Equal(t, params.Version, version(""))
	require.Equal(t, params.Version+"-0123abcd", version("0123abcdef"))
}
