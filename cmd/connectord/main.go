package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/urfave/cli/v2"

	"github.com/status-im/dapp-connector/logutils"
	"github.com/status-im/dapp-connector/params"
)

const (
	ConfigFlag  = "config"
	DataDirFlag = "datadir"
	LogFlag     = "log"
	HTTPFlag    = "httpport"
)

// gitCommit is set by the linker: -ldflags -X main.gitCommit
var gitCommit = ""

func main() {
	app := &cli.App{
		Name:    "connectord",
		Usage:   "dApp connector daemon",
		Version: version(gitCommit),
		Commands: []*cli.Command{
			commandServe(),
			commandConfig(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		logutils.ZapLogger().Fatal("connectord failed", zap.Error(err))
	}
}

func configFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    ConfigFlag,
			Aliases: []string{"c"},
			Usage:   "JSON config file, applied on top of the defaults",
		},
		&cli.StringFlag{
			Name:  DataDirFlag,
			Value: "./data",
			Usage: "Data directory for the store and log files",
		},
		&cli.StringFlag{
			Name:  LogFlag,
			Usage: `Log level, one of: "ERROR", "WARN", "INFO", "DEBUG", and "TRACE"`,
		},
		&cli.IntFlag{
			Name:  HTTPFlag,
			Usage: "RPC listen port",
		},
	}
}

func commandServe() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve the connector RPC namespace over HTTP and WebSocket",
		Flags: configFlags(),
		Action: func(c *cli.Context) error {
			config, err := makeConfig(c)
			if err != nil {
				return err
			}
			if err := logutils.OverrideRootLogWithConfig(logSettings(config)); err != nil {
				return err
			}

			container := NewContainer(config)
			defer func() {
				if err := container.Shutdown(); err != nil {
					logutils.ZapLogger().Warn("shutdown failed", zap.Error(err))
				}
			}()

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, container)
		},
	}
}

func commandConfig() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "print the effective configuration",
		Flags: configFlags(),
		Action: func(c *cli.Context) error {
			config, err := makeConfig(c)
			if err != nil {
				return err
			}
			if config.DatabaseKey != "" {
				config.DatabaseKey = "<redacted>"
			}
			encoder := json.NewEncoder(c.App.Writer)
			encoder.SetIndent("", "  ")
			return encoder.Encode(config)
		},
	}
}

// makeConfig parses CLI options and returns the connector configuration.
func makeConfig(c *cli.Context) (*params.ConnectorConfig, error) {
	var (
		config *params.ConnectorConfig
		err    error
	)
	if path := c.String(ConfigFlag); path != "" {
		config, err = params.LoadConfigFromFile(path)
		if err != nil {
			return nil, err
		}
	} else {
		config = params.NewConnectorConfig(c.String(DataDirFlag))
	}

	if c.IsSet(DataDirFlag) || config.DataDir == "" {
		config.DataDir = c.String(DataDirFlag)
	}
	if level := c.String(LogFlag); level != "" {
		config.LogEnabled = true
		config.LogLevel = level
	}
	if c.IsSet(HTTPFlag) {
		config.HTTPPort = c.Int(HTTPFlag)
	}
	return config, config.Validate()
}

func logSettings(config *params.ConnectorConfig) logutils.LogSettings {
	return logutils.LogSettings{
		Enabled:         config.LogEnabled,
		Level:           config.LogLevel,
		File:            config.LogFilePath(),
		MaxSize:         config.LogMaxSize,
		MaxBackups:      config.LogMaxBackups,
		CompressRotated: true,
	}
}

// version returns the binary version plus the git commit, if present.
func version(gitCommit string) string {
	v := params.Version
	if len(gitCommit) >= 8 {
		v += "-" + gitCommit[:8]
	}
	return v
}
