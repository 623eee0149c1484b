package params

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	validator "gopkg.in/go-playground/validator.v9"
)

// Version of the connector, set at build time.
var Version = "development"

const (
	// DefaultBrowserHistoryLimit bounds the persisted browsing history.
	DefaultBrowserHistoryLimit = 100

	// DefaultApprovalTimeout mirrors how long the wallet waits for a user decision.
	DefaultApprovalTimeout = 20 * time.Minute

	DefaultWalletConnectRelayURL = "wss://relay.walletconnect.org"

	DefaultTonConnectBridgeURL = "https://bridge.tonapi.io/bridge"

	// DefaultTonConnectMaxProtocolVersion is the highest TonConnect protocol
	// version this wallet speaks.
	DefaultTonConnectMaxProtocolVersion = 2

	DefaultTonConnectDebounce = 500 * time.Millisecond

	DefaultTonConnectMessageTTL = 300
)

// ----------
// NetworkConfig
// ----------

// NetworkConfig describes one chain a family can be connected to.
type NetworkConfig struct {
	Family string `json:"family" validate:"eq=evm|eq=solana|eq=ton"`

	ChainID int64 `json:"chainId" validate:"required"`

	Name string `json:"name" validate:"required"`

	// CAIP2Reference is the CAIP-2 reference for the chain. EVM networks
	// derive it from ChainID when empty.
	CAIP2Reference string `json:"caip2Reference,omitempty"`

	// RPCURL is used for read-only passthrough calls.
	RPCURL string `json:"rpcUrl,omitempty"`

	Testnet bool `json:"testnet,omitempty"`
}

// ----------
// WalletConnectConfig
// ----------

// WalletConnectMetadata is the wallet's self description shown to dApps.
type WalletConnectMetadata struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Icons       []string `json:"icons"`
}

// WalletConnectConfig holds the relay settings
type WalletConnectConfig struct {
	Enabled bool `json:"enabled"`

	ProjectID string `json:"projectId" validate:"required"`

	RelayURL string `json:"relayUrl" validate:"required"`

	Metadata WalletConnectMetadata `json:"metadata"`
}

// Validate validates the WalletConnectConfig struct and returns an error if inconsistent values are found
func (c *WalletConnectConfig) Validate(validate *validator.Validate) error {
	if !c.Enabled {
		return nil
	}

	if err := validate.Struct(c); err != nil {
		return err
	}

	u, err := url.ParseRequestURI(c.RelayURL)
	if err != nil {
		return fmt.Errorf("WalletConnect.RelayURL '%s' is invalid: %v", c.RelayURL, err.Error())
	}
	if u.Scheme != "wss" && u.Scheme != "ws" {
		return fmt.Errorf("WalletConnect.RelayURL '%s' must be a websocket url", c.RelayURL)
	}

	return nil
}

// ----------
// TonConnectConfig
// ----------

// TonConnectConfig holds the bridge settings
type TonConnectConfig struct {
	Enabled bool `json:"enabled"`

	BridgeURL string `json:"bridgeUrl" validate:"required"`

	// UniversalLinkHost is matched against https deep links, e.g. app.example.com/tonconnect.
	UniversalLinkHost string `json:"universalLinkHost"`

	MaxProtocolVersion int `json:"maxProtocolVersion" validate:"min=1"`

	DebounceInterval time.Duration `json:"debounceInterval"`

	// MessageTTL is passed to the bridge in seconds.
	MessageTTL int `json:"messageTtl" validate:"min=1"`

	AppName string `json:"appName"`

	AppVersion string `json:"appVersion"`
}

// Validate validates the TonConnectConfig struct and returns an error if inconsistent values are found
func (c *TonConnectConfig) Validate(validate *validator.Validate) error {
	if !c.Enabled {
		return nil
	}

	if err := validate.Struct(c); err != nil {
		return err
	}

	if _, err := url.ParseRequestURI(c.BridgeURL); err != nil {
		return fmt.Errorf("TonConnect.BridgeURL '%s' is invalid: %v", c.BridgeURL, err.Error())
	}

	return nil
}

// ----------
// ConnectorConfig
// ----------

// ConnectorConfig is the top level configuration of the connector daemon.
type ConnectorConfig struct {
	DataDir string `json:"dataDir" validate:"required"`

	// DatabaseKey encrypts the sqlite store. Empty disables encryption.
	DatabaseKey string `json:"databaseKey,omitempty"`

	LogEnabled bool `json:"logEnabled"`

	LogLevel string `json:"logLevel" validate:"eq=ERROR|eq=WARN|eq=INFO|eq=DEBUG|eq=TRACE"`

	// LogFile is relative to DataDir unless absolute.
	LogFile string `json:"logFile,omitempty"`

	LogMaxSize int `json:"logMaxSize,omitempty"`

	LogMaxBackups int `json:"logMaxBackups,omitempty"`

	Networks []NetworkConfig `json:"networks" validate:"required,dive"`

	WalletConnect WalletConnectConfig `json:"walletConnect" validate:"structonly"`

	TonConnect TonConnectConfig `json:"tonConnect" validate:"structonly"`

	BrowserHistoryLimit int `json:"browserHistoryLimit" validate:"min=1"`

	// ApprovalTimeout of zero waits for the user forever.
	ApprovalTimeout time.Duration `json:"approvalTimeout"`

	HTTPHost string `json:"httpHost"`

	HTTPPort int `json:"httpPort" validate:"min=0,max=65535"`

	MetricsEnabled bool `json:"metricsEnabled"`

	MetricsPort int `json:"metricsPort" validate:"min=0,max=65535"`
}

// NewConnectorConfig returns a configuration populated with defaults.
func NewConnectorConfig(dataDir string) *ConnectorConfig {
	return &ConnectorConfig{
		DataDir:  dataDir,
		LogLevel: "ERROR",
		Networks: DefaultNetworks(),
		WalletConnect: WalletConnectConfig{
			RelayURL: DefaultWalletConnectRelayURL,
			Metadata: WalletConnectMetadata{
				Name:        "Status",
				Description: "Status wallet",
				URL:         "https://status.app",
				Icons:       []string{"https://status.app/icons/icon-512x512.png"},
			},
		},
		TonConnect: TonConnectConfig{
			BridgeURL:          DefaultTonConnectBridgeURL,
			MaxProtocolVersion: DefaultTonConnectMaxProtocolVersion,
			DebounceInterval:   DefaultTonConnectDebounce,
			MessageTTL:         DefaultTonConnectMessageTTL,
			AppName:            "status",
			AppVersion:         Version,
		},
		BrowserHistoryLimit: DefaultBrowserHistoryLimit,
		ApprovalTimeout:     DefaultApprovalTimeout,
		HTTPHost:            "localhost",
		HTTPPort:            8545,
		MetricsPort:         9305,
	}
}

// NewConfigFromJSON parses incoming JSON and returned it as Config
func NewConfigFromJSON(configJSON string) (*ConnectorConfig, error) {
	config := NewConnectorConfig("")

	if err := loadConfigFromJSON(configJSON, config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadConfigFromFile reads a JSON config from path on top of the defaults.
func LoadConfigFromFile(path string) (*ConnectorConfig, error) {
	jsonConfig, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewConfigFromJSON(string(jsonConfig))
}

func loadConfigFromJSON(configJSON string, config *ConnectorConfig) error {
	decoder := json.NewDecoder(strings.NewReader(configJSON))
	// override default configuration with values by JSON input
	return decoder.Decode(config)
}

// NewValidator returns the validator used for every config struct.
func NewValidator() *validator.Validate {
	return validator.New()
}

// Validate checks if the configuration is valid. Child structs are only
// validated when enabled.
func (c *ConnectorConfig) Validate() error {
	validate := NewValidator()

	if err := validate.Struct(c); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Networks))
	for _, n := range c.Networks {
		key := fmt.Sprintf("%s:%d", n.Family, n.ChainID)
		if seen[key] {
			return fmt.Errorf("network %s is declared twice", key)
		}
		seen[key] = true
		if n.Family != "evm" && n.CAIP2Reference == "" {
			return fmt.Errorf("network %s requires a CAIP-2 reference", key)
		}
	}

	if err := c.WalletConnect.Validate(validate); err != nil {
		return err
	}
	if err := c.TonConnect.Validate(validate); err != nil {
		return err
	}

	return nil
}

// LogFilePath resolves LogFile against DataDir.
func (c *ConnectorConfig) LogFilePath() string {
	if c.LogFile == "" || filepath.IsAbs(c.LogFile) {
		return c.LogFile
	}
	return filepath.Join(c.DataDir, c.LogFile)
}

// DatabasePath is where the sqlite store lives.
func (c *ConnectorConfig) DatabasePath() string {
	return filepath.Join(c.DataDir, "connector.db")
}

// NetworksByFamily filters the configured networks.
func (c *ConnectorConfig) NetworksByFamily(family string) []NetworkConfig {
	var out []NetworkConfig
	for _, n := range c.Networks {
		if n.Family == family {
			out = append(out, n)
		}
	}
	return out
}
