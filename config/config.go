package config

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/tendermint/tendermint/libs/cli/flags"
	"github.com/tendermint/tendermint/libs/log"
)

const (
	LogFormatPlain = "plain"
	LogFormatJSON  = "json"

	BackendDevnet   = "devnet"
	BackendEthereum = "ethereum"

	FileName = "client.toml"

	defaultLogLevel = "*:info"
)

// Config is the client configuration read from <home>/config/client.toml.
type Config struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	LogPath   string `mapstructure:"log_path"`
	KeyFile   string `mapstructure:"key_file"`

	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Client   ClientConfig   `mapstructure:"client"`
	Campaign CampaignConfig `mapstructure:"campaign"`
}

type LedgerConfig struct {
	Backend  string `mapstructure:"backend"`
	RPCURL   string `mapstructure:"rpc_url"`
	Contract string `mapstructure:"contract"`
	// ChainID guards against signing for the wrong network, 0 accepts whatever the node reports.
	ChainID int64 `mapstructure:"chain_id"`
}

type ClientConfig struct {
	FetchConcurrency int           `mapstructure:"fetch_concurrency"`
	ConfirmTimeout   time.Duration `mapstructure:"confirm_timeout"`
	RefreshInterval  time.Duration `mapstructure:"refresh_interval"`
	MetricsAddr      string        `mapstructure:"metrics_addr"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel:  defaultLogLevel,
		LogFormat: LogFormatPlain,
		LogPath:   "stdout",
		KeyFile:   "config/client_key.txt",
		Ledger: LedgerConfig{
			Backend: BackendDevnet,
			RPCURL:  "tcp://127.0.0.1:26657",
		},
		Client: ClientConfig{
			FetchConcurrency: 4,
			ConfirmTimeout:   2 * time.Minute,
			RefreshInterval:  15 * time.Second,
			MetricsAddr:      "",
		},
		Campaign: DefaultCampaignConfig(),
	}
}

func (cfg *Config) ValidateBasic() error {
	switch cfg.LogFormat {
	case LogFormatPlain, LogFormatJSON:
	default:
		return errors.Errorf("unsupported log_format %q", cfg.LogFormat)
	}
	if cfg.Ledger.RPCURL == "" {
		return errors.New("ledger.rpc_url is empty")
	}
	switch cfg.Ledger.Backend {
	case BackendDevnet:
	case BackendEthereum:
		if !common.IsHexAddress(cfg.Ledger.Contract) {
			return errors.Errorf("ledger.contract %q is not an address", cfg.Ledger.Contract)
		}
	default:
		return errors.Errorf("unknown ledger.backend %q", cfg.Ledger.Backend)
	}
	if cfg.Client.FetchConcurrency < 1 {
		return errors.New("client.fetch_concurrency must be positive")
	}
	if cfg.Client.ConfirmTimeout <= 0 {
		return errors.New("client.confirm_timeout must be positive")
	}
	if cfg.Client.RefreshInterval <= 0 {
		return errors.New("client.refresh_interval must be positive")
	}
	return errors.Wrap(cfg.Campaign.ValidateBasic(), "campaign")
}

// SetRoot makes relative paths relative to the home directory.
func (cfg *Config) SetRoot(root string) {
	if cfg.KeyFile != "" && !filepath.IsAbs(cfg.KeyFile) {
		cfg.KeyFile = filepath.Join(root, cfg.KeyFile)
	}
	if cfg.LogPath != "stdout" && cfg.LogPath != "" && !filepath.IsAbs(cfg.LogPath) {
		cfg.LogPath = filepath.Join(root, cfg.LogPath)
	}
}

func (cfg *Config) ContractAddress() common.Address {
	return common.HexToAddress(cfg.Ledger.Contract)
}

// NewLogger builds the tendermint logger described by the log_* settings.
func NewLogger(cfg *Config) (log.Logger, error) {
	var dest io.Writer = os.Stdout
	if cfg.LogPath != "" && cfg.LogPath != "stdout" {
		file, err := os.OpenFile(cfg.LogPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return nil, errors.Wrap(err, "open log file")
		}
		dest = file
	}

	var logger log.Logger
	switch cfg.LogFormat {
	case LogFormatJSON:
		logger = log.NewTMJSONLogger(log.NewSyncWriter(dest))
	case LogFormatPlain, "":
		logger = log.NewTMLogger(log.NewSyncWriter(dest))
	default:
		return nil, errors.Errorf("unsupported log_format %q", cfg.LogFormat)
	}
	return flags.ParseLogLevel(cfg.LogLevel, logger, "info")
}
