package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	lorem "github.com/drhodes/golorem"
	"github.com/spf13/viper"
)

const (
	member   = "0x00000000000000000000000000000000000000c1"
	provider = "0x00000000000000000000000000000000000000aa"
)

func mockCampaignConfig() CampaignConfig {
	return CampaignConfig{
		Threshold: 2,
		Committee: []string{member},
		Milestones: []MilestoneConfig{
			{Description: lorem.Sentence(3, 8), ServiceProvider: provider, Target: "1000000000000000000000"},
			{Description: lorem.Sentence(3, 8), ServiceProvider: provider, Target: "5"},
		},
	}
}

func TestDefaultConfig(t *testing.T) {
	if err := DefaultConfig().ValidateBasic(); err != nil {
		t.Errorf("Default config invalid: %v", err)
	}
}

func TestValidateBasic(t *testing.T) {
	cases := map[string]func(cfg *Config){
		"log format":  func(cfg *Config) { cfg.LogFormat = "xml" },
		"backend":     func(cfg *Config) { cfg.Ledger.Backend = "carrier pigeon" },
		"contract":    func(cfg *Config) { cfg.Ledger.Backend = BackendEthereum },
		"rpc url":     func(cfg *Config) { cfg.Ledger.RPCURL = "" },
		"concurrency": func(cfg *Config) { cfg.Client.FetchConcurrency = 0 },
		"timeout":     func(cfg *Config) { cfg.Client.ConfirmTimeout = 0 },
		"interval":    func(cfg *Config) { cfg.Client.RefreshInterval = -time.Second },
		"threshold":   func(cfg *Config) { cfg.Campaign.Threshold = 0 },
		"member":      func(cfg *Config) { cfg.Campaign.Committee = []string{"alice"} },
		"target": func(cfg *Config) {
			cfg.Campaign.Milestones = []MilestoneConfig{{ServiceProvider: provider, Target: "ten"}}
		},
	}
	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(cfg)
		if cfg.ValidateBasic() == nil {
			t.Errorf("Invalid %s accepted", name)
		}
	}
	cfg := DefaultConfig()
	cfg.Ledger.Backend = BackendEthereum
	cfg.Ledger.Contract = provider
	if err := cfg.ValidateBasic(); err != nil {
		t.Errorf("Ethereum config rejected: %v", err)
	}
}

func TestGenesis(t *testing.T) {
	campaignConfig := mockCampaignConfig()
	genesis, err := campaignConfig.Genesis()
	if err != nil {
		t.Fatalf("Genesis failed: %v", err)
	}
	if genesis.Threshold != 2 || len(genesis.Milestones) != 2 || len(genesis.Committee) != 1 {
		t.Errorf("Wrong genesis %+v", genesis)
	}
	if genesis.Milestones[0].TargetAmount.String() != "1000000000000000000000" {
		t.Errorf("Target amount truncated: %s", genesis.Milestones[0].TargetAmount)
	}
	if genesis.Milestones[1].Description != campaignConfig.Milestones[1].Description {
		t.Errorf("Description not carried over")
	}
}

func TestWriteConfigFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config", FileName)
	written := DefaultConfig()
	written.LogFormat = LogFormatJSON
	written.Client.ConfirmTimeout = 90 * time.Second
	written.Campaign = mockCampaignConfig()
	written.Campaign.Milestones[0].Description = `say "hi"`
	if err := WriteConfigFile(file, written); err != nil {
		t.Fatalf("Failed writing config: %v", err)
	}

	v := viper.New()
	v.SetConfigFile(file)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("Failed reading config: %v", err)
	}
	read := DefaultConfig()
	if err := v.Unmarshal(read); err != nil {
		t.Fatalf("Failed decoding config: %v", err)
	}
	if read.LogFormat != LogFormatJSON || read.Client.ConfirmTimeout != 90*time.Second {
		t.Errorf("Settings lost: %+v", read)
	}
	if len(read.Campaign.Milestones) != 2 || read.Campaign.Milestones[0].Description != `say "hi"` {
		t.Errorf("Milestones lost: %+v", read.Campaign.Milestones)
	}
	if len(read.Campaign.Committee) != 1 || read.Campaign.Committee[0] != member {
		t.Errorf("Committee lost: %v", read.Campaign.Committee)
	}
	if err := read.ValidateBasic(); err != nil {
		t.Errorf("Written config invalid: %v", err)
	}
}

func TestNewLogger(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogPath = filepath.Join(t.TempDir(), "client.log")
	cfg.LogFormat = LogFormatJSON
	cfg.LogLevel = "*:info"
	logger, err := NewLogger(cfg)
	if err != nil {
		t.Fatalf("Failed building logger: %v", err)
	}
	logger.Info("Campaign refreshed", "milestones", 2)
	raw, err := os.ReadFile(cfg.LogPath)
	if err != nil || len(raw) == 0 || raw[0] != '{' {
		t.Errorf("Expected a json log line, got %q (%v)", raw, err)
	}

	cfg.LogLevel = "*:loud"
	if _, err := NewLogger(cfg); err == nil {
		t.Errorf("Unknown log level accepted")
	}
}
