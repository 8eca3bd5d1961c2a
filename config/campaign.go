package config

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"tranche-node/modules"
)

// CampaignConfig is the genesis of the devnet ledger.
type CampaignConfig struct {
	Threshold  uint64            `mapstructure:"threshold"`
	Committee  []string          `mapstructure:"committee"`
	Milestones []MilestoneConfig `mapstructure:"milestones"`
}

type MilestoneConfig struct {
	Description     string `mapstructure:"description"`
	ServiceProvider string `mapstructure:"service_provider"`
	// Target is a decimal string, amounts do not fit a toml integer.
	Target string `mapstructure:"target"`
}

func DefaultCampaignConfig() CampaignConfig {
	return CampaignConfig{Threshold: 1}
}

func (cfg CampaignConfig) ValidateBasic() error {
	if cfg.Threshold == 0 {
		return errors.New("threshold must be at least 1")
	}
	for _, member := range cfg.Committee {
		if !common.IsHexAddress(member) {
			return errors.Errorf("committee member %q is not an address", member)
		}
	}
	for i, milestone := range cfg.Milestones {
		if !common.IsHexAddress(milestone.ServiceProvider) {
			return errors.Errorf("milestone %d: service provider %q is not an address", i, milestone.ServiceProvider)
		}
		target, ok := new(big.Int).SetString(milestone.Target, 10)
		if !ok || target.Sign() < 0 {
			return errors.Errorf("milestone %d: invalid target %q", i, milestone.Target)
		}
	}
	return nil
}

// Genesis builds the devnet campaign state.
func (cfg CampaignConfig) Genesis() (*modules.Campaign, error) {
	if err := cfg.ValidateBasic(); err != nil {
		return nil, err
	}
	campaign := &modules.Campaign{
		Threshold: cfg.Threshold,
		Committee: make(map[common.Address]bool),
	}
	for _, member := range cfg.Committee {
		campaign.Committee[common.HexToAddress(member)] = true
	}
	for _, milestone := range cfg.Milestones {
		target, _ := new(big.Int).SetString(milestone.Target, 10)
		campaign.Milestones = append(campaign.Milestones,
			modules.NewMilestone(milestone.Description, common.HexToAddress(milestone.ServiceProvider), target))
	}
	if err := campaign.Validate(); err != nil {
		return nil, err
	}
	return campaign, nil
}
