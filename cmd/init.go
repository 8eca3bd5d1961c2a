package cmd

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	tmconfig "github.com/tendermint/tendermint/config"
	"github.com/tendermint/tendermint/p2p"
	"github.com/tendermint/tendermint/privval"
	"github.com/tendermint/tendermint/types"

	"tranche-node/config"
	"tranche-node/crypto"
)

const chainID = "tranche-devnet"

var InitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize devnet node and client config files",
	RunE:  initialize,
}

func initialize(cmd *cobra.Command, args []string) error {
	configuration := tmconfig.DefaultConfig()
	configuration.SetRoot(rootDir)
	tmconfig.EnsureRoot(configuration.RootDir)

	configuration.LogLevel = "consensus:error,*:info"
	configuration.RPC.CORSAllowedOrigins = []string{"*"}
	configuration.P2P.AllowDuplicateIP = true
	configuration.Consensus.CreateEmptyBlocksInterval = time.Duration(10) * time.Second
	if err := configuration.ValidateBasic(); err != nil {
		return err
	}
	tmconfig.WriteConfigFile(rootDir+"/config/config.toml", configuration)

	if err := writeGenesis(configuration); err != nil {
		return err
	}

	if _, err := os.Stat(cfg.KeyFile); os.IsNotExist(err) {
		key, err := crypto.GenerateKey()
		if err != nil {
			return err
		}
		if err := crypto.SaveKey(cfg.KeyFile, key); err != nil {
			return errors.Wrap(err, "save client key")
		}
		// the first client key sits on the committee of the devnet campaign
		if len(cfg.Campaign.Committee) == 0 {
			cfg.Campaign.Committee = []string{crypto.Address(key).Hex()}
		}
	}

	// written with relative paths so the home directory can be moved
	written := *cfg
	written.KeyFile = relative(cfg.KeyFile)
	written.LogPath = relative(cfg.LogPath)
	if err := config.WriteConfigFile(clientConfigFile(), &written); err != nil {
		return err
	}
	logger.Info("Initialized", "home", rootDir, "chain", chainID)
	return nil
}

// writeGenesis creates the validator and node keys and a single validator genesis.
func writeGenesis(configuration *tmconfig.Config) error {
	privVal := privval.GenFilePV(configuration.PrivValidatorKeyFile(), configuration.PrivValidatorStateFile())
	privVal.Save()

	if _, err := p2p.LoadOrGenNodeKey(configuration.NodeKeyFile()); err != nil {
		return errors.Wrap(err, "node key")
	}

	validatorKey, err := privVal.GetPubKey()
	if err != nil {
		return errors.Wrap(err, "validator key")
	}
	genDoc := types.GenesisDoc{
		ChainID:         chainID,
		GenesisTime:     time.Now(),
		ConsensusParams: types.DefaultConsensusParams(),
		Validators: []types.GenesisValidator{{
			Address: validatorKey.Address(),
			PubKey:  validatorKey,
			Power:   10,
		}},
	}
	return errors.Wrap(genDoc.SaveAs(configuration.GenesisFile()), "genesis")
}

func relative(path string) string {
	if !filepath.IsAbs(path) {
		return path
	}
	if rel, err := filepath.Rel(rootDir, path); err == nil {
		return rel
	}
	return path
}
