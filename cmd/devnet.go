package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	tmconfig "github.com/tendermint/tendermint/config"
	"github.com/tendermint/tendermint/node"
	"github.com/tendermint/tendermint/p2p"
	"github.com/tendermint/tendermint/privval"
	"github.com/tendermint/tendermint/proxy"
	dbm "github.com/tendermint/tm-db"

	"tranche-node/app"
	"tranche-node/config"
)

var DevnetCmd = &cobra.Command{
	Use:   "devnet",
	Short: "Run a single validator devnet ledger holding the configured campaign",
	RunE:  devnet,
}

func devnet(cmd *cobra.Command, args []string) error {
	configuration := tmconfig.DefaultConfig()
	v := viper.New()
	v.SetConfigFile(rootDir + "/config/config.toml")
	if err := v.ReadInConfig(); err != nil {
		return errors.Wrap(err, "read node config, run init first")
	}
	if err := v.Unmarshal(configuration); err != nil {
		return err
	}
	configuration.SetRoot(rootDir)
	if err := configuration.ValidateBasic(); err != nil {
		return err
	}

	logConfig := *cfg
	logConfig.LogLevel = configuration.LogLevel
	nodeLogger, err := config.NewLogger(&logConfig)
	if err != nil {
		return err
	}

	genesis, err := cfg.Campaign.Genesis()
	if err != nil {
		return errors.Wrap(err, "campaign genesis")
	}
	db, err := dbm.NewGoLevelDB("campaign", configuration.DBDir())
	if err != nil {
		return errors.Wrap(err, "open campaign store")
	}
	defer db.Close()
	chain, err := app.NewCampaignChain(genesis, db, nodeLogger.With("module", "campaign"))
	if err != nil {
		return err
	}

	pv := privval.LoadFilePV(
		configuration.PrivValidatorKeyFile(),
		configuration.PrivValidatorStateFile(),
	)

	nodeKey, err := p2p.LoadNodeKey(configuration.NodeKeyFile())
	if err != nil {
		return errors.Wrap(err, "load node key")
	}

	devnetNode, err := node.NewNode(
		configuration,
		pv,
		nodeKey,
		proxy.NewLocalClientCreator(chain),
		node.DefaultGenesisDocProviderFunc(configuration),
		node.DefaultDBProvider,
		node.DefaultMetricsProvider(configuration.Instrumentation),
		nodeLogger)
	if err != nil {
		return errors.Wrap(err, "create node")
	}

	if err := devnetNode.Start(); err != nil {
		return errors.Wrap(err, "start node")
	}
	defer func() {
		devnetNode.Stop()
		devnetNode.Wait()
	}()

	sign := make(chan os.Signal, 1)
	signal.Notify(sign, syscall.SIGINT, syscall.SIGTERM)
	<-sign
	return nil
}
