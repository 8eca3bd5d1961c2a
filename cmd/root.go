package cmd

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tendermint/tendermint/libs/log"

	"tranche-node/config"
)

var (
	rootDir string
	cfg     *config.Config
	logger  log.Logger
)

func init() {
	RootCmd.AddCommand(InitCmd)
	RootCmd.AddCommand(DevnetCmd)
	RootCmd.AddCommand(KeygenCmd)
	RootCmd.AddCommand(StatusCmd)
	RootCmd.AddCommand(DonateCmd)
	RootCmd.AddCommand(VoteCmd)
	RootCmd.AddCommand(ObjectCmd)
	RootCmd.AddCommand(WatchCmd)
	RootCmd.PersistentFlags().StringVar(&rootDir, "home", "./tmhome", "Home directory of the campaign client")
}

var RootCmd = cobra.Command{
	Use:          "tranche-node",
	Short:        "Milestone campaign client and devnet ledger",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.DefaultConfig()
		file := clientConfigFile()
		if _, err := os.Stat(file); err == nil {
			v := viper.New()
			v.SetConfigFile(file)
			if err := v.ReadInConfig(); err != nil {
				return errors.Wrap(err, "read client config")
			}
			if err := v.Unmarshal(cfg); err != nil {
				return errors.Wrap(err, "decode client config")
			}
		}
		cfg.SetRoot(rootDir)
		if err := cfg.ValidateBasic(); err != nil {
			return errors.Wrap(err, "client config")
		}
		var err error
		logger, err = config.NewLogger(cfg)
		if err != nil {
			return err
		}
		logger = logger.With("module", "main")
		return nil
	},
}

func clientConfigFile() string {
	return filepath.Join(rootDir, "config", config.FileName)
}
