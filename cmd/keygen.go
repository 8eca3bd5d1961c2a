package cmd

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"tranche-node/crypto"
)

var KeygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate the client signing key",
	Args:  cobra.NoArgs,
	RunE:  keygen,
}

func init() {
	KeygenCmd.Flags().Bool("force", false, "Overwrite an existing key")
}

func keygen(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(cfg.KeyFile); err == nil && !force {
		return errors.Errorf("%s already exists", cfg.KeyFile)
	}
	key, err := crypto.GenerateKey()
	if err != nil {
		return err
	}
	if err := crypto.SaveKey(cfg.KeyFile, key); err != nil {
		return err
	}
	fmt.Println(crypto.Address(key).Hex())
	return nil
}
