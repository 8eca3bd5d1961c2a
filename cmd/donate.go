package cmd

import (
	"math/big"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var DonateCmd = &cobra.Command{
	Use:   "donate [milestone] [amount]",
	Short: "Donate to the active milestone",
	Args:  cobra.ExactArgs(2),
	RunE:  donate,
}

func init() {
	addSignerFlags(DonateCmd)
}

func donate(cmd *cobra.Command, args []string) error {
	milestoneID, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return errors.Wrap(err, "milestone")
	}
	amount, ok := new(big.Int).SetString(args[1], 10)
	if !ok {
		return errors.Errorf("invalid amount %q", args[1])
	}

	ctx := cmd.Context()
	controller, err := newController(ctx, true, nil)
	if err != nil {
		return err
	}
	defer controller.Session().Close()

	return follow(ctx, controller.SubmitDonation(ctx, milestoneID, amount))
}
