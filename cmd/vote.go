package cmd

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var VoteCmd = &cobra.Command{
	Use:   "vote [milestone]",
	Short: "Vote to release the active milestone",
	Args:  cobra.ExactArgs(1),
	RunE:  vote,
}

var ObjectCmd = &cobra.Command{
	Use:   "object [milestone]",
	Short: "Object to releasing the active milestone, recorded locally only",
	Args:  cobra.ExactArgs(1),
	RunE:  object,
}

func init() {
	addSignerFlags(VoteCmd)
}

func vote(cmd *cobra.Command, args []string) error {
	milestoneID, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return errors.Wrap(err, "milestone")
	}
	ctx := cmd.Context()
	controller, err := newController(ctx, true, nil)
	if err != nil {
		return err
	}
	defer controller.Session().Close()

	if err := follow(ctx, controller.SubmitVote(ctx, milestoneID)); err != nil {
		return err
	}
	remaining, err := controller.VotesRemaining(ctx, milestoneID)
	if err != nil {
		return err
	}
	fmt.Printf("Milestone %d needs %d more votes\n", milestoneID, remaining)
	return nil
}

func object(cmd *cobra.Command, args []string) error {
	milestoneID, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return errors.Wrap(err, "milestone")
	}
	ctx := cmd.Context()
	controller, err := newController(ctx, false, nil)
	if err != nil {
		return err
	}
	defer controller.Session().Close()
	return controller.Object(milestoneID)
}
