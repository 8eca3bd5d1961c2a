package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tranche-node/campaign"
)

var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the milestones of the campaign",
	Args:  cobra.NoArgs,
	RunE:  status,
}

func status(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	controller, err := newController(ctx, false, nil)
	if err != nil {
		return err
	}
	defer controller.Session().Close()

	threshold, err := controller.Threshold(ctx)
	if err != nil {
		return err
	}
	printSnapshot(os.Stdout, controller.Snapshot(), threshold)
	return nil
}

func printSnapshot(out io.Writer, snapshot *campaign.Snapshot, threshold uint64) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tRAISED\tTARGET\tPROGRESS\tVOTES\tDESCRIPTION")
	for _, milestone := range snapshot.Milestones {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.1f%%\t%d/%d (%d left)\t%s\n",
			milestone.ID,
			campaign.StatusOf(snapshot, milestone.ID),
			milestone.CurrentAmount,
			milestone.TargetAmount,
			milestone.Progress.Percent(),
			milestone.VoteCount, threshold, campaign.VotesRemaining(milestone, threshold),
			milestone.Description)
	}
	w.Flush()

	progress := snapshot.Progress()
	fmt.Fprintf(out, "\nRaised %s of %s (%.1f%%)\n", snapshot.TotalRaised, snapshot.TotalTarget, progress.Percent())
	if snapshot.HasActive() {
		fmt.Fprintf(out, "Accepting donations for milestone %d\n", snapshot.ActiveID)
	} else {
		fmt.Fprintln(out, "Every milestone is released")
	}
}
