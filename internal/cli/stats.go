package cli

import (
	"github.com/spf13/cobra"

	"github.com/PollyDrive/estate/internal/models"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print pipeline status counts and rejection reasons",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()
		ctx := cmd.Context()

		counts, err := a.store.CountByStatus(ctx)
		if err != nil {
			return err
		}
		cmd.Println("listings by status:")
		for _, status := range statusOrder {
			if n, ok := counts[status]; ok {
				cmd.Printf("  %-24s %d\n", status, n)
			}
		}

		breakdown, err := a.store.RejectionBreakdown(ctx)
		if err != nil {
			return err
		}
		if len(breakdown) > 0 {
			cmd.Println("rejection reasons:")
			for _, rc := range breakdown {
				cmd.Printf("  %-24s %-24s %d\n", rc.Status, rc.Reason, rc.Count)
			}
		}

		deliveries, err := a.store.DeliveryCounts(ctx)
		if err != nil {
			return err
		}
		if len(deliveries) > 0 {
			cmd.Println("deliveries by chat:")
			for _, dc := range deliveries {
				cmd.Printf("  %-16d passed=%d sent=%d pending=%d\n", dc.ChatID, dc.Passed, dc.Sent, dc.Pending)
			}
		}
		return nil
	},
}

var statusOrder = []models.Status{
	models.StatusNew,
	models.StatusCollected,
	models.StatusStructurallyFiltered,
	models.StatusStructurallyRejected,
	models.StatusSemanticallyFiltered,
	models.StatusSemanticallyRejected,
	models.StatusDeduplicated,
	models.StatusDuplicateOfCanonical,
	models.StatusMatchedToProfile,
	models.StatusNotified,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
