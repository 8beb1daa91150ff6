package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newAuditCommand() *cobra.Command {
	var (
		action string
		target string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the command audit trail",
		Example: `  canvasctl audit --action node.deleted
  canvasctl audit --target router-1 --limit 50`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := setup(ctx, true)
			if err != nil {
				return err
			}
			defer env.close()

			store, err := env.requireStore()
			if err != nil {
				return err
			}

			var actionFilter, targetFilter *string
			if action != "" {
				actionFilter = &action
			}
			if target != "" {
				targetFilter = &target
			}

			entries, err := store.ListAuditEntries(ctx, actionFilter, targetFilter, limit, 0)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), entries)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "TIME\tACTION\tTARGET\tACTOR\n")
			for _, e := range entries {
				targetID := "-"
				if e.TargetID != nil {
					targetID = *e.TargetID
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.Action, targetID, e.Actor)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&action, "action", "", "only entries with this event type")
	cmd.Flags().StringVar(&target, "target", "", "only entries for this node or edge")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of entries")

	return cmd
}
