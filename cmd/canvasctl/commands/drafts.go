package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/flowcanvas/flowcanvas/pkg/workflow"
)

func newDraftsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drafts",
		Short: "Manage autosaved drafts",
	}

	cmd.AddCommand(newDraftsListCommand())
	cmd.AddCommand(newDraftsShowCommand())
	cmd.AddCommand(newDraftsDeleteCommand())

	return cmd
}

func newDraftsListCommand() *cobra.Command {
	var (
		workflowID string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List drafts, newest first",
		Args:  cobra.NoArgs,
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

			var filter *string
			if workflowID != "" {
				filter = &workflowID
			}
			drafts, err := store.ListDrafts(ctx, filter, limit, 0)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), drafts)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "ID\tWORKFLOW\tPROJECT\tNODES\tEDGES\tUPDATED\n")
			for _, d := range drafts {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
					d.ID, d.WorkflowID, d.ProjectName, d.NodeCount, d.EdgeCount, d.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&workflowID, "workflow-id", "", "only drafts of this workflow")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of drafts")

	return cmd
}

func newDraftsShowCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show <draft-id>",
		Short: "Print the workflow definition stored in a draft",
		Args:  cobra.ExactArgs(1),
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

			draft, err := store.GetDraft(ctx, args[0])
			if err != nil {
				return err
			}
			def, err := draft.Decode()
			if err != nil {
				return err
			}

			f := workflow.FormatYAML
			if format == "json" || jsonOutput {
				f = workflow.FormatJSON
			}
			data, err := workflow.Encode(def, f)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringVar(&format, "format", "yaml", "output format (yaml, json)")

	return cmd
}

func newDraftsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <draft-id>",
		Short: "Delete a draft",
		Args:  cobra.ExactArgs(1),
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
			if err := store.DeleteDraft(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted draft %s\n", args[0])
			return nil
		},
	}
}
