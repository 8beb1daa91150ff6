package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/flowcanvas/flowcanvas/pkg/canvas"
	"github.com/flowcanvas/flowcanvas/pkg/session"
	"github.com/flowcanvas/flowcanvas/pkg/workflow"
)

type inspectView struct {
	WorkflowID string        `json:"workflow_id"`
	Nodes      []canvas.Node `json:"nodes"`
	Edges      []canvas.Edge `json:"edges"`
}

func newInspectCommand() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "inspect <workflow>",
		Short: "Load a workflow into a canvas and print its graph",
		Long: `Load a workflow definition into a canvas and print the resulting nodes
and edges, including the handles derived from node titles and router routes.

With --watch the file is reloaded and printed again whenever it changes.`,
		Example: `  canvasctl inspect ./support.yaml
  canvasctl inspect --watch ./support.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			ctx := cmd.Context()

			env, err := setup(ctx, false)
			if err != nil {
				return err
			}
			defer env.close()

			s := env.newSession()
			workflowID := workflowIDFromPath(path)

			load := func(def *workflow.Definition) error {
				s.Initialize(def, canvas.WithWorkflow(workflowID, ""))
				return printGraph(cmd.OutOrStdout(), workflowID, s)
			}

			def, err := workflow.LoadFile(path)
			if err != nil {
				return err
			}
			if err := load(def); err != nil {
				return err
			}

			if !watch {
				return nil
			}

			log.Info().Str("path", path).Msg("Watching workflow for changes")
			watcher := workflow.NewWatcher(env.tel.Logger.Zerolog())
			return watcher.Watch(ctx, path, load)
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "reload and print on every change")

	return cmd
}

func printGraph(w io.Writer, workflowID string, s *session.Session) error {
	view := inspectView{
		WorkflowID: workflowID,
		Nodes:      s.Nodes(),
		Edges:      s.Edges(),
	}
	if jsonOutput {
		return printJSON(w, view)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "NODE\tTYPE\tTITLE\tPOSITION\n")
	for _, n := range view.Nodes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t(%g, %g)\n", n.ID, n.Type, n.HandleLabel(), n.Position.X, n.Position.Y)
	}
	fmt.Fprintf(tw, "\nEDGE\tSOURCE\tTARGET\t\n")
	for _, e := range view.Edges {
		fmt.Fprintf(tw, "%s\t%s.%s\t%s.%s\t\n", e.ID, e.Source, e.SourceHandle, e.Target, e.TargetHandle)
	}
	return tw.Flush()
}
