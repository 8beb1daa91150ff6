package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/flowcanvas/flowcanvas/pkg/canvas"
	"github.com/flowcanvas/flowcanvas/pkg/workflow"
)

type validateResult struct {
	Path         string   `json:"path"`
	Nodes        int      `json:"nodes"`
	Edges        int      `json:"edges"`
	Skipped      []string `json:"skipped,omitempty"`
	DroppedLinks int      `json:"dropped_links,omitempty"`
}

func newValidateCommand() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate <workflow>",
		Short: "Validate a workflow definition",
		Long: `Validate a workflow definition file (YAML or JSON).

This command checks:
  - Document shape against the workflow schema
  - Required fields and unique node ids
  - Links referencing declared nodes
  - Node types known to the catalog (loading into a canvas)`,
		Example: `  # Validate a workflow
  canvasctl validate ./support.yaml

  # Fail on unknown node types
  canvasctl validate --strict ./support.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			env, err := setup(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer env.close()

			log.Debug().Str("path", path).Bool("strict", strict).Msg("Validating workflow")

			def, err := workflow.LoadFile(path)
			if err != nil {
				return err
			}

			s := env.newSession()
			res := s.Initialize(def, canvas.WithWorkflow(workflowIDFromPath(path), ""))
			out := validateResult{
				Path:         path,
				Nodes:        res.Nodes,
				Edges:        res.Edges,
				Skipped:      res.Skipped,
				DroppedLinks: res.DroppedLinks,
			}

			if jsonOutput {
				if err := printJSON(cmd.OutOrStdout(), out); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d nodes, %d edges\n", path, out.Nodes, out.Edges)
				for _, id := range out.Skipped {
					fmt.Fprintf(cmd.OutOrStdout(), "  unknown node type: %s\n", id)
				}
				if out.DroppedLinks > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "  dropped links: %d\n", out.DroppedLinks)
				}
			}

			if strict && (len(out.Skipped) > 0 || out.DroppedLinks > 0) {
				return fmt.Errorf("workflow %s has %d unknown nodes and %d dropped links", path, len(out.Skipped), out.DroppedLinks)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "fail on unknown node types and dropped links")

	return cmd
}
