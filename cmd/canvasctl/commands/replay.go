package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/flowcanvas/flowcanvas/pkg/canvas"
	"github.com/flowcanvas/flowcanvas/pkg/poller"
	"github.com/flowcanvas/flowcanvas/pkg/session"
	"github.com/flowcanvas/flowcanvas/pkg/stores"
	"github.com/flowcanvas/flowcanvas/pkg/workflow"
)

type replayOutput struct {
	WorkflowID string            `json:"workflow_id"`
	Report     *session.Report   `json:"report"`
	Polled     int               `json:"polled,omitempty"`
	Statuses   map[string]string `json:"statuses,omitempty"`
	DraftID    string            `json:"draft_id,omitempty"`
}

func newReplayCommand() *cobra.Command {
	var (
		workflowPath string
		workflowID   string
		resume       bool
		statusFile   string
		pollFor      time.Duration
		save         bool
		outPath      string
	)

	cmd := &cobra.Command{
		Use:   "replay <script>",
		Short: "Replay a scripted editing session",
		Long: `Replay a YAML script of editing commands against a canvas.

The canvas starts empty, from a workflow file (--workflow), or from the
latest autosaved draft (--resume). Steps that target missing nodes or edges
are reported and skipped. After the script, run status can be polled from a
status file, and the result is saved as a draft and optionally exported.`,
		Example: `  # Build a workflow from scratch and export it
  canvasctl replay build.yaml --out support.yaml

  # Continue from the last draft and fold in run status for 30s
  canvasctl replay edits.yaml --workflow-id support --resume --status status.yaml --poll-for 30s`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			sc, err := session.LoadScript(args[0])
			if err != nil {
				return err
			}

			env, err := setup(ctx, true)
			if err != nil {
				return err
			}
			defer env.close()

			if workflowID == "" {
				switch {
				case workflowPath != "":
					workflowID = workflowIDFromPath(workflowPath)
				default:
					workflowID = workflowIDFromPath(args[0])
				}
			}

			s := env.newSession()
			if err := seedSession(ctx, env, s, workflowID, workflowPath, resume, sc.Name); err != nil {
				return err
			}

			report, err := sc.Replay(ctx, s)
			if err != nil {
				return err
			}
			out := replayOutput{WorkflowID: workflowID, Report: report}

			if statusFile == "" {
				statusFile = env.cfg.Poller.StatusFile
			}
			if statusFile != "" {
				out.Polled, err = pollStatus(ctx, env, s, workflowID, statusFile, pollFor)
				if err != nil {
					return err
				}
				out.Statuses = make(map[string]string)
				for _, id := range s.Data().IDs() {
					if entry, ok := s.NodeData(id); ok && entry.TaskStatus != "" {
						out.Statuses[id] = string(entry.TaskStatus)
					}
				}
			}

			if save && env.store != nil {
				draft, err := stores.NewDraft(workflowID, s.Canvas().ProjectName(), s.Export())
				if err != nil {
					return err
				}
				if err := env.store.SaveDraft(ctx, draft); err != nil {
					return err
				}
				if _, err := env.store.PruneDrafts(ctx, workflowID, env.cfg.Store.KeepDrafts); err != nil {
					log.Warn().Err(err).Str("workflow_id", workflowID).Msg("Failed to prune drafts")
				}
				out.DraftID = draft.ID
			}

			if outPath != "" {
				data, err := workflow.Encode(s.Export(), workflow.FormatFromPath(outPath))
				if err != nil {
					return err
				}
				if err := os.WriteFile(outPath, data, 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", outPath, err)
				}
			}

			return printReplay(cmd, out)
		},
	}

	cmd.Flags().StringVar(&workflowPath, "workflow", "", "workflow file to start from")
	cmd.Flags().StringVar(&workflowID, "workflow-id", "", "workflow id (default: file name)")
	cmd.Flags().BoolVar(&resume, "resume", false, "start from the latest draft of the workflow")
	cmd.Flags().StringVar(&statusFile, "status", "", "status file to poll after the script")
	cmd.Flags().DurationVar(&pollFor, "poll-for", 0, "keep polling for this long (0 polls once)")
	cmd.Flags().BoolVar(&save, "save", true, "save the result as a draft")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "export the resulting workflow to this file")

	return cmd
}

func seedSession(ctx context.Context, env *environment, s *session.Session, workflowID, workflowPath string, resume bool, name string) error {
	if resume {
		store, err := env.requireStore()
		if err != nil {
			return err
		}
		if draft := stores.RestoreLatest(ctx, store, workflowID, env.tel.Logger.Zerolog()); draft != nil {
			def, err := draft.Decode()
			if err != nil {
				return err
			}
			s.Initialize(def, canvas.WithWorkflow(workflowID, draft.ProjectName))
			log.Info().Str("draft_id", draft.ID).Msg("Resumed from draft")
			return nil
		}
		log.Info().Str("workflow_id", workflowID).Msg("No draft found, starting fresh")
	}

	def := &workflow.Definition{}
	if workflowPath != "" {
		loaded, err := workflow.LoadFile(workflowPath)
		if err != nil {
			return err
		}
		def = loaded
	}
	s.Initialize(def, canvas.WithWorkflow(workflowID, name))
	return nil
}

func pollStatus(ctx context.Context, env *environment, s *session.Session, workflowID, path string, pollFor time.Duration) (int, error) {
	p := poller.New(poller.FileSource{Path: path}, s.Data(),
		poller.WithInterval(env.cfg.Poller.Interval),
		poller.WithLogger(env.tel.Logger.Zerolog()),
		poller.WithTelemetry(env.tel),
		poller.WithWorkflowID(workflowID),
	)

	if pollFor <= 0 {
		return p.PollOnce(ctx)
	}

	// Run reports no counts; statuses are read back from the store.
	pctx, cancel := context.WithTimeout(ctx, pollFor)
	defer cancel()
	return 0, p.Run(pctx)
}

func printReplay(cmd *cobra.Command, out replayOutput) error {
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), out)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s: %d steps applied, %d rejected\n", out.WorkflowID, out.Report.Applied, len(out.Report.Rejected))
	for _, r := range out.Report.Rejected {
		fmt.Fprintf(w, "  step %d (%s): %s\n", r.Index, r.Command, r.Error)
	}
	for id, status := range out.Statuses {
		fmt.Fprintf(w, "  %s: %s\n", id, status)
	}
	if out.DraftID != "" {
		fmt.Fprintf(w, "draft saved: %s\n", out.DraftID)
	}
	return nil
}
