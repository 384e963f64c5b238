package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/labflow/internal/formula"
	"github.com/me/labflow/internal/labutil"
	"github.com/me/labflow/pkg/model"
)

// runDetail mirrors a run with its position in the workflow.
type runDetail struct {
	model.UserWorkflow
	Progress struct {
		AssayIndex int `json:"assay_index"`
		AssayCount int `json:"assay_count"`
		StepIndex  int `json:"step_index"`
		StepCount  int `json:"step_count"`
	} `json:"progress"`
}

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Start and track your workflow runs",
	}
	cmd.AddCommand(
		newRunsListCmd(),
		newRunsStartCmd(),
		newRunsStatusCmd(),
		newRunActionCmd("advance", "Move a run to its next step"),
		newRunActionCmd("complete", "Mark a run completed"),
		newRunActionCmd("abandon", "Mark a run abandoned"),
	)
	return cmd
}

func newRunsListCmd() *cobra.Command {
	var status, workflowID string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get("/api/v1/runs/" + listQuery(limit, "status", status, "workflow_id", workflowID))
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}
			runs, err := decodeData[[]model.UserWorkflow](resp)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs found.")
				return nil
			}

			fmt.Fprintf(out, "%-40s  %-12s  %-40s  %s\n", "ID", "STATUS", "WORKFLOW", "STARTED")
			fmt.Fprintf(out, "%-40s  %-12s  %-40s  %s\n", "--", "------", "--------", "-------")
			for _, uw := range runs {
				fmt.Fprintf(out, "%-40s  %-12s  %-40s  %s\n",
					uw.ID, uw.Status, uw.WorkflowID, labutil.FormatDate(uw.StartedAt))
			}

			if resp.Pagination != nil && resp.Pagination.HasMore {
				fmt.Fprintf(out, "\n(%d of %d shown)\n", len(runs), resp.Pagination.Total)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (in-progress, completed, abandoned)")
	cmd.Flags().StringVar(&workflowID, "workflow", "", "Filter by workflow id")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum rows (server default 20, max 100)")
	return cmd
}

func newRunsStartCmd() *cobra.Command {
	var sets []string
	var projectID string

	cmd := &cobra.Command{
		Use:   "start <workflow_id>",
		Short: "Start a run of a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseSets(sets)
			if err != nil {
				return err
			}
			resp, err := client.Post("/api/v1/runs/", map[string]any{
				"workflow_id": args[0],
				"project_id":  projectID,
				"parameters":  formula.ParseValues(values),
			})
			if err != nil {
				return fmt.Errorf("start run: %w", err)
			}
			run, err := decodeData[runDetail](resp)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Run started: %s\n", run.ID)
			printRun(cmd, &run)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&sets, "param", nil, "Run parameter, name=value (repeatable)")
	cmd.Flags().StringVar(&projectID, "project", "", "Project id")
	return cmd
}

func newRunsStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <run_id>",
		Short: "Show a run and where it stands",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get("/api/v1/runs/" + args[0])
			if err != nil {
				return fmt.Errorf("get run: %w", err)
			}
			run, err := decodeData[runDetail](resp)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Run: %s\n", run.ID)
			printRun(cmd, &run)
			return nil
		},
	}
}

// newRunActionCmd builds advance, complete, and abandon, which differ only
// in the endpoint they post to.
func newRunActionCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <run_id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Post("/api/v1/runs/"+args[0]+"/"+action, nil)
			if err != nil {
				return fmt.Errorf("%s run: %w", action, err)
			}
			run, err := decodeData[runDetail](resp)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Run: %s\n", run.ID)
			printRun(cmd, &run)
			return nil
		},
	}
}

func printRun(cmd *cobra.Command, run *runDetail) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "  Workflow: %s\n", run.WorkflowID)
	fmt.Fprintf(out, "  Status:   %s\n", run.Status)
	fmt.Fprintf(out, "  Started:  %s\n", labutil.FormatDate(run.StartedAt))
	if run.CompletedAt != nil {
		fmt.Fprintf(out, "  Finished: %s\n", labutil.FormatDate(*run.CompletedAt))
	}
	if !run.Status.IsTerminal() && run.Progress.AssayCount > 0 {
		fmt.Fprintf(out, "  Assay:    %d of %d (%s)\n", run.Progress.AssayIndex+1, run.Progress.AssayCount, run.CurrentAssayID)
		fmt.Fprintf(out, "  Step:     %d of %d (%s)\n", run.Progress.StepIndex+1, run.Progress.StepCount, run.CurrentStepID)
	}
	if len(run.Parameters) > 0 {
		fmt.Fprintln(out, "  Parameters:")
		for _, k := range sortedKeys(run.Parameters) {
			fmt.Fprintf(out, "    %s = %v\n", k, run.Parameters[k])
		}
	}
	if run.Notes != "" {
		fmt.Fprintf(out, "  Notes:    %s\n", run.Notes)
	}
}
