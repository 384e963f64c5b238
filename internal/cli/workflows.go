package cli

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/me/labflow/internal/labutil"
	"github.com/me/labflow/pkg/model"
)

func newWorkflowsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workflows",
		Aliases: []string{"wf"},
		Short:   "Browse and author workflows",
	}
	cmd.AddCommand(
		newWorkflowsListCmd(),
		newWorkflowsGetCmd(),
		newWorkflowsCreateCmd(),
		newWorkflowsDeleteCmd(),
	)
	return cmd
}

// listQuery builds the query string shared by the list commands.
func listQuery(limit int, pairs ...string) string {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] != "" {
			q.Set(pairs[i], pairs[i+1])
		}
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

func newWorkflowsListCmd() *cobra.Command {
	var status, search, project string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workflows (published unless --status or --project is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get("/api/v1/workflows/" + listQuery(limit, "status", status, "q", search, "project_id", project))
			if err != nil {
				return fmt.Errorf("list workflows: %w", err)
			}
			wfs, err := decodeData[[]model.Workflow](resp)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(wfs) == 0 {
				fmt.Fprintln(out, "No workflows found.")
				return nil
			}

			fmt.Fprintf(out, "%-40s  %-10s  %-12s  %-6s  %s\n", "ID", "STATUS", "DIFFICULTY", "ASSAYS", "TITLE")
			fmt.Fprintf(out, "%-40s  %-10s  %-12s  %-6s  %s\n", "--", "------", "----------", "------", "-----")
			for _, wf := range wfs {
				fmt.Fprintf(out, "%-40s  %-10s  %-12s  %-6d  %s\n",
					wf.ID, wf.Status, wf.Difficulty, len(wf.AssayIDs), labutil.TruncateText(wf.Title, 50))
			}

			if resp.Pagination != nil && resp.Pagination.HasMore {
				fmt.Fprintf(out, "\n(%d of %d shown)\n", len(wfs), resp.Pagination.Total)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (draft, published, archived)")
	cmd.Flags().StringVarP(&search, "search", "q", "", "Title substring")
	cmd.Flags().StringVar(&project, "project", "", "Filter by project id")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum rows (server default 20, max 100)")
	return cmd
}

func newWorkflowsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <workflow_id>",
		Short: "Show a workflow and its assays in run order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]

			resp, err := client.Get("/api/v1/workflows/" + id)
			if err != nil {
				return fmt.Errorf("get workflow: %w", err)
			}
			wf, err := decodeData[model.Workflow](resp)
			if err != nil {
				return err
			}
			resp, err = client.Get("/api/v1/workflows/" + id + "/assays")
			if err != nil {
				return fmt.Errorf("get workflow assays: %w", err)
			}
			assays, err := decodeData[[]model.Assay](resp)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Workflow: %s\n", wf.ID)
			fmt.Fprintf(out, "  Title:      %s\n", wf.Title)
			fmt.Fprintf(out, "  Status:     %s\n", wf.Status)
			fmt.Fprintf(out, "  Difficulty: %s\n", wf.Difficulty)
			if wf.Category != "" {
				fmt.Fprintf(out, "  Category:   %s\n", wf.Category)
			}
			if wf.EstimatedTotalTime != "" {
				fmt.Fprintf(out, "  Estimated:  %s\n", wf.EstimatedTotalTime)
			}
			fmt.Fprintf(out, "  Updated:    %s\n", labutil.FormatDate(wf.UpdatedAt))
			if wf.Description != "" {
				fmt.Fprintf(out, "\n%s\n", wf.Description)
			}

			if len(assays) == 0 {
				return nil
			}
			requires := make(map[string][]string)
			for _, d := range wf.Dependencies {
				requires[d.ToAssayID] = append(requires[d.ToAssayID], d.FromAssayID)
			}
			titles := make(map[string]string, len(assays))
			times := make([]string, 0, len(assays))
			for _, a := range assays {
				titles[a.ID] = a.Title
				times = append(times, a.EstimatedTime)
			}

			fmt.Fprintln(out, "\nAssays:")
			for i, a := range assays {
				fmt.Fprintf(out, "  %d. %s (%s)  [%s]\n", i+1, a.Title, a.EstimatedTime, a.ID)
				for _, dep := range requires[a.ID] {
					fmt.Fprintf(out, "       after %s\n", titles[dep])
				}
			}
			total, _ := labutil.SumDurations(times...)
			fmt.Fprintf(out, "\nTotal assay time: %s\n", labutil.FormatMinutes(total))
			return nil
		},
	}
}

func newWorkflowsCreateCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "create -f <file.yaml>",
		Short: "Create a workflow with inline assays and steps from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			var def model.WorkflowDefinition
			if err := readYAML(file, &def); err != nil {
				return err
			}

			resp, err := client.Post("/api/v1/workflows/import", def)
			if err != nil {
				return fmt.Errorf("create workflow: %w", err)
			}
			wf, err := decodeData[model.Workflow](resp)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Workflow created: %s\n", wf.ID)
			fmt.Fprintf(out, "  Title:  %s\n", wf.Title)
			fmt.Fprintf(out, "  Status: %s\n", wf.Status)
			fmt.Fprintf(out, "  Assays: %d\n", len(wf.AssayIDs))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Workflow definition file (YAML)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newWorkflowsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <workflow_id>",
		Short: "Delete a workflow (its assays are kept)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := client.Delete("/api/v1/workflows/" + args[0]); err != nil {
				return fmt.Errorf("delete workflow: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Workflow deleted: %s\n", args[0])
			return nil
		},
	}
}

// readYAML decodes a definition file into v. Unknown keys are errors so
// typos surface before anything is created.
func readYAML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
