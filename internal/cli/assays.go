package cli

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/me/labflow/internal/formula"
	"github.com/me/labflow/internal/labutil"
	"github.com/me/labflow/pkg/model"
)

func newAssaysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assays",
		Short: "Browse and author assays",
	}
	cmd.AddCommand(
		newAssaysListCmd(),
		newAssaysGetCmd(),
		newAssaysCreateCmd(),
	)
	return cmd
}

func newAssaysListCmd() *cobra.Command {
	var workflowID, search string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List assays",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get("/api/v1/assays/" + listQuery(limit, "workflow_id", workflowID, "q", search))
			if err != nil {
				return fmt.Errorf("list assays: %w", err)
			}
			assays, err := decodeData[[]model.Assay](resp)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(assays) == 0 {
				fmt.Fprintln(out, "No assays found.")
				return nil
			}

			fmt.Fprintf(out, "%-42s  %-14s  %-6s  %s\n", "ID", "TIME", "PARAMS", "TITLE")
			fmt.Fprintf(out, "%-42s  %-14s  %-6s  %s\n", "--", "----", "------", "-----")
			for _, a := range assays {
				fmt.Fprintf(out, "%-42s  %-14s  %-6d  %s\n",
					a.ID, labutil.TruncateText(a.EstimatedTime, 14), len(a.Parameters), labutil.TruncateText(a.Title, 50))
			}

			if resp.Pagination != nil && resp.Pagination.HasMore {
				fmt.Fprintf(out, "\n(%d of %d shown)\n", len(assays), resp.Pagination.Total)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&workflowID, "workflow", "", "Only assays of this workflow")
	cmd.Flags().StringVarP(&search, "search", "q", "", "Title substring")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum rows (server default 20, max 100)")
	return cmd
}

// quantities mirrors the assay quantities response.
type quantities struct {
	Parameters map[string]any              `json:"parameters"`
	Quantities map[string]formula.Quantity `json:"quantities"`
}

func newAssaysGetCmd() *cobra.Command {
	var sets []string

	cmd := &cobra.Command{
		Use:   "get <assay_id>",
		Short: "Show an assay with its steps and calculated quantities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]

			resp, err := client.Get("/api/v1/assays/" + id)
			if err != nil {
				return fmt.Errorf("get assay: %w", err)
			}
			a, err := decodeData[model.Assay](resp)
			if err != nil {
				return err
			}
			resp, err = client.Get("/api/v1/assays/" + id + "/steps/")
			if err != nil {
				return fmt.Errorf("get steps: %w", err)
			}
			steps, err := decodeData[[]model.Step](resp)
			if err != nil {
				return err
			}
			values, err := parseSets(sets)
			if err != nil {
				return err
			}
			resp, err = client.Get("/api/v1/assays/" + id + "/quantities?" + values.Encode())
			if err != nil {
				return fmt.Errorf("get quantities: %w", err)
			}
			q, err := decodeData[quantities](resp)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Assay: %s\n", a.ID)
			fmt.Fprintf(out, "  Title:     %s\n", a.Title)
			fmt.Fprintf(out, "  Workflow:  %s\n", a.WorkflowID)
			fmt.Fprintf(out, "  Estimated: %s\n", a.EstimatedTime)
			fmt.Fprintf(out, "\n%s\n", a.Description)

			if len(a.Materials) > 0 {
				fmt.Fprintln(out, "\nMaterials:")
				for _, m := range a.Materials {
					fmt.Fprintf(out, "  - %s: %s %s\n", m.Name, m.Quantity, m.Unit)
				}
			}
			if len(a.Parameters) > 0 {
				fmt.Fprintln(out, "\nParameters:")
				for _, p := range a.Parameters {
					req := ""
					if p.Required {
						req = " (required)"
					}
					fmt.Fprintf(out, "  - %s [%s]%s = %v %s\n", p.Name, p.Type, req, q.Parameters[p.Name], p.Unit)
				}
			}

			fmt.Fprintln(out, "\nSteps:")
			for _, st := range steps {
				fmt.Fprintf(out, "  %d. %s", st.Order, st.Title)
				if st.EstimatedTime != "" {
					fmt.Fprintf(out, " (%s)", st.EstimatedTime)
				}
				fmt.Fprintln(out)
				if qty, ok := q.Quantities[st.ID]; ok {
					if qty.Error != "" {
						fmt.Fprintf(out, "       %s = error: %s\n", st.CalculationFormula, qty.Error)
					} else {
						fmt.Fprintf(out, "       %s = %s\n", st.CalculationFormula, formatValue(qty.Value))
					}
				}
				if st.Warning != "" {
					fmt.Fprintf(out, "       warning: %s\n", st.Warning)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "Parameter value for quantities, name=value (repeatable)")
	return cmd
}

func newAssaysCreateCmd() *cobra.Command {
	var file, workflowID string

	cmd := &cobra.Command{
		Use:   "create -f <file.yaml>",
		Short: "Create an assay with inline steps from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			var def model.AssayDefinition
			if err := readYAML(file, &def); err != nil {
				return err
			}
			if workflowID != "" {
				def.WorkflowID = workflowID
			}

			resp, err := client.Post("/api/v1/assays/import", def)
			if err != nil {
				return fmt.Errorf("create assay: %w", err)
			}
			a, err := decodeData[struct {
				model.Assay
				Steps []model.Step `json:"steps"`
			}](resp)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Assay created: %s\n", a.ID)
			fmt.Fprintf(out, "  Title:    %s\n", a.Title)
			fmt.Fprintf(out, "  Workflow: %s\n", a.WorkflowID)
			fmt.Fprintf(out, "  Steps:    %d\n", len(a.Steps))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Assay definition file (YAML)")
	cmd.Flags().StringVar(&workflowID, "workflow", "", "Workflow id (overrides workflow_id in the file)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// parseSets turns name=value flags into query values.
func parseSets(sets []string) (url.Values, error) {
	v := url.Values{}
	for _, s := range sets {
		name, value, ok := strings.Cut(s, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --set %q, want name=value", s)
		}
		v.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	return v, nil
}

// sortedKeys returns the keys of m in order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
