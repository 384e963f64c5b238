package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/labflow/internal/formula"
	"github.com/me/labflow/internal/labutil"
)

// The commands in this file run locally and never contact the server.

func newFormulaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "formula",
		Short: "Work with step calculation formulas",
	}
	cmd.AddCommand(newFormulaEvalCmd())
	return cmd
}

func newFormulaEvalCmd() *cobra.Command {
	var sets []string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "eval <formula>",
		Short: "Evaluate a formula such as '${sampleCount} * 2.5 + 10'",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseSets(sets)
			if err != nil {
				return err
			}
			params := formula.ParseValues(values)
			expr := args[0]

			out := cmd.OutOrStdout()
			if deps := formula.Dependencies(expr); len(deps) > 0 {
				fmt.Fprintf(out, "Parameters: %s\n", strings.Join(deps, ", "))
				fmt.Fprintf(out, "Expression: %s\n", formula.Substitute(expr, params))
			}
			v, err := formula.NewEvaluator(timeout).Evaluate(expr, params)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Result: %s\n", formatValue(v))
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "Parameter value, name=value (repeatable)")
	cmd.Flags().DurationVar(&timeout, "timeout", formula.DefaultTimeout, "Evaluation timeout")
	return cmd
}

func newDurationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "duration <duration>...",
		Short: "Convert durations like '30 minutes' or '2 hours' to minutes and total them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, d := range args {
				m, err := labutil.CalculateDuration(d)
				if err != nil {
					fmt.Fprintf(out, "%-20s  invalid\n", d)
					continue
				}
				fmt.Fprintf(out, "%-20s  %d min\n", d, m)
			}
			total, skipped := labutil.SumDurations(args...)
			if len(args) > 1 {
				fmt.Fprintf(out, "Total: %s (%d min)\n", labutil.FormatMinutes(total), total)
			}
			if len(skipped) == len(args) {
				return fmt.Errorf("no valid durations")
			}
			return nil
		},
	}
}

// formatValue renders a computed quantity without trailing zeros.
func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
