package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/me/labflow/internal/logging"
)

var (
	flagServer    string
	flagToken     string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	client *Client
)

// defaultServer returns the default server URL, checking LABFLOW_SERVER env var first.
func defaultServer() string {
	if s := os.Getenv("LABFLOW_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// resolveToken picks the bearer token: flag, then LABFLOW_TOKEN, then the
// stored credentials.
func resolveToken() string {
	if flagToken != "" {
		return flagToken
	}
	if t := os.Getenv("LABFLOW_TOKEN"); t != "" {
		return t
	}
	return loadCredentials().Token
}

// NewRootCmd creates the root cobra command for the labflow CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "labflow",
		Short: "LabFlow lab workflow catalog",
		Long:  "LabFlow browses workflows and assays, authors catalog entries, and tracks your runs through them.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.Setup(flagLogLevel, flagLogFormat, flagDebug)
			client = NewClient(flagServer, resolveToken(), logger)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "LabFlow server URL (or LABFLOW_SERVER env)")
	root.PersistentFlags().StringVar(&flagToken, "token", "", "Session token (or LABFLOW_TOKEN env, default from login)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newLoginCmd(),
		newSignupCmd(),
		newLogoutCmd(),
		newWorkflowsCmd(),
		newAssaysCmd(),
		newRunsCmd(),
		newFormulaCmd(),
		newDurationCmd(),
	)

	return root
}
