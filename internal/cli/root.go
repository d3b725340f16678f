// Package cli implements the esgmap command line.
package cli

import (
	"fmt"
	"os"

	"github.com/JonMunkholm/esgmap/internal/config"
	"github.com/JonMunkholm/esgmap/internal/core"
	"github.com/JonMunkholm/esgmap/internal/logging"
	"github.com/spf13/cobra"
)

// NewRootCommand builds the esgmap command tree.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "esgmap",
		Short: "Fill ESG, PAI and Taxonomy status columns from reference exports",
		Long: `esgmap reconciles a primary holdings table against reference exports.
Each target column (Taxonomy, PAI, ESG by default) gets the row's identifier
wherever that identifier appears in the target's reference files. Existing
values are kept unless they are placeholders such as "NA".

Configuration comes from the environment (and .env); --mapping points at a
YAML file that can replace the target list.

Quick start:
  esgmap mapping                                   # show the effective mapping
  esgmap inspect esg.xlsx --header-row 5           # check a file's headers
  esgmap run --primary book.xlsx \
    --taxonomy tax1.xlsx --taxonomy tax2.xlsx \
    --pai pai.xlsx --esg esg.xlsx                  # writes book_filled.xlsx`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("mapping", "", "YAML mapping file (overrides MAPPING_FILE)")
	cmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")

	cmd.AddCommand(RunCommand())
	cmd.AddCommand(InspectCommand())
	cmd.AddCommand(MappingCommand())

	return cmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := execute(NewRootCommand()); err != nil {
		os.Exit(1)
	}
}

// execute runs cmd and reports a failure on its stderr once, followed by the
// support message when the error is a known one.
func execute(cmd *cobra.Command) error {
	err := cmd.Execute()
	if err == nil {
		return nil
	}
	w := cmd.ErrOrStderr()
	fmt.Fprintln(w, "Error:", err)
	if core.IsUserFacing(err) {
		fmt.Fprintln(w, core.FormatUserError(err))
	}
	return err
}

// loadConfig reads the environment, applies the persistent flags, and sets up
// logging on stderr so stdout carries only command output.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if path, _ := cmd.Flags().GetString("mapping"); path != "" {
		// Load reads MAPPING_FILE itself; the flag takes its place.
		os.Setenv("MAPPING_FILE", path)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	logging.SetupWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)

	return cfg, nil
}
