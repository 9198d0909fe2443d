package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// globalFlags are shared by every subcommand and override the settings
// file.
type globalFlags struct {
	settingsPath string
	databasePath string
	logOutput    string
	debug        bool
}

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "mossy",
		Short: "Mossy - semantic similarity over ontology concepts",
		Long: `Mossy compares ontology concepts, or collections of them, with
information content based similarity measures.

What to compare and how is described in configuration files written in a
small Python-like language:

  comparer = lin("seco")
  heart = "http://purl.obolibrary.org/obo/UBERON_0000948"
  lung  = "http://purl.obolibrary.org/obo/UBERON_0002048"
  make_all_pairs()

Concepts and their information content live in a SQLite database filled
with 'mossy import'.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.settingsPath, "settings", "", "settings file (default ./mossy.yaml, ./mossy.yml or ./mossy.cue)")
	pf.StringVar(&flags.databasePath, "database", "", "concept database path (overrides settings)")
	pf.StringVarP(&flags.logOutput, "log", "l", "", "write logs to `FILE`; without a file, logs go to standard error")
	pf.Lookup("log").NoOptDefVal = "stderr"
	pf.BoolVarP(&flags.debug, "debug", "g", false, "log at debug level")

	rootCmd.AddCommand(newRunCommand(flags, version))
	rootCmd.AddCommand(newCheckCommand(flags, version))
	rootCmd.AddCommand(newInitCommand(flags, version))
	rootCmd.AddCommand(newImportCommand(flags, version))
	rootCmd.AddCommand(newFunctionsCommand(flags, version))

	return rootCmd
}
