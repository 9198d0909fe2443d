package commands

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mossy/mossy/pkg/config"
)

func newCheckCommand(flags *globalFlags, version string) *cobra.Command {
	var (
		execute []string
		watch   bool
	)

	cmd := &cobra.Command{
		Use:   "check [CONFIG...]",
		Short: "Interpret a configuration without comparing",
		Long: `Interpret the configuration files and print what a run would compare:
the number of named items, the number of groups and the expected total.

With --watch the files are interpreted again whenever they change, until
interrupted.`,
		Example: `  # Check a configuration
  mossy check pairs.conf

  # Re-check on every save
  mossy check base.conf pairs.conf --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if watch && len(args) == 0 {
				return fmt.Errorf("--watch needs configuration files")
			}

			env, err := setup(cmd, flags, version, nil)
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()

			store, err := env.openStore(true)
			if err != nil {
				return err
			}
			reg, err := env.registry(store)
			if err != nil {
				return err
			}
			in := env.interpreter(reg)
			out := cmd.OutOrStdout()

			check := func() error {
				sources, err := readSources(args, execute, cmd.InOrStdin())
				if err != nil {
					return err
				}
				cfg, err := env.interpret(in, sources)
				if err != nil {
					return err
				}
				printCheck(out, cfg)
				return nil
			}

			if !watch {
				return check()
			}

			if err := check(); err != nil {
				fmt.Fprintf(out, "✗ %v\n", err)
			}
			return watchFiles(env.ctx, args, env.logger, func() {
				if err := check(); err != nil {
					fmt.Fprintf(out, "✗ %v\n", err)
				}
			})
		},
	}

	cmd.Flags().StringArrayVarP(&execute, "execute", "e", nil, "execute `STMT` as if it came from a configuration file (repeatable)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "check again whenever a configuration file changes")

	return cmd
}

func printCheck(w io.Writer, cfg *config.Config) {
	fmt.Fprintf(w, "✓ Configuration is valid\n")
	fmt.Fprintf(w, "  Comparer: %s\n", cfg.Comparer())
	fmt.Fprintf(w, "  Items:    %s\n", humanize.Comma(int64(len(cfg.ItemNames()))))
	fmt.Fprintf(w, "  Groups:   %s\n", humanize.Comma(int64(cfg.Groups().Len())))
	fmt.Fprintf(w, "  Total:    %s\n", humanize.Comma(cfg.Total()))
}
