package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newFunctionsCommand(flags *globalFlags, version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "functions",
		Short: "List the functions and macros available to configurations",
		Long: `List the safe functions and macros that configuration files may call,
including those exported by the plugins of the configured directories.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Functions:")
			for _, name := range reg.Functions() {
				fmt.Fprintf(out, "  %s\n", name)
			}
			fmt.Fprintln(out, "Macros:")
			for _, name := range reg.Macros() {
				fmt.Fprintf(out, "  %s\n", name)
			}
			return nil
		},
	}

	return cmd
}
