package commands

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mossy/mossy/pkg/ontology"
)

func newImportCommand(flags *globalFlags, version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import ONTOLOGY",
		Short: "Load an ontology into the concept database",
		Long: `Load the classes of an ontology file into the concept database, together
with the closure of its hierarchy and the intrinsic information content
of every class, stored under the name "seco".

The file lists each class with its direct superclasses:

  classes:
    - iri: http://example.org/#Animal
    - iri: http://example.org/#Dog
      superclasses: [http://example.org/#Animal]`,
		Example: `  mossy import animals.yaml`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd, flags, version, nil)
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()

			o, err := ontology.ParseFile(args[0])
			if err != nil {
				return err
			}

			store, err := env.openStore(false)
			if err != nil {
				return err
			}

			op := env.tel.Logger.WithField("file", args[0])
			op.Info("Importing ontology")
			stats, err := ontology.Import(env.ctx, store, o)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Imported %s concepts and %s hierarchy edges into %s\n",
				humanize.Comma(int64(stats.Concepts)), humanize.Comma(int64(stats.Edges)), store.Path())
			return nil
		},
	}

	return cmd
}
