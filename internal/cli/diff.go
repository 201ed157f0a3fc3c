package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/restbridge/internal/reconcile"
)

// NewDiffCommand creates the diff command.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff <persisted> <edited>",
		Short: "Diff two product collections into create/update/delete instructions",
		Long: `Diff a persisted product collection against an edited one.

Both arguments are JSON arrays of products given inline, as file paths, or
"-" for stdin (one of them at most).`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(rootOpts, args[0], args[1], cmd)
		},
	}
	return cmd
}

func runDiff(opts *RootOptions, persistedSrc, editedSrc string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	var persisted, edited []reconcile.Product
	if err := readJSON(persistedSrc, cmd.InOrStdin(), &persisted); err != nil {
		return formatter.Fail(err)
	}
	if err := readJSON(editedSrc, cmd.InOrStdin(), &edited); err != nil {
		return formatter.Fail(err)
	}

	d := reconcile.DiffProducts(persisted, edited)
	if formatter.Format == "json" {
		return formatter.Success(d)
	}

	fmt.Fprintf(formatter.Writer, "%d create(s), %d update(s), %d delete(s)\n",
		len(d.Creates), len(d.Updates), len(d.Deletes))
	for _, p := range d.Creates {
		fmt.Fprintf(formatter.Writer, "  + product %s\n", p.Reference)
	}
	for _, p := range d.Updates {
		fmt.Fprintf(formatter.Writer, "  ~ item %s (product %s)\n", p.ID, p.Reference)
	}
	for _, id := range d.Deletes {
		fmt.Fprintf(formatter.Writer, "  - item %s\n", id)
	}
	return nil
}
