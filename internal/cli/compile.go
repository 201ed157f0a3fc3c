package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/restbridge/internal/canonical"
	"github.com/roach88/restbridge/internal/compiler"
	"github.com/roach88/restbridge/internal/postgrest"
	"github.com/roach88/restbridge/internal/registry"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Operation string
	Validate  bool
}

// CompileOutput is a compiled filter.
type CompileOutput struct {
	Resource  string         `json:"resource"`
	Operation string         `json:"operation"`
	Target    string         `json:"target"`
	Wire      postgrest.Wire `json:"wire"`
	Query     string         `json:"query"`
	Hash      string         `json:"hash"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <resource> [payload]",
		Short: "Compile a filter payload to PostgREST query parameters",
		Long: `Compile a data-provider filter payload for one resource.

The payload is a JSON object given inline, as a file path, or "-" for stdin.
It defaults to {}. The output names the table or view the request targets,
the wire filter, its query string, and a content hash of target and wire.`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := "{}"
			if len(args) == 2 {
				payload = args[1]
			}
			return runCompile(opts, args[0], payload, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Operation, "op", string(registry.OpList),
		"operation (list|one|many_reference|create|update|delete)")
	cmd.Flags().BoolVar(&opts.Validate, "validate", false, "reject filter fields the resource does not allow")

	return cmd
}

func runCompile(opts *CompileOptions, resource, source string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	a, err := newApp(opts.RootOptions, formatter.GetErrWriter())
	if err != nil {
		return formatter.Fail(err)
	}
	defer a.Close()

	var payload compiler.Payload
	if err := readJSON(source, cmd.InOrStdin(), &payload); err != nil {
		return formatter.Fail(err)
	}
	if opts.Validate {
		if err := a.reg.ValidateFilter(resource, payload); err != nil {
			return formatter.Fail(err)
		}
	}

	res, err := a.compiler.Compile(resource, registry.Operation(opts.Operation), payload)
	if err != nil {
		return formatter.Fail(err)
	}
	hash, err := canonical.FilterHash(res.Target, res.Wire)
	if err != nil {
		return formatter.Fail(err)
	}

	out := CompileOutput{
		Resource:  resource,
		Operation: opts.Operation,
		Target:    res.Target,
		Wire:      res.Wire,
		Query:     a.encoder.Values(res.Wire).Encode(),
		Hash:      hash,
	}
	formatter.VerboseLog("compiled %d condition(s) for %s", res.Filter.Len(), res.Target)

	if formatter.Format == "json" {
		return formatter.Success(out)
	}
	fmt.Fprintf(formatter.Writer, "target: %s\n", out.Target)
	fmt.Fprintf(formatter.Writer, "query:  %s\n", out.Query)
	fmt.Fprintf(formatter.Writer, "hash:   %s\n", out.Hash)
	return nil
}
