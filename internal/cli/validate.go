package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Resource string
	Filter   string
}

// ResourceSummary describes one registry entry.
type ResourceSummary struct {
	Name       string   `json:"name"`
	Table      string   `json:"table"`
	Summary    bool     `json:"summary"`
	SoftDelete bool     `json:"soft_delete"`
	Searchable []string `json:"searchable"`
	Filterable []string `json:"filterable"`
	Stale      bool     `json:"stale"`
	Collection string   `json:"collection,omitempty"`
}

// ValidationResult is the output of the validate command.
type ValidationResult struct {
	Valid     bool              `json:"valid"`
	Source    string            `json:"source"`
	Resources []ResourceSummary `json:"resources"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate [registry-dir]",
		Short: "Validate the resource registry, or a filter against it",
		Long: `Load the resource registry (embedded, configured, or the given
directory) and check it against the registry schema.

With --resource and --filter, additionally check that every key of the
filter payload is allowed on the resource.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.RegistryDir = args[0]
			}
			return runValidate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Resource, "resource", "", "resource the filter applies to")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter payload to check (inline JSON, file, or -)")

	return cmd
}

func runValidate(opts *ValidateOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	a, err := newApp(opts.RootOptions, formatter.GetErrWriter())
	if err != nil {
		return formatter.Fail(err)
	}
	defer a.Close()

	if opts.Filter != "" {
		if opts.Resource == "" {
			return formatter.Fail(&inputError{fmt.Errorf("--filter requires --resource")})
		}
		var filter map[string]any
		if err := readJSON(opts.Filter, cmd.InOrStdin(), &filter); err != nil {
			return formatter.Fail(err)
		}
		if err := a.reg.ValidateFilter(opts.Resource, filter); err != nil {
			return formatter.Fail(err)
		}
	}

	result := ValidationResult{Valid: true, Source: a.reg.Source()}
	for _, name := range a.reg.Names() {
		res, _ := a.reg.Resource(name)
		s := ResourceSummary{
			Name:       name,
			Table:      a.reg.TableName(name),
			Summary:    res.Summary,
			SoftDelete: res.SoftDelete,
			Searchable: a.reg.SearchableFields(name),
			Filterable: a.reg.FilterableFields(name),
			Stale:      res.Stale != nil,
		}
		if res.Collection != nil {
			s.Collection = res.Collection.Field
		}
		result.Resources = append(result.Resources, s)
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Registry valid (%s): %d resource(s)\n", result.Source, len(result.Resources))
	if opts.Filter != "" {
		fmt.Fprintf(formatter.Writer, "✓ Filter valid for %s\n", opts.Resource)
	}
	return nil
}
