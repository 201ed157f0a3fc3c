package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/restbridge/internal/bridge"
	"github.com/roach88/restbridge/internal/cache"
	"github.com/roach88/restbridge/internal/postgrest"
	"github.com/roach88/restbridge/internal/rest"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Filter  string
	Sort    []string
	Page    int
	PerPage int
}

// ListOutput is one page of records.
type ListOutput struct {
	Resource string             `json:"resource"`
	Total    int                `json:"total"`
	Records  []postgrest.Record `json:"records"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list <resource>",
		Short: "List records of a resource through PostgREST",
		Long: `Compile --filter for the resource and fetch one page of records from
the table or view that serves list requests.

Invalid filter fields are dropped with a warning. Sort fields prefixed
with "-" sort descending.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "{}", "filter payload (inline JSON, file, or -)")
	cmd.Flags().StringSliceVar(&opts.Sort, "sort", nil, "sort fields, e.g. -created_at,name")
	cmd.Flags().IntVar(&opts.Page, "page", 1, "page number (1-based)")
	cmd.Flags().IntVar(&opts.PerPage, "per-page", 25, "records per page; 0 fetches all")

	return cmd
}

func runList(opts *ListOptions, resource string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	a, err := newApp(opts.RootOptions, formatter.GetErrWriter())
	if err != nil {
		return formatter.Fail(err)
	}
	defer a.Close()

	var filter map[string]any
	if err := readJSON(opts.Filter, cmd.InOrStdin(), &filter); err != nil {
		return formatter.Fail(err)
	}

	client, err := a.restClient()
	if err != nil {
		return formatter.Fail(err)
	}
	records := cache.New[postgrest.Record](cache.Options{
		Name: "records",
		Max:  a.cfg.Cache.GeneralMax,
		TTL:  a.cfg.Cache.GeneralTTL,
	})
	a.metrics.WatchCache(records.Name(), records.Stats)

	b, err := bridge.New(bridge.Options{
		Compiler: a.compiler,
		Store:    client,
		Records:  records,
		Logger:   a.logger,
	})
	if err != nil {
		return formatter.Fail(err)
	}

	res, err := b.GetList(cmd.Context(), resource, bridge.ListParams{
		Filter:  filter,
		Sort:    parseSort(opts.Sort),
		Page:    opts.Page,
		PerPage: opts.PerPage,
	})
	if err != nil {
		return formatter.Fail(err)
	}

	out := ListOutput{Resource: resource, Total: res.Total, Records: res.Data}
	if formatter.Format == "json" {
		return formatter.Success(out)
	}

	fmt.Fprintf(formatter.Writer, "%d of %d %s record(s)\n", len(out.Records), out.Total, resource)
	for _, rec := range out.Records {
		line, err := json.Marshal(rec)
		if err != nil {
			return formatter.Fail(err)
		}
		fmt.Fprintf(formatter.Writer, "  %s\n", line)
	}
	return nil
}

func parseSort(fields []string) []rest.Sort {
	var out []rest.Sort
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if name, ok := strings.CutPrefix(f, "-"); ok {
			out = append(out, rest.Sort{Field: name, Desc: true})
			continue
		}
		out = append(out, rest.Sort{Field: f})
	}
	return out
}
