package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/restbridge/internal/canonical"
	"github.com/roach88/restbridge/internal/postgrest"
	"github.com/roach88/restbridge/internal/reconcile"
	"github.com/roach88/restbridge/internal/syncer"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	DryRun bool
}

// SyncInput is the request document read by the sync command.
type SyncInput struct {
	Data     map[string]any `json:"data"`
	Previous map[string]any `json:"previous"`
}

// SyncOutput reports a sync, or the instructions a dry run would send.
type SyncOutput struct {
	Resource        string           `json:"resource"`
	Procedure       string           `json:"procedure"`
	AttemptID       string           `json:"attempt_id,omitempty"`
	InstructionHash string           `json:"instruction_hash"`
	Diff            reconcile.Diff   `json:"diff"`
	Args            map[string]any   `json:"args,omitempty"`
	Record          postgrest.Record `json:"record,omitempty"`
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync <resource> <request>",
		Short: "Sync a record's nested collection with one procedure call",
		Long: `Diff the collection of an edited record against the record as last
fetched and apply the result with the resource's sync procedure.

The request is {"data": {...}, "previous": {...}} given inline, as a file
path, or "-" for stdin. With --dry-run the instructions and their hash are
printed and nothing is sent.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "print the instructions without calling the procedure")

	return cmd
}

func runSync(opts *SyncOptions, resource, source string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	a, err := newApp(opts.RootOptions, formatter.GetErrWriter())
	if err != nil {
		return formatter.Fail(err)
	}
	defer a.Close()

	coll, ok := a.reg.Collection(resource)
	if !ok {
		return formatter.Fail(&inputError{fmt.Errorf("resource %q has no synced collection", resource)})
	}

	var in SyncInput
	if err := readJSON(source, cmd.InOrStdin(), &in); err != nil {
		return formatter.Fail(err)
	}
	if in.Data == nil {
		return formatter.Fail(&inputError{errors.New(`request has no "data" object`)})
	}

	req, err := syncer.NewRequest(resource, coll, in.Data, in.Previous)
	if err != nil {
		return formatter.Fail(&inputError{err})
	}

	out := SyncOutput{Resource: resource, Procedure: coll.Procedure}
	if opts.DryRun {
		if req.Persisted == nil {
			return formatter.Fail(&syncer.PreconditionError{Resource: resource, Field: coll.Previous, Err: syncer.ErrMissingPersisted})
		}
		out.Diff = reconcile.DiffProducts(req.Persisted, req.Edited)
		out.Args = syncer.BuildArgs(req, out.Diff)
		out.InstructionHash, err = canonical.InstructionHash(coll.Procedure, out.Args)
		if err != nil {
			return formatter.Fail(err)
		}
		return writeSync(formatter, out, true)
	}

	s, err := a.syncer(cmd.Context())
	if err != nil {
		return formatter.Fail(err)
	}
	res, err := s.Sync(cmd.Context(), req)
	if err != nil {
		return formatter.Fail(err)
	}

	out.AttemptID = res.AttemptID
	out.InstructionHash = res.InstructionHash
	out.Diff = res.Diff
	out.Record = res.Record
	return writeSync(formatter, out, false)
}

func writeSync(formatter *OutputFormatter, out SyncOutput, dryRun bool) error {
	if formatter.Format == "json" {
		return formatter.Success(out)
	}

	verb := "synced"
	if dryRun {
		verb = "would sync"
	}
	fmt.Fprintf(formatter.Writer, "%s %s via %s: %d create(s), %d update(s), %d delete(s)\n",
		verb, out.Resource, out.Procedure,
		len(out.Diff.Creates), len(out.Diff.Updates), len(out.Diff.Deletes))
	if out.AttemptID != "" {
		fmt.Fprintf(formatter.Writer, "attempt: %s\n", out.AttemptID)
	}
	fmt.Fprintf(formatter.Writer, "hash:    %s\n", out.InstructionHash)
	return nil
}
