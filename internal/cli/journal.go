package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/restbridge/internal/store"
)

// JournalOptions holds flags for the journal command.
type JournalOptions struct {
	*RootOptions
	Resource string
	RecordID string
	Status   string
	Limit    int
	Prune    time.Duration
}

// JournalEntry is one journaled attempt with the number of attempts,
// itself included, that carried the same instruction set.
type JournalEntry struct {
	store.Attempt
	Repeats int `json:"repeats"`
}

// JournalOutput is the output of the journal command.
type JournalOutput struct {
	SchemaVersion int            `json:"schema_version"`
	Attempts      []JournalEntry `json:"attempts"`
}

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List journaled sync attempts",
		Long: `List sync attempts recorded in the journal configured by journalPath
(or RESTBRIDGE_JOURNAL_PATH), oldest first.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournal(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Resource, "resource", "", "only attempts for this resource")
	cmd.Flags().StringVar(&opts.RecordID, "record", "", "only attempts for this record id")
	cmd.Flags().StringVar(&opts.Status, "status", "", "only attempts with this status (pending|succeeded|failed)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 50, "most recent attempts to show; 0 shows all")
	cmd.Flags().DurationVar(&opts.Prune, "prune", 0, "first delete finished attempts older than this (e.g. 720h)")

	return cmd
}

func runJournal(opts *JournalOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	switch store.Status(opts.Status) {
	case "", store.StatusPending, store.StatusSucceeded, store.StatusFailed:
	default:
		return formatter.Fail(&inputError{fmt.Errorf("unknown status %q", opts.Status)})
	}

	a, err := newApp(opts.RootOptions, formatter.GetErrWriter())
	if err != nil {
		return formatter.Fail(err)
	}
	defer a.Close()

	j, err := a.journal()
	if err != nil {
		return formatter.Fail(err)
	}
	if j == nil {
		return formatter.Fail(&configError{errors.New("no journal configured (set journalPath or RESTBRIDGE_JOURNAL_PATH)")})
	}

	version, err := j.SchemaVersion(cmd.Context())
	if err != nil {
		return formatter.Fail(err)
	}
	formatter.VerboseLog("journal schema v%d", version)

	if opts.Prune < 0 {
		return formatter.Fail(&inputError{fmt.Errorf("negative --prune %s", opts.Prune)})
	}
	if opts.Prune > 0 {
		n, err := j.Prune(cmd.Context(), time.Now().Add(-opts.Prune))
		if err != nil {
			return formatter.Fail(err)
		}
		formatter.VerboseLog("pruned %d attempt(s) older than %s", n, opts.Prune)
	}

	attempts, err := j.ListAttempts(cmd.Context(), store.Query{
		Resource: opts.Resource,
		RecordID: opts.RecordID,
		Status:   store.Status(opts.Status),
		Limit:    opts.Limit,
	})
	if err != nil {
		return formatter.Fail(err)
	}

	result := JournalOutput{SchemaVersion: version, Attempts: []JournalEntry{}}
	repeats := make(map[string]int)
	for _, at := range attempts {
		n, ok := repeats[at.InstructionHash]
		if !ok {
			n, err = j.CountByHash(cmd.Context(), at.InstructionHash)
			if err != nil {
				return formatter.Fail(err)
			}
			repeats[at.InstructionHash] = n
		}
		result.Attempts = append(result.Attempts, JournalEntry{Attempt: at, Repeats: n})
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	if len(result.Attempts) == 0 {
		fmt.Fprintln(formatter.Writer, "no attempts")
		return nil
	}
	for _, e := range result.Attempts {
		fmt.Fprintf(formatter.Writer, "%s  %-9s  %s %s  +%d ~%d -%d  %s\n",
			e.StartedAt.UTC().Format(time.RFC3339), e.Status, e.Resource, e.RecordID,
			e.Creates, e.Updates, e.Deletes, e.ID)
		if e.Repeats > 1 {
			fmt.Fprintf(formatter.Writer, "    repeated: %d attempts share this instruction set\n", e.Repeats)
		}
		if e.ErrorMessage != "" {
			fmt.Fprintf(formatter.Writer, "    error [%s]: %s\n", e.ErrorCode, e.ErrorMessage)
		}
	}
	return nil
}
