package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/restbridge/internal/canonical"
	"github.com/roach88/restbridge/internal/postgrest"
	"github.com/roach88/restbridge/internal/reconcile"
	"github.com/roach88/restbridge/internal/store"
)

// Caller invokes a database procedure with named arguments and returns
// its raw JSON result. Implemented by rest.Client and pgrpc.Client.
type Caller interface {
	Call(ctx context.Context, procedure string, args map[string]any) (json.RawMessage, error)
}

// Journal records sync attempts. Implemented by *store.Store.
type Journal interface {
	RecordAttempt(ctx context.Context, a store.Attempt) error
	FinishAttempt(ctx context.Context, id string, o store.Outcome) error
}

// Recorder observes finished attempts. Implemented by metrics.Recorder.
type Recorder interface {
	ObserveSync(procedure string, status store.Status, d reconcile.Diff)
}

// Syncer runs collection syncs.
// A Syncer is safe for concurrent use if its Caller and Journal are.
type Syncer struct {
	caller   Caller
	journal  Journal
	recorder Recorder
	ids      IDGenerator
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithJournal records every attempt in j.
func WithJournal(j Journal) Option {
	return func(s *Syncer) {
		s.journal = j
	}
}

// WithRecorder reports attempt outcomes to r.
func WithRecorder(r Recorder) Option {
	return func(s *Syncer) {
		s.recorder = r
	}
}

// WithIDGenerator sets the attempt id generator.
// Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Syncer) {
		s.ids = g
	}
}

// WithClock sets the wall clock used for journal timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Syncer) {
		s.now = now
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Syncer) {
		s.logger = l
	}
}

// New creates a Syncer calling procedures through caller.
func New(caller Caller, opts ...Option) *Syncer {
	s := &Syncer{
		caller: caller,
		ids:    UUIDv7Generator{},
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result is a successful sync.
type Result struct {
	AttemptID       string
	InstructionHash string
	Diff            reconcile.Diff

	// Record is the parent record returned by the procedure.
	Record postgrest.Record
}

// Sync diffs the collection in req and applies it with one procedure
// call.
func (s *Syncer) Sync(ctx context.Context, req Request) (*Result, error) {
	coll := req.Collection
	if coll.Procedure == "" {
		return nil, &PreconditionError{Resource: req.Resource, Field: coll.Field, Err: errors.New("no sync procedure configured")}
	}
	if req.Persisted == nil {
		return nil, &PreconditionError{Resource: req.Resource, Field: coll.Previous, Err: ErrMissingPersisted}
	}

	diff := reconcile.DiffProducts(req.Persisted, req.Edited)
	args := BuildArgs(req, diff)

	hash, err := canonical.InstructionHash(coll.Procedure, args)
	if err != nil {
		return nil, fmt.Errorf("sync %s: %w", req.Resource, err)
	}

	attemptID := s.ids.Generate()
	s.record(ctx, req, attemptID, hash, args, diff)

	s.logger.Debug("calling sync procedure",
		"procedure", coll.Procedure,
		"attempt", attemptID,
		"creates", len(diff.Creates),
		"updates", len(diff.Updates),
		"deletes", len(diff.Deletes),
	)

	raw, err := s.caller.Call(ctx, coll.Procedure, args)
	if err != nil {
		s.finish(ctx, coll.Procedure, attemptID, diff, err)
		return nil, fmt.Errorf("sync %s via %s: %w", req.Resource, coll.Procedure, err)
	}

	rec, err := postgrest.DecodeRecord(raw)
	if err != nil {
		s.finish(ctx, coll.Procedure, attemptID, diff, err)
		return nil, fmt.Errorf("sync %s via %s: %w", req.Resource, coll.Procedure, err)
	}

	s.finish(ctx, coll.Procedure, attemptID, diff, nil)
	s.logger.Info("collection synced",
		"resource", req.Resource,
		"record", req.RecordID,
		"procedure", coll.Procedure,
		"attempt", attemptID,
		"instructions", diff.Len(),
	)

	return &Result{
		AttemptID:       attemptID,
		InstructionHash: hash,
		Diff:            diff,
		Record:          rec,
	}, nil
}

// BuildArgs assembles the procedure arguments for req and diff.
func BuildArgs(req Request, diff reconcile.Diff) map[string]any {
	coll := req.Collection
	return map[string]any{
		coll.ParentKey:  req.parentData(),
		coll.CreatesKey: diff.Creates,
		coll.UpdatesKey: diff.Updates,
		coll.DeletesKey: diff.Deletes,
	}
}

// record journals a pending attempt. Journal failures are logged and do
// not block the sync.
func (s *Syncer) record(ctx context.Context, req Request, id, hash string, args map[string]any, diff reconcile.Diff) {
	if s.journal == nil {
		return
	}
	data, err := canonical.Marshal(args)
	if err != nil {
		s.logger.Warn("journal: cannot encode arguments", "attempt", id, "error", err)
		return
	}
	err = s.journal.RecordAttempt(ctx, store.Attempt{
		ID:              id,
		Resource:        req.Resource,
		RecordID:        req.RecordID,
		Procedure:       req.Collection.Procedure,
		InstructionHash: hash,
		Args:            data,
		Creates:         len(diff.Creates),
		Updates:         len(diff.Updates),
		Deletes:         len(diff.Deletes),
		Status:          store.StatusPending,
		StartedAt:       s.now(),
	})
	if err != nil {
		s.logger.Warn("journal: cannot record attempt", "attempt", id, "error", err)
	}
}

// finish journals and reports the outcome of an attempt.
func (s *Syncer) finish(ctx context.Context, procedure, id string, diff reconcile.Diff, callErr error) {
	outcome := store.Outcome{Status: store.StatusSucceeded, FinishedAt: s.now()}
	if callErr != nil {
		outcome.Status = store.StatusFailed
		outcome.ErrorMessage = callErr.Error()
		if pe, ok := postgrest.AsError(callErr); ok {
			outcome.ErrorCode = pe.Code
		}
		s.logger.Error("sync procedure failed",
			"procedure", procedure,
			"attempt", id,
			"error", callErr,
		)
	}

	if s.journal != nil {
		// The call has already happened; the outcome is journaled even if
		// the caller's context was cancelled meanwhile.
		if err := s.journal.FinishAttempt(context.WithoutCancel(ctx), id, outcome); err != nil {
			s.logger.Warn("journal: cannot finish attempt", "attempt", id, "error", err)
		}
	}
	if s.recorder != nil {
		s.recorder.ObserveSync(procedure, outcome.Status, diff)
	}
}
