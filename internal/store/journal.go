package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the outcome of a sync attempt.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Attempt is one journaled call of a sync procedure.
type Attempt struct {
	Seq             int64           `json:"seq"`
	ID              string          `json:"id"`
	Resource        string          `json:"resource"`
	RecordID        string          `json:"record_id,omitempty"`
	Procedure       string          `json:"procedure"`
	InstructionHash string          `json:"instruction_hash"`
	Args            json.RawMessage `json:"args"`
	Creates         int             `json:"creates"`
	Updates         int             `json:"updates"`
	Deletes         int             `json:"deletes"`
	Status          Status          `json:"status"`
	ErrorCode       string          `json:"error_code,omitempty"`
	ErrorMessage    string          `json:"error_message,omitempty"`
	StartedAt       time.Time       `json:"started_at"`
	FinishedAt      *time.Time      `json:"finished_at,omitempty"`
}

// Outcome finishes an attempt.
type Outcome struct {
	Status       Status
	ErrorCode    string
	ErrorMessage string
	FinishedAt   time.Time
}

// Query selects attempts. Zero fields match everything.
type Query struct {
	Resource string
	RecordID string
	Status   Status

	// Limit keeps only the most recent attempts.
	Limit int
}

// RecordAttempt inserts a pending attempt.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - recording the same
// attempt twice is silently ignored.
func (s *Store) RecordAttempt(ctx context.Context, a Attempt) error {
	if a.ID == "" {
		return errors.New("record attempt: empty id")
	}
	if a.Status == "" {
		a.Status = StatusPending
	}
	args := string(a.Args)
	if args == "" {
		args = "{}"
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_attempts
		(id, resource, record_id, procedure, instruction_hash, args,
		 creates, updates, deletes, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		a.ID,
		a.Resource,
		a.RecordID,
		a.Procedure,
		a.InstructionHash,
		args,
		a.Creates,
		a.Updates,
		a.Deletes,
		string(a.Status),
		a.StartedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

// FinishAttempt stores the outcome of a pending attempt.
// Returns ErrNotFound if no pending attempt has that id.
func (s *Store) FinishAttempt(ctx context.Context, id string, o Outcome) error {
	if o.Status == StatusPending || o.Status == "" {
		return fmt.Errorf("finish attempt %s: invalid status %q", id, o.Status)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE sync_attempts
		SET status = ?, error_code = ?, error_message = ?, finished_at = ?
		WHERE id = ? AND status = 'pending'
	`,
		string(o.Status),
		o.ErrorCode,
		o.ErrorMessage,
		o.FinishedAt.UnixMilli(),
		id,
	)
	if err != nil {
		return fmt.Errorf("finish attempt %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish attempt %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("finish attempt %s: %w", id, ErrNotFound)
	}
	return nil
}

const attemptColumns = `seq, id, resource, record_id, procedure, instruction_hash, args,
	creates, updates, deletes, status, error_code, error_message, started_at, finished_at`

// Attempt returns one attempt by id.
func (s *Store) Attempt(ctx context.Context, id string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+attemptColumns+` FROM sync_attempts WHERE id = ?`, id)
	a, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, fmt.Errorf("attempt %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Attempt{}, err
	}
	return a, nil
}

// ListAttempts returns matching attempts in journal order (oldest first).
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ListAttempts(ctx context.Context, q Query) ([]Attempt, error) {
	var where []string
	var args []any
	if q.Resource != "" {
		where = append(where, "resource = ?")
		args = append(args, q.Resource)
	}
	if q.RecordID != "" {
		where = append(where, "record_id = ?")
		args = append(args, q.RecordID)
	}
	if q.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(q.Status))
	}

	query := `SELECT ` + attemptColumns + ` FROM sync_attempts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	// Take the newest rows first so that Limit keeps the most recent ones,
	// then restore journal order.
	query += " ORDER BY seq DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	attempts := []Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}

	for i, j := 0, len(attempts)-1; i < j; i, j = i+1, j-1 {
		attempts[i], attempts[j] = attempts[j], attempts[i]
	}
	return attempts, nil
}

// CountByHash returns how many attempts carried the same instruction set.
func (s *Store) CountByHash(ctx context.Context, hash string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sync_attempts WHERE instruction_hash = ?`, hash,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count attempts by hash: %w", err)
	}
	return n, nil
}

// Prune deletes finished attempts that started before cutoff and returns
// how many were removed. Pending attempts are never pruned.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sync_attempts WHERE status != 'pending' AND started_at < ?`,
		cutoff.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("prune attempts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune attempts: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row scanner) (Attempt, error) {
	var (
		a        Attempt
		args     string
		status   string
		started  int64
		finished sql.NullInt64
	)
	err := row.Scan(
		&a.Seq, &a.ID, &a.Resource, &a.RecordID, &a.Procedure, &a.InstructionHash, &args,
		&a.Creates, &a.Updates, &a.Deletes, &status, &a.ErrorCode, &a.ErrorMessage,
		&started, &finished,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, err
		}
		return Attempt{}, fmt.Errorf("scan attempt: %w", err)
	}
	a.Args = json.RawMessage(args)
	a.Status = Status(status)
	a.StartedAt = time.UnixMilli(started).UTC()
	if finished.Valid {
		t := time.UnixMilli(finished.Int64).UTC()
		a.FinishedAt = &t
	}
	return a, nil
}
