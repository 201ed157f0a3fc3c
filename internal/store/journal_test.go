package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func testAttempt(id, resource, recordID string, started time.Time) Attempt {
	return Attempt{
		ID:              id,
		Resource:        resource,
		RecordID:        recordID,
		Procedure:       "sync_opportunity_with_products",
		InstructionHash: "hash-" + id,
		Args:            json.RawMessage(`{"opportunity_data":{"id":1}}`),
		Creates:         1,
		Updates:         2,
		Deletes:         3,
		StartedAt:       started,
	}
}

func TestRecordAttempt_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordAttempt(ctx, testAttempt("a1", "opportunities", "1", t0)))

	got, err := s.Attempt(ctx, "a1")
	require.NoError(t, err)

	assert.Equal(t, int64(1), got.Seq)
	assert.Equal(t, "opportunities", got.Resource)
	assert.Equal(t, "1", got.RecordID)
	assert.Equal(t, StatusPending, got.Status)
	assert.JSONEq(t, `{"opportunity_data":{"id":1}}`, string(got.Args))
	assert.Equal(t, 1, got.Creates)
	assert.Equal(t, 2, got.Updates)
	assert.Equal(t, 3, got.Deletes)
	assert.True(t, t0.Equal(got.StartedAt))
	assert.Nil(t, got.FinishedAt)
}

func TestRecordAttempt_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	a := testAttempt("a1", "opportunities", "1", t0)
	require.NoError(t, s.RecordAttempt(ctx, a))
	require.NoError(t, s.RecordAttempt(ctx, a))

	all, err := s.ListAttempts(ctx, Query{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRecordAttempt_RequiresID(t *testing.T) {
	s := createTestStore(t)

	err := s.RecordAttempt(context.Background(), Attempt{Resource: "x"})
	assert.Error(t, err)
}

func TestFinishAttempt(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.RecordAttempt(ctx, testAttempt("a1", "opportunities", "1", t0)))

	done := t0.Add(250 * time.Millisecond)
	require.NoError(t, s.FinishAttempt(ctx, "a1", Outcome{
		Status:       StatusFailed,
		ErrorCode:    "23503",
		ErrorMessage: "foreign key violation",
		FinishedAt:   done,
	}))

	got, err := s.Attempt(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "23503", got.ErrorCode)
	assert.Equal(t, "foreign key violation", got.ErrorMessage)
	require.NotNil(t, got.FinishedAt)
	assert.True(t, done.Equal(*got.FinishedAt))

	// A finished attempt cannot be finished again.
	err = s.FinishAttempt(ctx, "a1", Outcome{Status: StatusSucceeded, FinishedAt: done})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFinishAttempt_Errors(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.FinishAttempt(ctx, "missing", Outcome{Status: StatusSucceeded, FinishedAt: t0})
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.FinishAttempt(ctx, "missing", Outcome{Status: StatusPending})
	assert.ErrorContains(t, err, "invalid status")
}

func TestAttempt_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Attempt(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAttempts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordAttempt(ctx, testAttempt("a1", "opportunities", "1", t0)))
	require.NoError(t, s.RecordAttempt(ctx, testAttempt("a2", "opportunities", "2", t0.Add(time.Second))))
	require.NoError(t, s.RecordAttempt(ctx, testAttempt("a3", "orders", "1", t0.Add(2*time.Second))))
	require.NoError(t, s.RecordAttempt(ctx, testAttempt("a4", "opportunities", "1", t0.Add(3*time.Second))))
	require.NoError(t, s.FinishAttempt(ctx, "a4", Outcome{Status: StatusSucceeded, FinishedAt: t0}))

	ids := func(as []Attempt) []string {
		out := make([]string, len(as))
		for i, a := range as {
			out[i] = a.ID
		}
		return out
	}

	all, err := s.ListAttempts(ctx, Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2", "a3", "a4"}, ids(all))

	byResource, err := s.ListAttempts(ctx, Query{Resource: "opportunities"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2", "a4"}, ids(byResource))

	byRecord, err := s.ListAttempts(ctx, Query{Resource: "opportunities", RecordID: "1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a4"}, ids(byRecord))

	succeeded, err := s.ListAttempts(ctx, Query{Status: StatusSucceeded})
	require.NoError(t, err)
	assert.Equal(t, []string{"a4"}, ids(succeeded))

	recent, err := s.ListAttempts(ctx, Query{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"a3", "a4"}, ids(recent))

	none, err := s.ListAttempts(ctx, Query{Resource: "nothing"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestCountByHash(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	a := testAttempt("a1", "opportunities", "1", t0)
	b := testAttempt("a2", "opportunities", "1", t0)
	b.InstructionHash = a.InstructionHash
	require.NoError(t, s.RecordAttempt(ctx, a))
	require.NoError(t, s.RecordAttempt(ctx, b))

	n, err := s.CountByHash(ctx, a.InstructionHash)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.CountByHash(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestPrune(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordAttempt(ctx, testAttempt("old-done", "opportunities", "1", t0)))
	require.NoError(t, s.RecordAttempt(ctx, testAttempt("old-pending", "opportunities", "2", t0)))
	require.NoError(t, s.RecordAttempt(ctx, testAttempt("new-done", "opportunities", "3", t0.Add(48*time.Hour))))
	for _, id := range []string{"old-done", "new-done"} {
		require.NoError(t, s.FinishAttempt(ctx, id, Outcome{Status: StatusSucceeded, FinishedAt: t0.Add(time.Hour)}))
	}

	n, err := s.Prune(ctx, t0.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	all, err := s.ListAttempts(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "old-pending", all[0].ID)
	assert.Equal(t, "new-done", all[1].ID)

	n, err = s.Prune(ctx, t0.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)
}
