package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun(id string, startedAt time.Time) *RunRecord {
	return &RunRecord{
		ID:           id,
		Pipeline:     "demo",
		PipelineType: "cascaded",
		Dataset:      "/data/eval.jsonl",
		Samples:      10,
		Passed:       8,
		Failed:       2,
		Metrics:      map[string]float64{"pass_rate": 0.8},
		StartedAt:    startedAt,
		FinishedAt:   startedAt.Add(time.Minute),
	}
}

func TestCreateAndGetRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	started := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Create(ctx, sampleRun("run-1", started)))

	got, err := s.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "demo", got.Pipeline)
	assert.Equal(t, "cascaded", got.PipelineType)
	assert.Equal(t, 10, got.Samples)
	assert.Equal(t, 8, got.Passed)
	assert.InDelta(t, 0.8, got.Metrics["pass_rate"], 1e-9)
	assert.Equal(t, started, got.StartedAt)
	assert.Equal(t, started.Add(time.Minute), got.FinishedAt)
}

func TestGetMissingRun(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestListRunsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Create(ctx, sampleRun("run-old", base)))
	require.NoError(t, s.Create(ctx, sampleRun("run-new", base.Add(time.Hour))))
	require.NoError(t, s.Create(ctx, sampleRun("run-mid", base.Add(time.Minute))))

	runs, err := s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "run-new", runs[0].ID)
	assert.Equal(t, "run-mid", runs[1].ID)
	assert.Equal(t, "run-old", runs[2].ID)

	runs, err = s.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestCreateDuplicateID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := sampleRun("run-1", time.Now().UTC())
	require.NoError(t, s.Create(ctx, run))
	assert.Error(t, s.Create(ctx, run))
}
