package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hedge-lab/internal/domain"
	"hedge-lab/internal/orchestrator"
	"hedge-lab/internal/pairing"
)

var t0 = time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)

func testJob(id string) *Job {
	return newJob(id, domain.DefaultAnalysisParameters(), t0)
}

func TestRegistry_EvictsOldestFinished(t *testing.T) {
	r := NewRegistry(2)

	a, b, c := testJob("a"), testJob("b"), testJob("c")
	require.NoError(t, r.Add(a))
	require.NoError(t, r.Add(b))

	// both still pending
	assert.ErrorIs(t, r.Add(c), ErrRegistryFull)

	b.finish(&orchestrator.AnalysisRun{ID: "run-b"}, nil, t0)
	require.NoError(t, r.Add(c))

	_, ok := r.Get("b")
	assert.False(t, ok)

	ids := []string{}
	for _, s := range r.List() {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"a", "c"}, ids)
}

func TestRegistry_CancelAll(t *testing.T) {
	r := NewRegistry(5)
	j := testJob("j")
	require.NoError(t, r.Add(j))

	ctx, cancel := context.WithCancel(context.Background())
	j.start(cancel)
	r.CancelAll()

	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestJob_FinishStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Status
	}{
		{"completed", nil, StatusCompleted},
		{"cancelled", context.Canceled, StatusCancelled},
		{"wrapped cancel", errors.Join(errors.New("find pairs"), context.Canceled), StatusCancelled},
		{"failed", errors.New("db down"), StatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := testJob("j")
			j.start(func() {})
			var run *orchestrator.AnalysisRun
			if tt.err == nil {
				run = &orchestrator.AnalysisRun{ID: "r"}
			}
			j.finish(run, tt.err, t0.Add(time.Second))

			snap := j.Snapshot()
			assert.Equal(t, tt.want, snap.Status)
			assert.Equal(t, t0.Add(time.Second), snap.FinishedAt)
			assert.False(t, j.Cancel())

			// a second finish is ignored
			j.finish(nil, errors.New("late"), t0.Add(time.Hour))
			assert.Equal(t, tt.want, j.Snapshot().Status)
		})
	}
}

func TestJob_ProgressOnlyMovesForward(t *testing.T) {
	j := testJob("j")
	j.start(func() {})

	j.progress(pairing.Progress{Group: "NQ", Done: 2, Total: 3, Admitted: 4})
	j.progress(pairing.Progress{Group: "ES", Done: 1, Total: 3, Admitted: 1})

	p := j.Snapshot().Progress
	assert.Equal(t, "progress", p.Type)
	assert.Equal(t, 2, p.Done)
	assert.Equal(t, 3, p.Total)
	assert.Equal(t, 5, p.Admitted)
	assert.Equal(t, "ES", p.Group)
}

func TestJob_Subscribe(t *testing.T) {
	j := testJob("j")
	events, unsubscribe := j.Subscribe()
	defer unsubscribe()

	first := <-events
	assert.Equal(t, StatusPending, first.Status)

	j.start(func() {})
	j.progress(pairing.Progress{Group: "NQ", Done: 1, Total: 1, Admitted: 2})
	j.finish(&orchestrator.AnalysisRun{ID: "r"}, nil, t0)

	var got []Event
	for ev := range events {
		got = append(got, ev)
	}
	require.Len(t, got, 3)
	assert.Equal(t, StatusRunning, got[0].Status)
	assert.Equal(t, "progress", got[1].Type)
	assert.Equal(t, "status", got[2].Type)
	assert.Equal(t, StatusCompleted, got[2].Status)
	assert.Equal(t, 0, got[2].Admitted, "admitted comes from the run's pairs")
}

func TestJob_SubscribeAfterFinish(t *testing.T) {
	j := testJob("j")
	j.finish(nil, errors.New("boom"), t0)

	events, unsubscribe := j.Subscribe()
	defer unsubscribe()

	ev, ok := <-events
	require.True(t, ok)
	assert.Equal(t, StatusFailed, ev.Status)
	assert.Equal(t, "boom", ev.Error)

	_, ok = <-events
	assert.False(t, ok)
}

func TestJob_SlowSubscriberStillGetsFinalEvent(t *testing.T) {
	j := testJob("j")
	events, unsubscribe := j.Subscribe()
	defer unsubscribe()

	j.start(func() {})
	for i := 0; i < eventBuffer*2; i++ {
		j.progress(pairing.Progress{Done: i + 1, Total: eventBuffer * 2})
	}
	j.finish(nil, errors.New("boom"), t0)

	var last Event
	n := 0
	for ev := range events {
		last = ev
		n++
	}
	assert.LessOrEqual(t, n, eventBuffer)
	assert.Equal(t, StatusFailed, last.Status)
	assert.Equal(t, eventBuffer*2, last.Done)
}

func TestJob_Unsubscribe(t *testing.T) {
	j := testJob("j")
	events, unsubscribe := j.Subscribe()
	<-events
	unsubscribe()

	_, ok := <-events
	assert.False(t, ok)

	// publishing afterwards must not panic on the closed channel
	j.start(func() {})
	j.finish(nil, nil, t0)
	unsubscribe()
}
