package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shiftcal/internal/week"
)

type fakeWeeks struct {
	mu    sync.Mutex
	views []week.View
	days  []int
	fail  map[week.View]error
}

func (f *fakeWeeks) Refresh(_ context.Context, start time.Time, days int, view week.View) (week.Week, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.views = append(f.views, view)
	f.days = append(f.days, days)
	if err := f.fail[view]; err != nil {
		return week.Week{}, err
	}
	return week.Week{Days: []week.Day{{Date: "2025-03-10"}, {Date: "2025-03-11"}}}, nil
}

func TestNew_InvalidSpec(t *testing.T) {
	_, err := New(&fakeWeeks{}, Options{Spec: "every tuesday"})
	assert.Error(t, err)

	_, err = New(nil, Options{Spec: "*/5 * * * *"})
	assert.Error(t, err)
}

func TestRunOnce(t *testing.T) {
	weeks := &fakeWeeks{}
	captured := 0
	r, err := New(weeks, Options{
		Spec:  "*/15 * * * *",
		Days:  5,
		Views: []week.View{week.ViewFull, week.ViewPrime},
		Capture: func(context.Context) error {
			captured++
			return nil
		},
	})
	require.NoError(t, err)

	require.NoError(t, r.RunOnce(context.Background()))
	assert.Equal(t, []week.View{week.ViewFull, week.ViewPrime}, weeks.views)
	assert.Equal(t, []int{5, 5}, weeks.days)
	assert.Equal(t, 1, captured)

	st := r.Status()
	assert.Equal(t, 1, st.Runs)
	assert.NoError(t, st.LastError)
	assert.False(t, st.LastRun.IsZero())
}

func TestRunOnce_PartialFailure(t *testing.T) {
	boom := errors.New("feed down")
	weeks := &fakeWeeks{fail: map[week.View]error{week.ViewPrime: boom}}
	captured := 0
	r, err := New(weeks, Options{
		Spec:    "@every 1h",
		Views:   []week.View{week.ViewFull, week.ViewPrime},
		Capture: func(context.Context) error { captured++; return nil },
	})
	require.NoError(t, err)

	err = r.RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, captured, "capture still runs when one view succeeded")
	assert.ErrorIs(t, r.Status().LastError, boom)
}

func TestRunOnce_AllFailSkipsCapture(t *testing.T) {
	boom := errors.New("feed down")
	weeks := &fakeWeeks{fail: map[week.View]error{week.ViewFull: boom}}
	captured := 0
	r, err := New(weeks, Options{
		Spec:    "@every 1h",
		Capture: func(context.Context) error { captured++; return nil },
	})
	require.NoError(t, err)

	assert.ErrorIs(t, r.RunOnce(context.Background()), boom)
	assert.Equal(t, 0, captured)
	assert.Equal(t, []int{7}, weeks.days)
}

func TestWarm_SkipsCapture(t *testing.T) {
	weeks := &fakeWeeks{}
	captured := 0
	r, err := New(weeks, Options{
		Spec:    "@every 1h",
		Views:   []week.View{week.ViewFull, week.ViewPrime},
		Capture: func(context.Context) error { captured++; return nil },
	})
	require.NoError(t, err)

	require.NoError(t, r.Warm(context.Background()))
	assert.Equal(t, []week.View{week.ViewFull, week.ViewPrime}, weeks.views)
	assert.Equal(t, 0, captured)

	st := r.Status()
	assert.Equal(t, 1, st.Runs)
	assert.NoError(t, st.LastError)
}

func TestNext(t *testing.T) {
	r, err := New(&fakeWeeks{}, Options{Spec: "@every 1h"})
	require.NoError(t, err)
	assert.True(t, r.Next().IsZero(), "no next run before Run")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	assert.Eventually(t, func() bool {
		next := r.Next()
		return next.After(time.Now().Add(59*time.Minute)) && next.Before(time.Now().Add(61*time.Minute))
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRun_StopsOnCancel(t *testing.T) {
	r, err := New(&fakeWeeks{}, Options{Spec: "@every 1h"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
