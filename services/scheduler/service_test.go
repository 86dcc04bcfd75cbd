package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunTaskNowRecordsOutcome(t *testing.T) {
	s := NewService(time.Minute,
		Task{ID: "ok", Interval: time.Hour, Run: func(context.Context) (int, error) { return 3, nil }},
		Task{ID: "bad", Name: "Broken", Interval: time.Hour, Run: func(context.Context) (int, error) { return 0, errors.New("disk full") }},
	)

	require.NoError(t, s.RunTaskNow("ok"))
	require.NoError(t, s.RunTaskNow("bad"))
	s.wg.Wait()

	status := s.Status()
	require.Len(t, status, 2)
	assert.Equal(t, "ok", status[0].ID)
	assert.Equal(t, "ok", status[0].Name)
	assert.Equal(t, StatusSuccess, status[0].LastStatus)
	assert.Equal(t, 3, status[0].Items)
	assert.NotNil(t, status[0].LastRunAt)
	assert.Equal(t, "1h0m0s", status[0].Interval)

	assert.Equal(t, "Broken", status[1].Name)
	assert.Equal(t, StatusError, status[1].LastStatus)
	assert.Equal(t, "disk full", status[1].LastError)
}

func TestRunTaskNowErrors(t *testing.T) {
	release := make(chan struct{})
	s := NewService(time.Minute, Task{ID: "slow", Interval: time.Hour, Run: func(context.Context) (int, error) {
		<-release
		return 0, nil
	}})

	assert.ErrorIs(t, s.RunTaskNow("missing"), ErrTaskNotFound)
	require.NoError(t, s.RunTaskNow("slow"))
	assert.ErrorIs(t, s.RunTaskNow("slow"), ErrTaskRunning)
	assert.Equal(t, StatusRunning, s.Status()[0].LastStatus)

	close(release)
	s.wg.Wait()
	assert.Equal(t, StatusSuccess, s.Status()[0].LastStatus)
}

func TestPanickingTaskIsRecorded(t *testing.T) {
	s := NewService(time.Minute, Task{ID: "boom", Interval: time.Hour, Run: func(context.Context) (int, error) {
		panic("nil map")
	}})
	require.NoError(t, s.RunTaskNow("boom"))
	s.wg.Wait()
	assert.Equal(t, StatusError, s.Status()[0].LastStatus)
	assert.Contains(t, s.Status()[0].LastError, "nil map")
}

func TestRunDueHonoursInterval(t *testing.T) {
	var runs atomic.Int32
	s := NewService(time.Minute, Task{ID: "sweep", Interval: time.Hour, Run: func(context.Context) (int, error) {
		runs.Add(1)
		return 0, nil
	}})
	s.ctx = context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.runDue()
	s.wg.Wait()
	assert.Equal(t, int32(1), runs.Load(), "a task that never ran is due immediately")

	now = now.Add(30 * time.Minute)
	s.runDue()
	s.wg.Wait()
	assert.Equal(t, int32(1), runs.Load())

	now = now.Add(31 * time.Minute)
	s.runDue()
	s.wg.Wait()
	assert.Equal(t, int32(2), runs.Load())
}

func TestStartStop(t *testing.T) {
	ran := make(chan struct{}, 1)
	s := NewService(time.Hour, Task{ID: "once", Interval: time.Hour, Run: func(ctx context.Context) (int, error) {
		ran <- struct{}{}
		return 1, nil
	}})

	s.Start(context.Background())
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run on start")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	assert.Equal(t, StatusSuccess, s.Status()[0].LastStatus)
}
