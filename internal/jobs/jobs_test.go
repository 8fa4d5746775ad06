package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeArchiver struct {
	cutoff time.Time
	calls  int
	err    error
}

func (f *fakeArchiver) ArchiveEndedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.calls++
	f.cutoff = cutoff
	return 2, f.err
}

func TestPeriodArchiveJob_Cutoff(t *testing.T) {
	job := NewPeriodArchiveJob(&fakeArchiver{}, zap.NewNop(), 30, time.Second)
	job.now = func() time.Time { return time.Date(2024, 3, 31, 15, 4, 5, 0, time.UTC) }

	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), job.Cutoff())
}

func TestPeriodArchiveJob_Run(t *testing.T) {
	archiver := &fakeArchiver{}
	job := NewPeriodArchiveJob(archiver, zap.NewNop(), 0, time.Second)
	job.now = func() time.Time { return time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC) }

	job.Run()
	assert.Equal(t, 1, archiver.calls)
	assert.Equal(t, time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), archiver.cutoff)

	archiver.err = errors.New("db down")
	assert.NotPanics(t, job.Run)
	assert.Equal(t, 2, archiver.calls)
}

func TestScheduler_AddJob(t *testing.T) {
	s := NewScheduler(zap.NewNop())

	require.NoError(t, s.AddJob(PeriodArchiveJobName, "0 0 2 * * *", func() {}))
	assert.Error(t, s.AddJob(PeriodArchiveJobName, "0 0 2 * * *", func() {}))
	assert.Error(t, s.AddJob("broken", "not a cron", func() {}))
	assert.Equal(t, []string{PeriodArchiveJobName}, s.JobNames())
}

func TestScheduler_RunsJob(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	ran := make(chan struct{}, 1)
	require.NoError(t, s.AddJob("tick", "@every 1s", func() {
		select {
		case ran <- struct{}{}:
		default:
		}
	}))

	s.Start()
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}
}
