package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// PeriodArchiveJobName is the scheduler name of the period auto-archive job
const PeriodArchiveJobName = "period-auto-archive"

// PeriodArchiver archives periods that ended before the cutoff
type PeriodArchiver interface {
	ArchiveEndedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PeriodArchiveJob archives periods whose end date is older than the grace period
type PeriodArchiveJob struct {
	archiver  PeriodArchiver
	logger    *zap.Logger
	graceDays int
	timeout   time.Duration
	now       func() time.Time
}

// NewPeriodArchiveJob creates the job
func NewPeriodArchiveJob(archiver PeriodArchiver, logger *zap.Logger, graceDays int, timeout time.Duration) *PeriodArchiveJob {
	return &PeriodArchiveJob{
		archiver:  archiver,
		logger:    logger,
		graceDays: graceDays,
		timeout:   timeout,
		now:       time.Now,
	}
}

// Cutoff returns the start of the day graceDays before now, in UTC
func (j *PeriodArchiveJob) Cutoff() time.Time {
	y, m, d := j.now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -j.graceDays)
}

// Run is invoked by the scheduler
func (j *PeriodArchiveJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	cutoff := j.Cutoff()

	archived, err := j.archiver.ArchiveEndedBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("period auto-archive failed",
			zap.Time("cutoff", cutoff),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return
	}

	j.logger.Info("period auto-archive completed",
		zap.Time("cutoff", cutoff),
		zap.Int64("archived", archived),
		zap.Duration("duration", time.Since(start)))
}
