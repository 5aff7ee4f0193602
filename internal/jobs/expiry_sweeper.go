package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/SAP-F-2025/examination-service/internal/models"
)

// maxBatchesPerRun bounds one sweep so a backlog cannot hold the job forever
const maxBatchesPerRun = 50

// AttemptExpirer closes in-progress attempts whose deadline has passed
type AttemptExpirer interface {
	ExpireOverdue(ctx context.Context, now time.Time, afterID uint, limit int) (models.OverdueBatch, error)
}

// ExpirySweeper runs the overdue attempt sweep on a cron schedule
type ExpirySweeper struct {
	cron    *cron.Cron
	expirer AttemptExpirer
	logger  *slog.Logger
	batch   int
	timeout time.Duration
	now     func() time.Time
}

func NewExpirySweeper(expirer AttemptExpirer, schedule string, batch int, logger *slog.Logger) (*ExpirySweeper, error) {
	if batch <= 0 {
		return nil, fmt.Errorf("expiry sweep batch must be positive, got %d", batch)
	}

	cronLog := cronLogger{logger: logger.With("job", "attempt_expiry")}
	s := &ExpirySweeper{
		cron:    cron.New(cron.WithLogger(cronLog), cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog))),
		expirer: expirer,
		logger:  logger,
		batch:   batch,
		timeout: 2 * time.Minute,
		now:     time.Now,
	}

	if _, err := s.cron.AddFunc(schedule, s.tick); err != nil {
		return nil, fmt.Errorf("invalid expiry sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *ExpirySweeper) Start() {
	s.cron.Start()
	s.logger.Info("Attempt expiry sweeper started", "batch", s.batch)
}

// Stop halts scheduling and waits for a running sweep until ctx is done
func (s *ExpirySweeper) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("Attempt expiry sweeper did not stop in time")
	}
}

func (s *ExpirySweeper) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("Attempt expiry sweep failed", "error", err)
	}
}

// RunOnce walks overdue attempts in id order, batch by batch, until a batch comes back short.
// Attempts that keep failing to close are passed over instead of filling every batch.
func (s *ExpirySweeper) RunOnce(ctx context.Context) (int, error) {
	now := s.now()
	total := 0
	var cursor uint
	for i := 0; i < maxBatchesPerRun; i++ {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		batch, err := s.expirer.ExpireOverdue(ctx, now, cursor, s.batch)
		total += batch.Expired
		if err != nil {
			return total, err
		}
		if batch.Scanned < s.batch {
			break
		}
		cursor = batch.LastID
	}

	if total > 0 {
		s.logger.Info("Expired overdue attempts", "count", total)
	}
	return total, nil
}

// cronLogger routes cron's own messages into slog
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
