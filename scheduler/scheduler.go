// Package scheduler runs the periodic maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"community-help/logger"
	"community-help/models"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const jobTimeout = time.Minute

// Backlog reports Pending reports older than a given age.
type Backlog interface {
	PendingBacklog(ctx context.Context, age time.Duration) (int64, *models.Report, error)
}

// Warmer refills the marker cache.
type Warmer interface {
	Warm(ctx context.Context) (int, error)
}

type Config struct {
	BacklogSpec       string
	WarmMarkersSpec   string
	StalePendingAfter time.Duration
}

type Scheduler struct {
	cron    *cron.Cron
	backlog Backlog
	warmer  Warmer
	staleAt time.Duration
}

func New(cfg Config, backlog Backlog, warmer Warmer) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{}))),
		backlog: backlog,
		warmer:  warmer,
		staleAt: cfg.StalePendingAfter,
	}
	if _, err := s.cron.AddFunc(cfg.BacklogSpec, func() { s.CheckBacklog(context.Background()) }); err != nil {
		return nil, fmt.Errorf("schedule backlog job %q: %w", cfg.BacklogSpec, err)
	}
	if _, err := s.cron.AddFunc(cfg.WarmMarkersSpec, func() { s.WarmMarkers(context.Background()) }); err != nil {
		return nil, fmt.Errorf("schedule warm-markers job %q: %w", cfg.WarmMarkersSpec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	logger.Log.WithField("jobs", len(s.cron.Entries())).Info("Scheduler started")
}

// Stop waits for running jobs to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		logger.Log.Warn("Scheduler stop timed out")
	}
}

// CheckBacklog warns about Pending reports nobody has looked at.
func (s *Scheduler) CheckBacklog(ctx context.Context) int64 {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	count, oldest, err := s.backlog.PendingBacklog(ctx, s.staleAt)
	if err != nil {
		logger.Log.WithError(err).Error("Backlog check failed")
		return 0
	}
	if count == 0 {
		logger.Log.Debug("No stale pending reports")
		return 0
	}
	fields := logrus.Fields{"count": count, "older_than": s.staleAt.String()}
	if oldest != nil {
		fields["oldest_id"] = oldest.ID.Hex()
		fields["oldest_created_at"] = oldest.CreatedAt.Format(time.RFC3339)
	}
	logger.Log.WithFields(fields).Warn("Pending reports waiting for review")
	return count
}

func (s *Scheduler) WarmMarkers(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	n, err := s.warmer.Warm(ctx)
	if err != nil {
		logger.Log.WithError(err).Warn("Marker cache warm-up failed")
		return
	}
	logger.Log.WithField("markers", n).Debug("Marker cache warmed")
}

// cronLogger routes cron's own messages into logrus.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Log.WithFields(kv(keysAndValues)).Debug(msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Log.WithError(err).WithFields(kv(keysAndValues)).Error(msg)
}

func kv(keysAndValues []interface{}) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
