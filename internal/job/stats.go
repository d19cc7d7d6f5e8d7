// Package job runs the service's periodic background work.
package job

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"thesis-service/internal/lifecycle"
	"thesis-service/prometheus"
)

// StatusCounter reports how many applications sit in each status.
type StatusCounter interface {
	CountByStatus(ctx context.Context) (map[lifecycle.Status]int64, error)
}

// StatsRefresher keeps the applications-by-status gauge current.
type StatsRefresher struct {
	cronEngine *cron.Cron
	counter    StatusCounter
	spec       string
	timeout    time.Duration
	log        *zap.Logger
}

// NewStatsRefresher schedules a refresh on spec, e.g. "@every 1m" or "*/5 * * * *".
func NewStatsRefresher(counter StatusCounter, spec string, log *zap.Logger) *StatsRefresher {
	return &StatsRefresher{
		cronEngine: cron.New(cron.WithLocation(time.UTC)),
		counter:    counter,
		spec:       spec,
		timeout:    30 * time.Second,
		log:        log,
	}
}

// Start refreshes once and then schedules the recurring job.
func (s *StatsRefresher) Start() error {
	if _, err := s.cronEngine.AddFunc(s.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.Refresh(ctx); err != nil {
			s.log.Error("Failed to refresh application stats", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("schedule stats refresh %q: %w", s.spec, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.Refresh(ctx); err != nil {
		s.log.Warn("Initial application stats refresh failed", zap.Error(err))
	}

	s.cronEngine.Start()
	s.log.Info("Stats refresher started", zap.String("spec", s.spec))
	return nil
}

// Stop halts scheduling and waits for a running refresh to finish.
func (s *StatsRefresher) Stop() {
	<-s.cronEngine.Stop().Done()
}

// Refresh recomputes the per-status gauge.
func (s *StatsRefresher) Refresh(ctx context.Context) error {
	counts, err := s.counter.CountByStatus(ctx)
	if err != nil {
		return err
	}
	for status, n := range counts {
		prometheus.SetApplicationsByStatus(status.String(), n)
	}
	return nil
}
