package engine

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Scheduler runs sweeps on a fixed interval. Sweeps never overlap: a
// tick that fires while a sweep is still running is dropped.
type Scheduler struct {
	engine   *Engine
	interval time.Duration
	logger   *zap.Logger
}

// NewScheduler builds a Scheduler around an engine.
func NewScheduler(engine *Engine, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		engine:   engine,
		interval: interval,
		logger:   logger,
	}
}

// Run sweeps immediately, then on every interval tick, until ctx is
// canceled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	results, err := s.engine.Sweep(ctx)
	if err != nil {
		s.logger.Warn("sweep aborted", zap.Error(err))
		return
	}
	failures := 0
	for _, r := range results {
		if r.Err != nil {
			failures++
		}
	}
	if failures > 0 {
		s.logger.Warn("sweep finished with failures",
			zap.Int("sites", len(results)),
			zap.Int("failures", failures),
		)
	}
}
