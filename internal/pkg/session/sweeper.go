// internal/pkg/session/sweeper.go
package session

import (
	"context"
	"time"

	"authsession-service/internal/pkg/logger"

	"go.uber.org/zap"
)

const DefaultSweepInterval = 10 * time.Minute

type expiredSweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// Sweeper periodically removes expired sessions from the durable store.
type Sweeper struct {
	target   expiredSweeper
	interval time.Duration
	logger   *zap.Logger
}

func NewSweeper(target expiredSweeper, interval time.Duration, log *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		target:   target,
		interval: interval,
		logger:   logger.OrNop(log),
	}
}

// Run blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("session sweeper started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session sweeper stopped")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single pass and returns the number of deleted sessions.
func (s *Sweeper) SweepOnce(ctx context.Context) int64 {
	n, err := s.target.Sweep(ctx)
	if err != nil {
		s.logger.Error("session sweep failed", zap.Error(err))
		return 0
	}
	if n > 0 {
		s.logger.Info("expired sessions swept", zap.Int64("count", n))
	}
	return n
}
