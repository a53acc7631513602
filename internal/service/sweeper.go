package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"eventsite-service/internal/model"
	"eventsite-service/internal/util"
)

// Sweeper periodically deletes terminal OTP rows past the retention cutoff.
// Terminal rows are kept for a while to support audit queries, then purged.
type Sweeper struct {
	otps      model.OTPRepository
	interval  time.Duration
	retention time.Duration
}

func NewSweeper(otps model.OTPRepository, interval, retention time.Duration) *Sweeper {
	return &Sweeper{
		otps:      otps,
		interval:  interval,
		retention: retention,
	}
}

// Run blocks until the context is cancelled, sweeping once per interval.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	util.Info("otp sweeper started",
		zap.Duration("interval", s.interval),
		zap.Duration("retention", s.retention))

	for {
		select {
		case <-ctx.Done():
			util.Info("otp sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.retention)
	deleted, err := s.otps.DeleteTerminal(ctx, cutoff)
	if err != nil {
		util.Warn("otp sweep failed", util.ErrorField(err))
		return
	}
	if deleted > 0 {
		util.Info("otp sweep completed", zap.Int64("deleted", deleted))
	}
}
