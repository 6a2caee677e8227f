package service

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepInterval is how often expired recovery tokens are cleared when
// no interval is configured.
const DefaultSweepInterval = 10 * time.Minute

// RecoverySweeper is the part of the account store the sweeper needs.
type RecoverySweeper interface {
	ClearExpiredRecovery(ctx context.Context, cutoff time.Time) (int64, error)
}

// HousekeepingService periodically clears recovery tokens whose window has
// closed, so stale tokens do not linger in the database. Expired tokens are
// already rejected by ResetPassword; this only keeps the data tidy.
type HousekeepingService struct {
	Store    RecoverySweeper
	Logger   *slog.Logger
	Interval time.Duration
	Window   time.Duration
	Now      func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a sweeper. Non-positive durations fall back
// to the defaults.
func NewHousekeepingService(s RecoverySweeper, logger *slog.Logger, interval, window time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if window <= 0 {
		window = DefaultRecoveryWindow
	}

	return &HousekeepingService{
		Store:    s,
		Logger:   logger,
		Interval: interval,
		Window:   window,
		Now:      time.Now,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the sweeper in the background until Stop is called.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop shuts the worker down and waits for an in-progress sweep to finish.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Sweep(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Sweep(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Sweep clears every recovery request older than the window.
func (s *HousekeepingService) Sweep(ctx context.Context) {
	cutoff := s.Now().Add(-s.Window)

	n, err := s.Store.ClearExpiredRecovery(ctx, cutoff)
	if err != nil {
		s.Logger.Error("failed to clear expired recovery tokens", "error", err)
		return
	}
	if n > 0 {
		s.Logger.Info("cleared expired recovery tokens", "count", n)
	}
}
