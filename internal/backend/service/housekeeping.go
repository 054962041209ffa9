package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/askbar/internal/backend/metrics"
	"github.com/aussiebroadwan/askbar/internal/backend/store"
)

// HousekeepingService periodically deletes expired and revoked refresh
// tokens so the table does not grow without bound.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration
	Metrics  *metrics.Collector

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates the worker. A non-positive interval means
// one hour.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval time.Duration, m *metrics.Collector) *HousekeepingService {
	if interval <= 0 {
		interval = time.Hour
	}

	return &HousekeepingService{
		Store:    st,
		Logger:   logger,
		Interval: interval,
		Metrics:  m,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the worker in the background. Call Stop to end it.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop ends the worker and waits for a running pass to finish.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup runs one pass and reports how many rows went.
func (s *HousekeepingService) Cleanup(ctx context.Context) int64 {
	ctx, cancel := context.WithTimeout(ctx, s.Interval)
	defer cancel()

	deleted, err := s.Store.RefreshTokens().DeleteExpiredRefreshTokens(ctx, time.Now())
	s.Metrics.RecordHousekeeping(deleted, err)
	if err != nil {
		s.Logger.Error("failed to delete expired refresh tokens", "error", err)
		return 0
	}

	s.Logger.Info("housekeeping cleanup completed", "deleted_refresh_tokens", deleted)
	return deleted
}
