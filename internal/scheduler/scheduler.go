// Package scheduler promotes due scheduled campaigns into send runs.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mailkite/mailkite/internal/dispatch"
	"github.com/mailkite/mailkite/internal/repository"
)

// Scheduler polls for campaigns whose scheduled time has arrived and hands
// them to the dispatch engine. Dispatch runs synchronously inside the poll
// loop: a long campaign simply delays the next sweep, which keeps the whole
// process single-sender without extra coordination.
type Scheduler struct {
	campaigns *repository.CampaignRepository
	engine    *dispatch.Engine
	interval  time.Duration
	logger    *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(campaigns *repository.CampaignRepository, engine *dispatch.Engine, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		campaigns: campaigns,
		engine:    engine,
		interval:  interval,
		logger:    logger.With("component", "scheduler"),
	}
}

// Start launches the poll loop. The first sweep runs immediately so a
// campaign already past due at startup is not delayed by a full interval.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		s.logger.Info("scheduler started", "interval", s.interval)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.sweep(ctx)
		for {
			select {
			case <-ctx.Done():
				s.logger.Info("scheduler stopped")
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for an in-progress sweep to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// sweep dispatches every campaign that is due. Failures are logged and left
// for the next sweep; the claim inside Dispatch guarantees a campaign picked
// up by a concurrent manual send is skipped here.
func (s *Scheduler) sweep(ctx context.Context) {
	due, err := s.campaigns.FindDue(time.Now())
	if err != nil {
		s.logger.Error("failed to query due campaigns", "error", err)
		return
	}

	for i := range due {
		if ctx.Err() != nil {
			return
		}
		campaign := &due[i]

		s.logger.Info("promoting scheduled campaign",
			"campaign_id", campaign.ID,
			"name", campaign.Name,
			"scheduled_at", campaign.ScheduledAt,
		)

		_, err := s.engine.Dispatch(ctx, campaign.ID, "scheduled")
		if err != nil {
			if errors.Is(err, dispatch.ErrNotClaimable) {
				continue
			}
			s.logger.Error("scheduled dispatch failed",
				"campaign_id", campaign.ID,
				"error", err,
			)
		}
	}
}
