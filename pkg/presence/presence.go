// Package presence demotes idle profiles. A profile's LastActiveTS is
// refreshed on every submission; the sweeper runs on a cron schedule and
// moves stale profiles to away, then offline. The assistant profile is
// pinned online.
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"chatcore/pkg/config"
	"chatcore/pkg/logger"
	"chatcore/pkg/models"
	"chatcore/pkg/store"
)

// Start starts the sweep scheduler if enabled. Returns a cancel func.
func Start(ctx context.Context, cfg *config.Config) (context.CancelFunc, error) {
	if !cfg.Presence.Enabled {
		logger.Info("presence_disabled")
		return func() {}, nil
	}

	cronExpr := cfg.Presence.Cron
	if !gronx.IsValid(cronExpr) {
		logger.Error("presence_invalid_cron", "cron", cronExpr)
		return nil, fmt.Errorf("invalid presence cron expression: %s", cronExpr)
	}
	awayAfter, err := time.ParseDuration(cfg.Presence.AwayAfter)
	if err != nil {
		return nil, fmt.Errorf("invalid presence away_after: %w", err)
	}
	offlineAfter, err := time.ParseDuration(cfg.Presence.OfflineAfter)
	if err != nil {
		return nil, fmt.Errorf("invalid presence offline_after: %w", err)
	}

	logger.Info("presence_enabled", "cron", cronExpr, "away_after", cfg.Presence.AwayAfter, "offline_after", cfg.Presence.OfflineAfter)
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cronExpr, awayAfter, offlineAfter)
	return cancel, nil
}

// runScheduler uses gronx to compute the next tick for the configured cron
// expression and sleeps until then.
func runScheduler(ctx context.Context, cronExpr string, awayAfter, offlineAfter time.Duration) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("presence_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("presence_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		wait := time.Until(next)
		if wait <= 0 {
			wait = time.Second
		}
		select {
		case <-time.After(wait):
			if n, err := SweepOnce(time.Now(), awayAfter, offlineAfter); err != nil {
				logger.Error("presence_sweep_error", "error", err)
			} else if n > 0 {
				logger.Info("presence_swept", "demoted", n)
			}
		case <-ctx.Done():
			logger.Info("presence_scheduler_stopping")
			return
		}
	}
}

// SweepOnce demotes profiles whose last activity predates the thresholds
// and returns how many records changed. Exported so tests and admin
// triggers can run a sweep on demand.
func SweepOnce(now time.Time, awayAfter, offlineAfter time.Duration) (int, error) {
	profiles, err := store.ListProfiles()
	if err != nil {
		return 0, err
	}
	demoted := 0
	for _, p := range profiles {
		if p.IsAssistant() {
			continue
		}
		idle := now.Sub(time.Unix(0, p.LastActiveTS))
		want := p.Status
		switch {
		case p.LastActiveTS == 0 || idle >= offlineAfter:
			want = models.StatusOffline
		case idle >= awayAfter:
			if p.Status == models.StatusOnline {
				want = models.StatusAway
			}
		}
		if want == p.Status {
			continue
		}
		p.Status = want
		if err := store.SaveProfile(p); err != nil {
			return demoted, err
		}
		demoted++
	}
	return demoted, nil
}
