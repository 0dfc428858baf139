// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package services

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/jcalloway/prefero/internal/logging"
	"github.com/jcalloway/prefero/internal/metrics"
	"github.com/jcalloway/prefero/internal/prefs"
	"github.com/jcalloway/prefero/internal/store"
)

// errNothingDecayed aborts a store update cycle without writing when a sweep
// left the profile untouched.
var errNothingDecayed = errors.New("nothing decayed")

// DecayReconciler applies one pass of inactivity decay to a profile and
// reports how many preferences changed.
//
// Satisfied by *reconcile.Reconciler.
type DecayReconciler interface {
	Decay(ctx context.Context, profile *prefs.UserProfile, interval time.Duration) int
}

// DecaySweeperConfig holds the sweep schedule and write budget.
type DecaySweeperConfig struct {
	// Interval between sweeps. Also the idle window a preference must
	// exceed before it decays. Default: 1h.
	Interval time.Duration

	// WritesPerSecond caps profile write attempts during a sweep so decay
	// never starves live traffic. Default: 25.
	WritesPerSecond float64

	// UpdateRetries bounds version-conflict retries per profile. Default: 3.
	UpdateRetries int
}

// DecaySweeper walks the profile store on a ticker and fades the confidence
// of preferences nobody has touched for at least one full interval.
//
// Each profile is updated through the store's read-modify-write cycle, so a
// sweep racing a live turn loses the version check and retries against the
// fresh profile. Profiles where nothing decayed are never written back.
type DecaySweeper struct {
	store   store.Store
	rec     DecayReconciler
	config  DecaySweeperConfig
	limiter *rate.Limiter
	name    string
}

// NewDecaySweeper creates a decay sweeper over the given profile store.
func NewDecaySweeper(st store.Store, rec DecayReconciler, cfg DecaySweeperConfig) *DecaySweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.WritesPerSecond <= 0 {
		cfg.WritesPerSecond = 25
	}
	if cfg.UpdateRetries < 1 {
		cfg.UpdateRetries = 3
	}
	return &DecaySweeper{
		store:   st,
		rec:     rec,
		config:  cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.WritesPerSecond), 1),
		name:    "decay-sweeper",
	}
}

// Serve implements suture.Service. It sweeps on every tick until the context
// is canceled. There is no sweep at startup: profiles idle across a restart
// are at most one interval behind and the first tick catches them up.
func (s *DecaySweeper) Serve(ctx context.Context) error {
	logging.Info().
		Dur("interval", s.config.Interval).
		Float64("writes_per_second", s.config.WritesPerSecond).
		Msg("Decay sweeper starting")

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Decay sweeper shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep applies one decay pass over every stored profile. Returns how many
// profiles were written and how many preferences changed across them.
func (s *DecaySweeper) sweep(ctx context.Context) (touched, decayed int) {
	start := time.Now()

	ids, err := s.store.UserIDs(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("Decay sweep could not list profiles")
		return 0, 0
	}

	for _, id := range ids {
		if err := s.limiter.Wait(ctx); err != nil {
			// Shutdown mid-sweep; the next sweep picks up the rest.
			return touched, decayed
		}

		changed := 0
		_, err := store.Update(ctx, s.store, id, s.config.UpdateRetries, func(p *prefs.UserProfile) error {
			changed = s.rec.Decay(ctx, p, s.config.Interval)
			if changed == 0 {
				return errNothingDecayed
			}
			return nil
		})
		switch {
		case err == nil:
			touched++
			decayed += changed
		case errors.Is(err, errNothingDecayed):
			// Profile is either fresh or already drained; no write needed.
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return touched, decayed
		default:
			logging.Warn().Str("user_id", id).Err(err).Msg("Decay write failed")
		}
	}

	metrics.RecordDecaySweep(time.Since(start), decayed)
	if decayed > 0 {
		logging.Info().
			Int("profiles", touched).
			Int("preferences", decayed).
			Dur("took", time.Since(start)).
			Msg("Decay sweep complete")
	}
	return touched, decayed
}

// String implements fmt.Stringer for logging.
// Suture uses this to identify the service in log messages.
func (s *DecaySweeper) String() string {
	return s.name
}
