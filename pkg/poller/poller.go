// Package poller re-queries a status on an adaptive schedule until it
// reaches a terminal value, an attempt bound, or cancellation.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrMaxAttempts indicates the status did not become terminal within the attempt bound.
var ErrMaxAttempts = errors.New("polling attempts exhausted")

// Config controls the schedule: FastInterval for the first FastPolls
// attempts, SlowInterval afterwards, at most MaxAttempts fetches. A
// negative FastPolls (see NoFastPhase) polls at SlowInterval throughout.
type Config struct {
	FastInterval time.Duration
	SlowInterval time.Duration
	FastPolls    int
	MaxAttempts  int
}

// DefaultConfig returns 3s for the first 10 polls, then 5s, capped at 60 attempts.
func DefaultConfig() Config {
	return Config{
		FastInterval: 3 * time.Second,
		SlowInterval: 5 * time.Second,
		FastPolls:    10,
		MaxAttempts:  60,
	}
}

// NoFastPhase as Config.FastPolls skips the fast phase.
const NoFastPhase = -1

// Scheduler is the state of one polling run.
type Scheduler struct {
	cfg      Config
	attempts int
}

// New creates a Scheduler. Zero fields of cfg take their DefaultConfig value.
func New(cfg Config) *Scheduler {
	def := DefaultConfig()
	if cfg.FastInterval <= 0 {
		cfg.FastInterval = def.FastInterval
	}
	if cfg.SlowInterval <= 0 {
		cfg.SlowInterval = def.SlowInterval
	}
	switch {
	case cfg.FastPolls == 0:
		cfg.FastPolls = def.FastPolls
	case cfg.FastPolls < 0:
		cfg.FastPolls = 0
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	return &Scheduler{cfg: cfg}
}

// Attempts returns the number of fetches issued so far.
func (s *Scheduler) Attempts() int {
	return s.attempts
}

// Interval returns the delay before the next fetch.
func (s *Scheduler) Interval() time.Duration {
	if s.attempts < s.cfg.FastPolls {
		return s.cfg.FastInterval
	}
	return s.cfg.SlowInterval
}

// Run fetches immediately, then after each Interval, until done reports
// true for a fetched value. Fetches never overlap. A fetch error stops the
// run and is returned with the last value.
func Run[T any](ctx context.Context, s *Scheduler, fetch func(context.Context) (T, error), done func(T) bool) (T, error) {
	var last T

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-timer.C:
		}

		v, err := fetch(ctx)
		s.attempts++
		if err != nil {
			return last, fmt.Errorf("poll attempt %d: %w", s.attempts, err)
		}
		last = v

		if done(v) {
			return v, nil
		}
		if s.attempts >= s.cfg.MaxAttempts {
			return last, fmt.Errorf("%w after %d attempts", ErrMaxAttempts, s.attempts)
		}

		timer.Reset(s.Interval())
	}
}
