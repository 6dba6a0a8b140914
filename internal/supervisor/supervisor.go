// Package supervisor wraps a single generation call with two independent
// liveness guards, both of which act by requesting an abort: an inactivity
// watchdog that fires when no token arrives within a fixed window, and a
// repetition guard that trips on degenerate looping output. Either trip, or
// any other generation failure, may be retried from scratch with a fresh
// watchdog and detector.
package supervisor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/coordinator"
	"inferd/pkg/types"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultInactivityTimeout = 45 * time.Second
	defaultMaxAttempts       = 2
)

// Generator is the slice of the coordinator the supervisor drives.
type Generator interface {
	Generate(ctx context.Context, taskID string, req types.GenerateRequest, cb coordinator.Callbacks) (coordinator.Result, error)
	Abort(taskID string)
}

// Config tunes the supervisor.
type Config struct {
	// InactivityTimeout is the watchdog window; the timer resets on every
	// token, not just at generation start.
	InactivityTimeout time.Duration
	// MaxAttempts bounds total attempts for one request, including the
	// first. Retries replay the identical request; user aborts are never
	// retried.
	MaxAttempts int
	// Detector tunes the repetition guard.
	Detector DetectorConfig
	Logger   zerolog.Logger
}

// Supervisor supervises generations issued through a Generator.
type Supervisor struct {
	gen Generator
	cfg Config
	log zerolog.Logger
}

// New constructs a Supervisor, applying defaults for unset config fields.
func New(gen Generator, cfg Config) *Supervisor {
	if cfg.InactivityTimeout <= 0 {
		cfg.InactivityTimeout = defaultInactivityTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	cfg.Detector = cfg.Detector.withDefaults()
	return &Supervisor{gen: gen, cfg: cfg, log: cfg.Logger}
}

// trip reasons recorded by the guards. Zero means no trip.
const (
	tripNone int32 = iota
	tripTimeout
	tripRepetition
)

// Generate runs one supervised generation, retrying per config on timeout,
// repetition, or generation failure. Fail-fast rejections (busy, not
// initialized, invalid request) and user aborts are returned as-is.
func (s *Supervisor) Generate(ctx context.Context, taskID string, req types.GenerateRequest, cb coordinator.Callbacks) (coordinator.Result, error) {
	var res coordinator.Result
	var err error
	for attempt := 1; ; attempt++ {
		res, err = s.generateOnce(ctx, taskID, req, cb)
		if err == nil || !retryable(err) || attempt >= s.cfg.MaxAttempts || ctx.Err() != nil {
			return res, err
		}
		s.log.Info().Str("task_id", taskID).Int("attempt", attempt).Err(err).Msg("retrying generation")
		retriesTotal.Inc()
	}
}

// generateOnce wraps one Generate call with a fresh watchdog and detector.
func (s *Supervisor) generateOnce(ctx context.Context, taskID string, req types.GenerateRequest, cb coordinator.Callbacks) (coordinator.Result, error) {
	var tripped atomic.Int32
	det := newDetector(s.cfg.Detector)

	// The watchdog covers the no-first-token case too: it is armed before
	// the generation is submitted and re-armed on every token.
	watchdog := time.AfterFunc(s.cfg.InactivityTimeout, func() {
		if tripped.CompareAndSwap(tripNone, tripTimeout) {
			s.log.Warn().Str("task_id", taskID).Dur("window", s.cfg.InactivityTimeout).Msg("watchdog fired")
			guardTripsTotal.WithLabelValues("timeout").Inc()
			s.gen.Abort(taskID)
		}
	})
	defer watchdog.Stop()

	wrapped := cb
	wrapped.OnToken = func(tok, acc string) {
		watchdog.Reset(s.cfg.InactivityTimeout)
		if pat, ok := det.Check(acc); ok {
			if tripped.CompareAndSwap(tripNone, tripRepetition) {
				s.log.Warn().Str("task_id", taskID).Str("pattern", pat).Msg("repetition guard tripped")
				guardTripsTotal.WithLabelValues("repetition").Inc()
				s.gen.Abort(taskID)
			}
		}
		if cb.OnToken != nil {
			cb.OnToken(tok, acc)
		}
	}

	res, err := s.gen.Generate(ctx, taskID, req, wrapped)
	watchdog.Stop()

	switch tripped.Load() {
	case tripTimeout:
		return res, ErrTimeout(taskID, s.cfg.InactivityTimeout)
	case tripRepetition:
		return res, ErrRepetition(taskID)
	}
	return res, err
}

// retryable reports whether a failed attempt may be replayed. Aborts are
// user intent and fail-fast rejections would fail identically again.
func retryable(err error) bool {
	return IsTimeout(err) || IsRepetition(err) || coordinator.IsGeneration(err)
}
