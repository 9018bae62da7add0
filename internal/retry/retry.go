// Package retry runs fallible object store calls under a bounded exponential
// backoff policy.
//
// With the default configuration an operation is attempted at most five times.
// Failures of attempts one to four are logged and followed by a delay of 1s,
// 2s, 4s and 8s. The fifth attempt is final: its result is handed back to the
// caller as is and is not logged here.
//
// Every error is treated as retryable unless a classifier is installed with
// WithClassifier.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/keyrepo/internal/logging"
	goretry "github.com/sethvargo/go-retry"
)

const (
	DefaultMaxAttempts  = 5
	DefaultInitialDelay = time.Second
)

// Config holds the attempt budget and the first backoff delay. Each following
// delay doubles the previous one.
type Config struct {
	MaxAttempts  int
	InitialDelay time.Duration
}

// DefaultConfig returns 5 attempts starting at a one second delay.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  DefaultMaxAttempts,
		InitialDelay: DefaultInitialDelay,
	}
}

// Classifier reports whether err is worth another attempt.
type Classifier func(err error) bool

// SleepFunc waits for d or until ctx is done, whichever comes first.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Always is the default classifier: every failure is retried.
func Always(error) bool { return true }

// Except returns a classifier that refuses to retry errors matching any of
// the given targets (errors.Is) and retries everything else.
func Except(targets ...error) Classifier {
	return func(err error) bool {
		for _, t := range targets {
			if errors.Is(err, t) {
				return false
			}
		}
		return true
	}
}

// Option customises an Executor.
type Option func(*Executor)

// WithClassifier installs the function deciding which failures are retried.
func WithClassifier(fn Classifier) Option {
	return func(e *Executor) {
		if fn != nil {
			e.isRetryable = fn
		}
	}
}

// WithSleep replaces the delay primitive. Tests use it to record delays
// instead of waiting them out.
func WithSleep(fn SleepFunc) Option {
	return func(e *Executor) {
		if fn != nil {
			e.sleep = fn
		}
	}
}

// Executor is safe for concurrent use; every Run gets its own backoff state.
type Executor struct {
	cfg         Config
	logger      logging.Logger
	isRetryable Classifier
	sleep       SleepFunc
}

// New builds an Executor. Non-positive config values fall back to defaults and
// a nil logger discards output.
func New(cfg Config, logger logging.Logger, opts ...Option) *Executor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultInitialDelay
	}
	if logger == nil {
		logger = logging.Nop()
	}

	e := &Executor{
		cfg:         cfg,
		logger:      logger,
		isRetryable: Always,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the effective configuration.
func (e *Executor) Config() Config {
	return e.cfg
}

func (e *Executor) backoff() goretry.Backoff {
	return goretry.WithMaxRetries(uint64(e.cfg.MaxAttempts-1), goretry.NewExponential(e.cfg.InitialDelay))
}

// Run executes op until it succeeds, returns a non-retryable error or the
// attempt budget is spent. The error of the last attempt is returned unwrapped.
// ctx is only consulted while waiting between attempts; a cancelled wait
// returns an error wrapping both ctx.Err() and the last failure.
func (e *Executor) Run(ctx context.Context, op func(ctx context.Context) error) error {
	b := e.backoff()

	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !e.isRetryable(err) {
			return err
		}

		delay, stop := b.Next()
		if stop {
			return err
		}

		e.logger.Error(ctx, "retry failed",
			"attempt", attempt,
			"max_attempts", e.cfg.MaxAttempts,
			"error", err,
			"delay_seconds", delay.Seconds(),
		)

		if serr := e.sleep(ctx, delay); serr != nil {
			return fmt.Errorf("retry cancelled after attempt %d: %w (last error: %w)", attempt, serr, err)
		}
	}
}

// Do is Run for operations that produce a value.
func Do[T any](ctx context.Context, e *Executor, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := e.Run(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
