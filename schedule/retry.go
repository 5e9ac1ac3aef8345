package schedule

import (
	"context"
	"math/rand"
	"time"

	"market-scanner/models"
	"market-scanner/session"
	"market-scanner/utils"
)

// AttemptFunc is one scrape attempt executed with a lent session.
type AttemptFunc func(ctx context.Context, sess *session.Session) ([]*models.RawRecord, error)

// Retrier wraps a fallible scrape with bounded retries and linear backoff
// with jitter. When an attempt fails for a session-burning reason (a
// BlockedError), the next attempt runs on a fresh session profile; a
// burned session is never reused.
type Retrier struct {
	log      *utils.Logger
	sessions *session.Manager

	maxAttempts int
	baseDelays  map[string]time.Duration
	defaultBase time.Duration
	jitter      time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

// RetrierConfig carries the retry policy. BaseDelays maps source IDs to
// their backoff base; HTML sources that trip anti-bot defenses get a
// larger base than JSON APIs.
type RetrierConfig struct {
	MaxAttempts int
	DefaultBase time.Duration
	BaseDelays  map[string]time.Duration
	Jitter      time.Duration
}

// NewRetrier builds a Retrier over the given session manager.
func NewRetrier(log *utils.Logger, sessions *session.Manager, cfg RetrierConfig) *Retrier {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.DefaultBase <= 0 {
		cfg.DefaultBase = 2 * time.Second
	}
	if cfg.Jitter <= 0 {
		cfg.Jitter = 500 * time.Millisecond
	}
	return &Retrier{
		log:         log,
		sessions:    sessions,
		maxAttempts: cfg.MaxAttempts,
		baseDelays:  cfg.BaseDelays,
		defaultBase: cfg.DefaultBase,
		jitter:      cfg.Jitter,
		sleep:       sleepCtx,
	}
}

// Run drives attempts for one job until success, a non-retryable error, or
// retry exhaustion. Non-retryable failures (malformed jobs) fail
// immediately without consuming an attempt.
func (r *Retrier) Run(ctx context.Context, job models.Job, domain string, fn AttemptFunc) ([]*models.RawRecord, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}

	base := r.defaultBase
	if d, ok := r.baseDelays[job.SourceID]; ok {
		base = d
	}

	sess, err := r.sessions.Acquire(ctx, domain)
	if err != nil {
		return nil, &models.TransportError{Op: "acquire session", Err: err}
	}

	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		records, err := fn(ctx, sess)
		if err == nil {
			r.sessions.Release(sess, session.OutcomeSuccess)
			return records, nil
		}
		lastErr = err

		if !models.Retryable(err) {
			// The session did its part; the input was hopeless.
			r.sessions.Release(sess, session.OutcomeSuccess)
			return nil, err
		}

		rotate := models.BurnsSession(err)
		r.log.Warn("[retry] %s/%s attempt %d/%d failed: %v (rotate=%v)",
			job.AreaName, job.SourceID, attempt, r.maxAttempts, err, rotate)

		if rotate {
			r.sessions.Release(sess, session.OutcomeFailure)
			sess = nil
		}

		if attempt == r.maxAttempts {
			break
		}

		delay := time.Duration(attempt)*base + time.Duration(rand.Int63n(int64(r.jitter)))
		if err := r.sleep(ctx, delay); err != nil {
			r.releaseFailed(sess)
			return nil, err
		}

		if sess == nil {
			sess, err = r.sessions.Acquire(ctx, domain)
			if err != nil {
				return nil, &models.RetryExhaustedError{Attempts: attempt, Last: err}
			}
		}
	}

	r.releaseFailed(sess)
	return nil, &models.RetryExhaustedError{Attempts: r.maxAttempts, Last: lastErr}
}

func (r *Retrier) releaseFailed(sess *session.Session) {
	if sess != nil {
		r.sessions.Release(sess, session.OutcomeFailure)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
