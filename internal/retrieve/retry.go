package retrieve

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/danieljhkim/voltron/internal/metrics"
)

// Default retry settings.
const (
	DefaultAttempts   = 3
	DefaultBackoff    = 200 * time.Millisecond
	DefaultMaxBackoff = 5 * time.Second
)

// RetryOptions configures Retrying.
type RetryOptions struct {
	// Attempts is the total number of tries, including the first
	Attempts int

	// Backoff is the delay before the first retry; it doubles per retry
	Backoff time.Duration

	// MaxBackoff caps the delay between retries
	MaxBackoff time.Duration
}

// Retrying wraps a Retriever with bounded retry and exponential backoff for
// transient failures. Not-found, permanent and context errors return
// immediately.
type Retrying struct {
	next    Retriever
	opts    RetryOptions
	logger  logrus.FieldLogger
	metrics *metrics.Metrics

	// sleep waits for d or until ctx is done; replaced in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetrying wraps next. Zero option values fall back to the defaults.
func NewRetrying(next Retriever, opts RetryOptions, logger logrus.FieldLogger, m *metrics.Metrics) *Retrying {
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultAttempts
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = DefaultMaxBackoff
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Retrying{
		next:    next,
		opts:    opts,
		logger:  logger,
		metrics: m,
		sleep:   sleepContext,
	}
}

// Retrieve calls the wrapped retriever until it succeeds, fails
// permanently, or the attempt budget is spent. Only opening the stream is
// retried; use Fetch to cover reading it as well.
func (r *Retrying) Retrieve(ctx context.Context, ref string) (io.ReadCloser, error) {
	var rc io.ReadCloser
	err := r.do(ctx, ref, func() error {
		var err error
		rc, err = r.next.Retrieve(ctx, ref)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rc, nil
}

// Fetch runs fn over the stream of ref. A transient failure while opening
// or reading the stream starts the download over with a fresh stream.
func (r *Retrying) Fetch(ctx context.Context, ref string, fn func(io.Reader) error) error {
	return r.do(ctx, ref, func() error {
		return fetchOnce(ctx, r.next, ref, fn)
	})
}

func (r *Retrying) do(ctx context.Context, ref string, op func() error) error {
	delay := r.opts.Backoff
	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		if !retryable(ctx, err) || attempt >= r.opts.Attempts {
			return err
		}

		r.logger.WithFields(logrus.Fields{
			"ref":     ref,
			"attempt": attempt,
			"delay":   delay,
		}).WithError(err).Warn("retrieval failed, retrying")
		r.metrics.FetchRetried()

		if err := r.sleep(ctx, delay); err != nil {
			return err
		}
		delay *= 2
		if delay > r.opts.MaxBackoff {
			delay = r.opts.MaxBackoff
		}
	}
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !IsPermanent(err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
