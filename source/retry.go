package source

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

type RetryOptions struct {
	MaxTries        uint
	InitialInterval time.Duration
	Multiplier      float64
	MaxInterval     time.Duration
	Logger          *slog.Logger
}

func NewDefaultRetryOptions() *RetryOptions {
	return &RetryOptions{
		MaxTries:        3,
		InitialInterval: 4 * time.Second,
		Multiplier:      2,
		MaxInterval:     10 * time.Second,
	}
}

// RetryFetcher retries the wrapped fetcher with exponential backoff, but only while it reports
// ErrRateLimited. Every other failure is returned on the first attempt.
type RetryFetcher struct {
	next   Fetcher
	opt    *RetryOptions
	logger *slog.Logger
}

func NewRetryFetcher(next Fetcher, opt *RetryOptions) *RetryFetcher {
	if opt == nil {
		opt = NewDefaultRetryOptions()
	}
	logger := opt.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryFetcher{
		next:   next,
		opt:    opt,
		logger: logger.With(slog.String("component", "retry_fetcher")),
	}
}

func (r *RetryFetcher) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.opt.InitialInterval
	b.Multiplier = r.opt.Multiplier
	b.MaxInterval = r.opt.MaxInterval
	b.RandomizationFactor = 0
	return b
}

func (r *RetryFetcher) Fetch(ctx context.Context, req Request) (*Quote, error) {
	var attempt int
	op := func() (*Quote, error) {
		attempt++
		q, err := r.next.Fetch(ctx, req)
		if err == nil {
			return q, nil
		}
		if errors.Is(err, ErrRateLimited) {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}
	notify := func(err error, wait time.Duration) {
		r.logger.Warn("rate limited, retrying",
			slog.String("symbol", req.Symbol),
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
		)
	}

	maxTries := r.opt.MaxTries
	if maxTries == 0 {
		maxTries = 1
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(r.backOff()),
		backoff.WithMaxTries(maxTries),
		backoff.WithNotify(notify),
	)
}
