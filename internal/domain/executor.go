package domain

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy bounds the retries of a single logical write.
type RetryPolicy struct {
	// MaxAttempts counts the first try. One disables retries.
	MaxAttempts uint

	InitialInterval time.Duration
	MaxInterval     time.Duration

	// MaxElapsed caps the total time spent on one write, sleeps included.
	MaxElapsed time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     5,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		MaxElapsed:      30 * time.Second,
	}
}

func (p RetryPolicy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	return b
}

// Executor issues transformed rows to the store, one row set per event, and
// retries failures the store classifies as transient.
type Executor struct {
	writer RowWriter
	policy RetryPolicy
	logger *slog.Logger
}

// NewExecutor creates an Executor writing through writer.
func NewExecutor(writer RowWriter, policy RetryPolicy, logger *slog.Logger) *Executor {
	if policy.MaxAttempts == 0 {
		policy.MaxAttempts = 1
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{
		writer: writer,
		policy: policy,
		logger: logger,
	}
}

// WriteProfile upserts a profile row.
func (e *Executor) WriteProfile(ctx context.Context, row *ProfileRow) error {
	return e.do(ctx, "upsert_profile", func(ctx context.Context) error {
		return e.writer.UpsertProfile(ctx, row)
	})
}

// WritePost inserts a post row.
func (e *Executor) WritePost(ctx context.Context, row *PostRow) error {
	return e.do(ctx, "insert_post", func(ctx context.Context) error {
		return e.writer.InsertPost(ctx, row)
	})
}

// WriteLike issues the audit append and the counter increment. The two
// writes are independent and not atomic: both are always attempted, and if
// either fails the result is a *PartialWriteError naming the failed half.
func (e *Executor) WriteLike(ctx context.Context, rows *LikeRows) error {
	auditErr := e.do(ctx, "append_like", func(ctx context.Context) error {
		return e.writer.AppendLike(ctx, &rows.Audit)
	})
	counterErr := e.do(ctx, "increment_post_likes", func(ctx context.Context) error {
		return e.writer.IncrementPostLikes(ctx, rows.CounterSubject)
	})
	if auditErr == nil && counterErr == nil {
		return nil
	}
	return &PartialWriteError{
		Subject:    rows.CounterSubject,
		AuditErr:   auditErr,
		CounterErr: counterErr,
	}
}

func (e *Executor) do(ctx context.Context, op string, write func(context.Context) error) error {
	opts := []backoff.RetryOption{
		backoff.WithBackOff(e.policy.backOff()),
		backoff.WithMaxTries(e.policy.MaxAttempts),
		backoff.WithNotify(func(err error, wait time.Duration) {
			writeRetries.WithLabelValues(op).Inc()
			e.logger.Warn("write failed, retrying", "op", op, "wait", wait, "error", err)
		}),
	}
	if e.policy.MaxElapsed > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(e.policy.MaxElapsed))
	}

	start := time.Now()
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := write(ctx)
		if err != nil && !IsRetryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, opts...)
	writeDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		writeFailures.WithLabelValues(op).Inc()
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
