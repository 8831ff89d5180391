package scylla

import (
	"context"
	"errors"
	"fmt"

	"github.com/gocql/gocql"

	"github.com/blackmichael/bluesky-ingest/internal/domain"
)

// noRetry is the driver retry policy for every statement. Retries belong to
// domain.Executor, which backs off under the caller's context and knows
// whether a write is safe to repeat.
var noRetry = &gocql.SimpleRetryPolicy{NumRetries: 0}

// classify maps a driver error onto the domain error taxonomy. Failures where
// the write may already have been applied (timeouts after sending) are only
// retryable for idempotent statements.
func classify(err error, idempotent bool) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, gocql.ErrNoConnections) || errors.Is(err, gocql.ErrSessionClosed) {
		return domain.Transient(fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err))
	}

	var unavailable *gocql.RequestErrUnavailable
	if errors.As(err, &unavailable) || errors.Is(err, gocql.ErrUnavailable) || errors.Is(err, gocql.ErrNoStreams) {
		// The coordinator rejected the request before applying it.
		return domain.Transient(err)
	}

	var writeTimeout *gocql.RequestErrWriteTimeout
	var readTimeout *gocql.RequestErrReadTimeout
	ambiguous := errors.As(err, &writeTimeout) ||
		errors.As(err, &readTimeout) ||
		errors.Is(err, gocql.ErrTimeoutNoResponse) ||
		errors.Is(err, gocql.ErrTooManyTimeouts) ||
		errors.Is(err, gocql.ErrConnectionClosed) ||
		errors.Is(err, context.DeadlineExceeded)
	if ambiguous && idempotent {
		return domain.Transient(err)
	}

	return err
}
