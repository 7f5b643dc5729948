package writer

import (
	"context"
	"errors"
	"net/http"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RetryPolicy bounds retries of transient BigQuery failures. Backoff doubles
// from InitialBackoff up to MaximumBackoff.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = 250 * time.Millisecond
	}
	if p.MaximumBackoff <= 0 {
		p.MaximumBackoff = 2 * time.Second
	}
	p.MaximumBackoff = max(p.MaximumBackoff, p.InitialBackoff)
	return p
}

func (p RetryPolicy) do(ctx context.Context, fn func(context.Context) error) error {
	wait := p.InitialBackoff
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx)
		if err == nil || attempt >= p.MaxAttempts || !retryable(err) {
			return err
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		wait = min(wait*2, p.MaximumBackoff)
	}
}

// retryable reports whether every failure inside err is transient. Insert
// errors nest per-row errors, so a single permanent row error makes the whole
// batch permanent.
func retryable(err error) bool {
	if err == nil {
		return false
	}

	var multi cbigquery.MultiError
	if errors.As(err, &multi) {
		return allRetryable(len(multi), func(i int) error { return multi[i] })
	}
	var put cbigquery.PutMultiError
	if errors.As(err, &put) {
		return allRetryable(len(put), func(i int) error { return put[i].Errors })
	}
	var rowErr *cbigquery.RowInsertionError
	if errors.As(err, &rowErr) {
		return allRetryable(len(rowErr.Errors), func(i int) error { return rowErr.Errors[i] })
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusRequestTimeout, http.StatusTooManyRequests,
			http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		switch st.Code() {
		case codes.Aborted, codes.DeadlineExceeded, codes.Internal, codes.ResourceExhausted, codes.Unavailable:
			return true
		}
	}
	return false
}

func allRetryable(n int, at func(int) error) bool {
	if n == 0 {
		return false
	}
	for i := range n {
		if !retryable(at(i)) {
			return false
		}
	}
	return true
}
