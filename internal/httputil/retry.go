// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the retrying HTTP call used by the embedding
// service client.
package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// RetryBaseDelay is the first backoff step for retryable responses. Tests
// override it to avoid real sleeps.
var RetryBaseDelay = 500 * time.Millisecond

// MaxRetryDelay caps both the exponential backoff and a server-supplied
// Retry-After.
var MaxRetryDelay = 30 * time.Second

const defaultMaxRetries = 3

// Retryable reports whether a response status is worth retrying: 429 and
// any 5xx except 501 Not Implemented.
func Retryable(status int) bool {
	return status == http.StatusTooManyRequests ||
		(status >= 500 && status != http.StatusNotImplemented)
}

// DoWithRetry executes req and retries retryable statuses with exponential
// backoff starting at RetryBaseDelay. A Retry-After header given in
// seconds replaces the computed delay for that attempt.
//
// Request bodies are replayed through req.GetBody, which
// http.NewRequestWithContext sets for bytes and strings readers. When
// maxRetries is 0 the default (3) is used. If ctx is cancelled during a
// backoff wait the function returns ctx.Err(). After exhausting retries
// the last response is returned unread so the caller can inspect it.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	for attempt := 0; ; attempt++ {
		r := req.Clone(ctx)
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("replaying request body: %w", err)
			}
			r.Body = body
		}

		resp, err := client.Do(r)
		if err != nil {
			return nil, err
		}
		if !Retryable(resp.StatusCode) || attempt >= maxRetries {
			return resp, nil
		}

		delay := backoff(attempt, resp.Header.Get("Retry-After"))
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// backoff returns RetryBaseDelay doubled per attempt, or the Retry-After
// seconds when present, capped at MaxRetryDelay.
func backoff(attempt int, retryAfter string) time.Duration {
	d := RetryBaseDelay << attempt
	if secs, err := strconv.Atoi(retryAfter); err == nil && secs >= 0 {
		d = time.Duration(secs) * time.Second
	}
	if d > MaxRetryDelay || d < 0 {
		d = MaxRetryDelay
	}
	return d
}
