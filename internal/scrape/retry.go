package scrape

import (
	"errors"

	"github.com/placedir/refresh-cli/internal/resilience"
	"github.com/placedir/refresh-cli/pkg/firecrawl"
	"github.com/placedir/refresh-cli/pkg/jina"
)

// fetchRetryPolicy is the per-call retry applied inside a fetcher's
// circuit breaker: the breaker records the outcome of the whole retried
// call, not each attempt.
func fetchRetryPolicy(source string) resilience.Policy {
	p := resilience.DefaultPolicy()
	p.Classify = retryableFetch
	p.OnAttempt = resilience.LogAttempts(source)
	return p
}

// retryableFetch maps the fetch clients' typed status errors onto the
// transient-status table and falls back to the generic classification
// for network-level failures.
func retryableFetch(err error) bool {
	var jinaErr *jina.APIError
	if errors.As(err, &jinaErr) {
		return resilience.RetryableStatus(jinaErr.StatusCode)
	}
	var fcErr *firecrawl.APIError
	if errors.As(err, &fcErr) {
		return resilience.RetryableStatus(fcErr.StatusCode)
	}
	return resilience.Retryable(err)
}
