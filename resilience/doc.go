// Package resilience wraps calls to inference backends and admission to the
// gateway:
//
//   - Retry re-runs a failed backend call with exponential backoff while the
//     error is retryable
//   - CircuitBreaker fails fast once a backend keeps failing
//   - RateLimiter is a token bucket used to shed excess HTTP admissions
//
// Composition used by the whisper backend:
//
//	err := resilience.RetryFunc(ctx, cfg.Retry, func() error {
//	    return cb.Execute(func() error { return post(ctx) })
//	})
package resilience
