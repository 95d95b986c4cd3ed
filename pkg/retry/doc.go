// Package retry provides simple exponential backoff retry logic for transient failures.
//
// # Overview
//
// This package offers a minimal retry mechanism with exponential backoff. The
// inputs use it to tolerate transient socket-bind failures during startup and
// restart.
//
// # Usage
//
// Basic retry with defaults (3 attempts, 100ms-5s delay):
//
//	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
//	    return in.bindSocket()
//	})
//
// Custom configuration:
//
//	cfg := retry.Config{
//	    MaxAttempts:  5,
//	    InitialDelay: 200 * time.Millisecond,
//	    MaxDelay:     10 * time.Second,
//	    Multiplier:   2.0,
//	    AddJitter:    true,
//	}
//	err := retry.Do(ctx, cfg, operation)
//
// Wrap an error with NonRetryable to fail immediately instead of burning the
// remaining attempts; IsNonRetryable reports whether an error is so marked.
//
// # Design Philosophy
//
// This package is intentionally minimal:
//
//   - No circuit breakers (natsclient carries its own)
//   - No metrics collection (use instrumentation at call site)
//   - No complex error classification (caller decides what to retry)
//   - Just exponential backoff with jitter
//
// # Context Cancellation
//
// All retry operations respect context cancellation and will immediately stop retrying
// when the context is cancelled, either during operation execution or during backoff delay.
//
// # Thread Safety
//
// All functions are safe for concurrent use. The jitter mechanism uses a thread-safe
// random source to avoid contention.
package retry
