// Package errors provides standardized error handling patterns for MuseStreams components.
//
// # Overview
//
// The errors package implements a three-class error classification system designed for
// telemetry ingestion pipelines: Transient (temporary, retryable), Invalid (bad input,
// non-retryable), and Fatal (unrecoverable, stop processing).
//
// This classification enables intelligent error handling strategies throughout
// MuseStreams, allowing components to make informed decisions about retries, graceful
// degradation, and failure recovery without hardcoded error string matching.
//
// # Error Classification
//
// Errors are automatically classified based on their type or content:
//
//   - Transient: Network timeouts, connection issues, temporary unavailability (retry recommended)
//   - Invalid: Malformed input, validation failures, bad configuration (do not retry)
//   - Fatal: Resource exhaustion, data corruption, unrecoverable states (stop processing)
//
// The classification system integrates seamlessly with Go's standard error handling
// patterns, supporting errors.Is(), errors.As(), and error wrapping chains.
//
// # Quick Start
//
// Use standard error variables for common conditions:
//
//	if !connected {
//	    return errors.ErrNoConnection
//	}
//
// Wrap errors with context for debugging:
//
//	// Wrap third-party errors with component context
//	if err := dec.Decode(raw, &cfg); err != nil {
//	    return errors.WrapInvalid(err, "ConfigStore", "SetIfAbsent", "decode device config")
//	}
//
// Check classification for retry logic:
//
//	if err := operation(); err != nil {
//	    if errors.IsTransient(err) {
//	        config := errors.DefaultRetryConfig()
//	        if config.ShouldRetry(err, attempt) {
//	            time.Sleep(config.BackoffDelay(attempt))
//	            // retry operation
//	        }
//	    }
//	}
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// This format enables consistent log parsing, debugging, and operational monitoring
// across the platform. The Wrap family of functions automatically applies this
// pattern while preserving error classification through the chain.
//
// Three wrapper functions provide classification-aware wrapping:
//
//	errors.WrapTransient(err, "Component", "Method", "action")  // For retryable errors
//	errors.WrapInvalid(err, "Component", "Method", "action")    // For validation errors
//	errors.WrapFatal(err, "Component", "Method", "action")      // For unrecoverable errors
//
// The generic Wrap() function preserves the original error's classification:
//
//	errors.Wrap(err, "Component", "Method", "action")  // Preserves original class
//
// # Standard Error Variables
//
// The package provides pre-defined error variables for common conditions, organized
// by category:
//
//   - Component lifecycle: ErrAlreadyStarted, ErrNotStarted, ErrAlreadyStopped
//   - Connection issues: ErrConnectionLost, ErrConnectionTimeout, ErrNoConnection
//   - Data processing: ErrInvalidData, ErrParsingFailed, ErrFrameTooLarge
//   - Resource constraints: ErrResourceExhausted, ErrStorageFull
//
// Use these variables instead of creating custom error messages for consistency.
//
// # Architecture Integration
//
// The errors package integrates with other MuseStreams components:
//
//   - demux: config decode failures are WrapInvalid, scoped to one source
//   - input: socket binding and framing problems are WrapTransient/WrapInvalid
//   - natsclient: connection management uses the standard connection error variables
//   - retry: the retry package uses error classification for retry decisions
//
// # Thread Safety
//
// All classification and wrapping operations are thread-safe. Error variables are
// immutable constants safe for concurrent access. The ClassifiedError type is safe
// to share across goroutines after creation.
package errors
