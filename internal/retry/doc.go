// Package retry provides a bounded retry combinator.
//
// Do runs an operation up to Policy.MaxAttempts times. Between attempts it
// waits Policy.Backoff(n) where n is the number of attempts made so far, so
// Exponential(time.Second) yields the classic 2s, 4s, 8s schedule. Errors
// that Policy.Retryable rejects end the loop immediately. Context
// cancellation interrupts both the operation and the wait.
//
// Page fetches and image downloads share this combinator so that the retry
// ceiling and backoff schedule are configured in exactly one place.
package retry
