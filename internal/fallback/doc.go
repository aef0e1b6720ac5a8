// Package fallback places links that the rule-based injector could not
// place, by having an external service rewrite one paragraph.
//
// Only one paragraph is ever sent to the service and the rest of the
// document is never touched. The response is accepted only if it is a
// single well-formed paragraph that keeps every existing link, adds exactly
// one anchor to the target with the requested text, changes at most two
// sentences and still satisfies the density limits.
//
// Calls from all pages share one semaphore so that the service sees a
// bounded number of concurrent requests. Each call also gets its own
// timeout; hitting it is reported as ErrRewriteTimeout, a recoverable
// failure. Cancellation of the caller's context is returned unchanged.
package fallback
