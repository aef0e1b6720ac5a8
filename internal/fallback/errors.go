package fallback

import "errors"

// Fallback errors. Every one of them is recoverable: the engine records the
// link as flagged with the error text as reason and moves on.
var (
	// ErrRewriteTimeout is returned when a rewrite call exceeds its per-call
	// timeout.
	ErrRewriteTimeout = errors.New("rewrite timed out")

	// ErrMalformedResponse is returned when the rewritten paragraph is not a
	// single well-formed <p> element.
	ErrMalformedResponse = errors.New("malformed rewrite response")

	// ErrAnchorMismatch is returned when the response does not add exactly
	// one anchor to the target with the requested text, or drops an
	// existing anchor.
	ErrAnchorMismatch = errors.New("rewrite response anchor mismatch")

	// ErrTooManyChanges is returned when the response alters more sentences
	// than allowed.
	ErrTooManyChanges = errors.New("rewrite changed too many sentences")

	// ErrNoCandidateParagraph is returned when no paragraph can take another
	// link.
	ErrNoCandidateParagraph = errors.New("no candidate paragraph for fallback")

	// ErrDensityRejected is returned when the rewritten paragraph breaks the
	// density limits.
	ErrDensityRejected = errors.New("rewrite response violates link density")
)
