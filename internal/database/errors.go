package database

import "errors"

var (
	// ErrPageNotFound is returned when a page id is not in the store.
	ErrPageNotFound = errors.New("page not found")

	// ErrContentNotFound is returned when a page has no stored content or
	// baseline. Callers importing new pages check for it with errors.Is to
	// decide whether the page still needs its initial HTML.
	ErrContentNotFound = errors.New("content not found")
)
