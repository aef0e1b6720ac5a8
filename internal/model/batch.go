package model

import "time"

// PageResult records the outcome of processing one page in a batch.
// Failures are isolated: a failed page never aborts other pages.
type PageResult struct {
	PageID  string `json:"page_id"`
	ScopeID string `json:"scope_id"`

	// Err is the error that aborted the page, if any.
	Err error `json:"-"`

	// ErrorMessage is Err as text for serialization.
	ErrorMessage string `json:"error,omitempty"`

	// Canceled is true when the page was discarded because the batch
	// context was canceled. Canceled pages are re-queued.
	Canceled bool `json:"canceled,omitempty"`

	// Requeued is true when the page was re-run from a stripped baseline.
	Requeued bool `json:"requeued,omitempty"`

	Links    []InjectedLink `json:"links"`
	Warnings []string       `json:"warnings,omitempty"`
	Elapsed  time.Duration  `json:"elapsed"`
}

// Succeeded reports whether the page completed injection and was saved.
func (r PageResult) Succeeded() bool {
	return r.Err == nil && !r.Canceled
}

// SetError records err on the result.
func (r *PageResult) SetError(err error) {
	r.Err = err
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}

// BatchResult is the outcome of one injection batch over one or more scopes.
type BatchResult struct {
	ID        string              `json:"id"`
	StartedAt time.Time           `json:"started_at"`
	Elapsed   time.Duration       `json:"elapsed"`
	Pages     []PageResult        `json:"pages"`
	Reports   []*ValidationReport `json:"reports"`

	// Requeue lists page ids that must be re-run from a stripped baseline.
	Requeue []string `json:"requeue,omitempty"`
}

// FailedPages returns the ids of pages that did not complete.
func (b *BatchResult) FailedPages() []string {
	var ids []string
	for _, p := range b.Pages {
		if !p.Succeeded() {
			ids = append(ids, p.PageID)
		}
	}
	return ids
}

// Report returns the validation report of a scope, or nil.
func (b *BatchResult) Report(scopeID string) *ValidationReport {
	for _, r := range b.Reports {
		if r.ScopeID == scopeID {
			return r
		}
	}
	return nil
}
