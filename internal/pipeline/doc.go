// Package pipeline runs link injection over a batch of pages.
//
// Each source page is a Job that flows through a Pipeline of Steps:
// load_content, strip_baseline (re-queued pages only), inject and
// save_content. A BatchProcessor runs the page pipelines concurrently on an
// errgroup bounded by the configured concurrency. One page's links always
// run sequentially inside its own job.
//
// Design decision: validation waits behind a barrier. The BatchProcessor
// only validates after every page of the batch has settled, because the
// duplicate-target, diversity and first-link rules read the final state of
// the whole scope. A page that fails is recorded in its PageResult and never
// aborts its siblings. A page caught by cancellation is discarded and listed
// for re-queueing; its re-run starts from a stripped baseline.
package pipeline
