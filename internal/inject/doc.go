// Package inject places planned internal links into page content.
//
// Each page is processed by Engine.Run: its links are taken from a Queue in
// planner order, tried first by the rule-based Injector and then, if that
// finds no admissible paragraph, by the fallback rewriter. Every step works
// on an immutable paragraph.Document and returns a new one, so a canceled
// page can simply be dropped without leaving partial edits behind.
//
// A link that cannot be placed is not an error. It is returned as flagged
// and unplaced with a reason, and the page continues with the next link.
package inject
