// Package plan loads planner output.
//
// A plan is a JSON document with the pages taking part in linking and the
// ordered list of links between them. Link order is significant: it is the
// order in which the injector processes the links of each source page.
//
// Design decision: documents are validated against an embedded JSON Schema
// before they are decoded. encoding/json silently ignores unknown fields
// and zero-fills missing ones, which would turn a misspelled
// "anchor_text" into an empty anchor instead of an error.
package plan
