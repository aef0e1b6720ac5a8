// Package density enforces link density limits within paragraphs.
//
// A paragraph may hold at most two links, and a new link in a paragraph that
// already has one must be at least fifty words away from it. Distances are
// counted in words between the end of one link and the start of the next.
//
// The Guard is seeded from the links already present in a page, consulted by
// both the rule-based injector and the fallback paragraph selection, and
// updated as soon as a placement is committed. Check re-applies the same
// limits to finished content during validation.
package density
