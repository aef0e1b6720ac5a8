// Package paragraph provides the paragraph model used for link injection.
//
// A Document is an immutable, ordered sequence of segments produced from an
// HTML document. Paragraph segments (top-level <p> elements that are not
// nested inside list items, headings or anchors) are addressable by a
// 1-based index; every other segment is kept as raw bytes.
//
// Design decision: We use the golang.org/x/net/html tokenizer rather than
// html.Parse because:
//  1. The tokenizer exposes the raw bytes of every token, so Render can
//     reproduce non-paragraph structure byte-for-byte
//  2. html.Parse normalizes the tree (implied <html>, <body>, closing tags),
//     which would rewrite content we are not allowed to touch
//  3. The tokenizer tolerates malformed input and never fails on it
//
// Transformations never mutate a Document. Paragraph.Wrap and
// Document.WithParagraph return new values, which keeps one page's sequential
// injection easy to reason about and lets distinct pages run in parallel
// without locks.
package paragraph
