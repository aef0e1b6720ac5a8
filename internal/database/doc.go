// Package database provides the SQLite content store for linkweaver.
//
// The Store holds:
//   - Pages with their scope, role and primary keyword
//   - The current HTML of each page, with a SHA3-256 fingerprint
//   - An immutable baseline: the HTML as it was first stored
//   - Link records in planner order with their lifecycle state
//   - Validation reports for historical comparison
//
// Design decision: We use SQLite (via modernc.org/sqlite) because the store
// is a single local file, the CGO-free driver cross-compiles cleanly, and
// WAL mode lets `linkweaver validate` read while a batch is writing.
//
// Link records are replaced per source page instead of updated row by row.
// A page's links are always written together after the page settles, so
// replacing them keeps planner order intact without tracking row ids.
package database
