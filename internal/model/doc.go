// Package model defines the core data structures used throughout linkweaver.
//
// This package contains the following main types:
//   - Page: A content page with its scope, role and primary keyword
//   - PlannedLink: A link decided by the external planner
//   - InjectedLink: A planned link after the injector has touched it
//   - ValidationReport: The per-scope outcome of the link-graph rules
//   - BatchResult: Per-page results of one injection batch
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The inject, fallback, validate, database and report packages
// all exchange these types, so centralizing them prevents import cycles.
//
// The models are serializable to JSON for report output and database storage.
package model
