// Package validate checks the link graph of a scope after injection.
//
// The Validator runs once per scope, after every page of the batch has
// settled. It evaluates eight rules per placed link: budget, silo integrity,
// no self-links, no duplicate targets, density, anchor diversity, the
// first-link rule and the direction rule. The last two apply to topic
// clusters only and are skipped for the onboarding scope.
//
// A link is verified when no rule fails. Otherwise it stays injected and
// carries the names of every failing rule. A budget shortfall is a warning
// and never blocks verification. Flagged links are reported as they are.
//
// Design decision: anchor diversity counts are passed in by the caller.
// The limit is project-wide, so the batch computes the counts once from the
// content store after all scopes have been injected.
package validate
