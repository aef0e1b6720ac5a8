package model

import "time"

// RuleName identifies one of the eight link-graph validation rules.
type RuleName string

const (
	// RuleBudget requires 3-5 outbound links per page. Below the minimum
	// is a warning only; above the maximum fails the excess links.
	RuleBudget RuleName = "budget"

	// RuleSiloIntegrity requires the target page to share the source scope.
	RuleSiloIntegrity RuleName = "silo_integrity"

	// RuleNoSelfLink forbids a page linking to itself.
	RuleNoSelfLink RuleName = "no_self_link"

	// RuleNoDuplicateTarget forbids two links from one page to one target.
	RuleNoDuplicateTarget RuleName = "no_duplicate_target"

	// RuleDensity re-checks paragraph density in the final content.
	RuleDensity RuleName = "density"

	// RuleAnchorDiversity limits how often an (anchor, target) pair recurs
	// across the project.
	RuleAnchorDiversity RuleName = "anchor_diversity"

	// RuleFirstLink requires the first anchor in a cluster child page to
	// target its parent.
	RuleFirstLink RuleName = "first_link_rule"

	// RuleDirection restricts which roles may link to which inside a cluster.
	RuleDirection RuleName = "direction_rule"
)

// AllRules returns every rule in evaluation order.
func AllRules() []RuleName {
	return []RuleName{
		RuleBudget,
		RuleSiloIntegrity,
		RuleNoSelfLink,
		RuleNoDuplicateTarget,
		RuleDensity,
		RuleAnchorDiversity,
		RuleFirstLink,
		RuleDirection,
	}
}

// RuleOutcome is the result of evaluating one rule for one link.
type RuleOutcome struct {
	Rule RuleName `json:"rule"`

	// Passed is false when the rule is violated. A warning outcome keeps
	// Passed true so that it never blocks verification.
	Passed bool `json:"passed"`

	// Warning marks a non-blocking note (for example, a budget shortfall).
	Warning bool `json:"warning,omitempty"`

	// Skipped is set when the rule does not apply, such as cluster rules in
	// the onboarding scope.
	Skipped bool `json:"skipped,omitempty"`

	// Detail is a human-readable explanation.
	Detail string `json:"detail,omitempty"`
}

// LinkResult is the validation outcome for a single link.
type LinkResult struct {
	Link        InjectedLink  `json:"link"`
	Outcomes    []RuleOutcome `json:"outcomes"`
	FailedRules []RuleName    `json:"failed_rules,omitempty"`
	Warnings    []string      `json:"warnings,omitempty"`
	Status      Status        `json:"status"`
}

// PageSummary aggregates the link results of one source page.
type PageSummary struct {
	PageID        string     `json:"page_id"`
	Role          Role       `json:"role"`
	OutboundLinks int        `json:"outbound_links"`
	Status        Status     `json:"status"`
	FailedRules   []RuleName `json:"failed_rules,omitempty"`
	Warnings      []string   `json:"warnings,omitempty"`
}

// ValidationReport is the outcome of running the rules over one scope.
type ValidationReport struct {
	// ID is a unique identifier of the report.
	ID string `json:"id"`

	// BatchID links the report to the injection batch that produced it.
	BatchID string `json:"batch_id,omitempty"`

	ScopeID     string    `json:"scope_id"`
	Cluster     bool      `json:"cluster"`
	GeneratedAt time.Time `json:"generated_at"`

	Links []LinkResult  `json:"links"`
	Pages []PageSummary `json:"pages"`
}

// CountByStatus returns how many links ended in the given status.
func (r *ValidationReport) CountByStatus(s Status) int {
	n := 0
	for _, l := range r.Links {
		if l.Status == s {
			n++
		}
	}
	return n
}

// RuleFailures returns how many links failed each rule.
func (r *ValidationReport) RuleFailures() map[RuleName]int {
	out := make(map[RuleName]int)
	for _, l := range r.Links {
		for _, rule := range l.FailedRules {
			out[rule]++
		}
	}
	return out
}

// WarningCount returns the number of warnings over links and pages.
func (r *ValidationReport) WarningCount() int {
	n := 0
	for _, l := range r.Links {
		n += len(l.Warnings)
	}
	for _, p := range r.Pages {
		n += len(p.Warnings)
	}
	return n
}

// Verified reports whether every placed link of the scope is verified.
// Flagged links do not make a scope unverified; they are reported separately.
func (r *ValidationReport) Verified() bool {
	for _, l := range r.Links {
		if l.Status == StatusInjected {
			return false
		}
	}
	return true
}
