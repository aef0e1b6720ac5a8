package model

import (
	"errors"
	"testing"
)

func sampleReport() *ValidationReport {
	return &ValidationReport{
		ScopeID: "trail",
		Links: []LinkResult{
			{Status: StatusVerified},
			{Status: StatusVerified, Warnings: []string{"w1"}},
			{Status: StatusFlagged},
			{Status: StatusInjected, FailedRules: []RuleName{RuleDensity, RuleAnchorDiversity}},
			{Status: StatusInjected, FailedRules: []RuleName{RuleDensity}},
		},
		Pages: []PageSummary{{PageID: "shoes", Warnings: []string{"budget: low"}}},
	}
}

func TestValidationReportCounts(t *testing.T) {
	t.Parallel()

	r := sampleReport()

	tests := []struct {
		status Status
		want   int
	}{
		{status: StatusVerified, want: 2},
		{status: StatusInjected, want: 2},
		{status: StatusFlagged, want: 1},
		{status: StatusPlanned, want: 0},
	}
	for _, tt := range tests {
		if got := r.CountByStatus(tt.status); got != tt.want {
			t.Errorf("CountByStatus(%s) = %d, want %d", tt.status, got, tt.want)
		}
	}

	failures := r.RuleFailures()
	if failures[RuleDensity] != 2 || failures[RuleAnchorDiversity] != 1 || len(failures) != 2 {
		t.Errorf("RuleFailures() = %v", failures)
	}
	if got := r.WarningCount(); got != 2 {
		t.Errorf("WarningCount() = %d, want 2", got)
	}
}

func TestValidationReportVerified(t *testing.T) {
	t.Parallel()

	if sampleReport().Verified() {
		t.Error("a scope with failing injected links is not verified")
	}

	ok := &ValidationReport{Links: []LinkResult{{Status: StatusVerified}, {Status: StatusFlagged}}}
	if !ok.Verified() {
		t.Error("flagged links alone do not make a scope unverified")
	}
	if !(&ValidationReport{}).Verified() {
		t.Error("an empty scope is verified")
	}
}

func TestAllRules(t *testing.T) {
	t.Parallel()

	rules := AllRules()
	if len(rules) != 8 {
		t.Fatalf("got %d rules, want 8", len(rules))
	}
	seen := make(map[RuleName]bool)
	for _, r := range rules {
		if seen[r] {
			t.Errorf("duplicate rule %s", r)
		}
		seen[r] = true
	}
	if rules[0] != RuleBudget || rules[7] != RuleDirection {
		t.Errorf("unexpected order: %v", rules)
	}
}

func TestBatchResult(t *testing.T) {
	t.Parallel()

	var failed PageResult
	failed.PageID = "b"
	failed.SetError(errors.New("disk gone"))

	b := &BatchResult{
		Pages: []PageResult{
			{PageID: "a"},
			failed,
			{PageID: "c", Canceled: true},
		},
		Reports: []*ValidationReport{{ScopeID: "trail"}},
	}

	if got := b.FailedPages(); len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Errorf("FailedPages() = %v", got)
	}
	if failed.ErrorMessage != "disk gone" || failed.Succeeded() {
		t.Errorf("SetError result = %+v", failed)
	}
	if !b.Pages[0].Succeeded() {
		t.Error("page without error should succeed")
	}
	if b.Report("trail") == nil || b.Report("other") != nil {
		t.Error("Report() lookup failed")
	}
}
