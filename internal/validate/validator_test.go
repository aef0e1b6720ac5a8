package validate

import (
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/linkweaver/internal/linkscope"
	"github.com/nao1215/linkweaver/internal/model"
)

func filler(n int) string {
	return strings.TrimSpace(strings.Repeat("lorem ", n))
}

func testPages() map[string]model.Page {
	pages := []model.Page{
		{ID: "parent", ScopeID: "trail", Role: model.RoleParent, URL: "/trail", PrimaryKeyword: "trail running"},
		{ID: "shoes", ScopeID: "trail", Role: model.RoleChild, URL: "/trail/shoes", PrimaryKeyword: "trail shoes"},
		{ID: "socks", ScopeID: "trail", Role: model.RoleChild, URL: "/trail/socks", PrimaryKeyword: "trail socks"},
		{ID: "road", ScopeID: "road", Role: model.RoleParent, URL: "/road", PrimaryKeyword: "road running"},
	}
	out := make(map[string]model.Page)
	for _, p := range pages {
		out[p.ID] = p
	}
	for i := 1; i <= 6; i++ {
		id := fmt.Sprintf("c%d", i)
		out[id] = model.Page{ID: id, ScopeID: "trail", Role: model.RoleChild, URL: "/trail/" + id}
	}
	return out
}

func placed(source, target, url, anchor string, index int) model.InjectedLink {
	return model.InjectedLink{
		PlannedLink: model.PlannedLink{
			SourcePageID: source,
			TargetPageID: target,
			TargetURL:    url,
			AnchorText:   anchor,
			ScopeID:      "trail",
		},
		Status:          model.StatusInjected,
		PlacementMethod: model.MethodRuleBased,
		ParagraphIndex:  index,
	}
}

func newTestValidator() *Validator {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return New(linkscope.New(linkscope.WithDomains("example.com")), WithClock(func() time.Time { return fixed }))
}

func outcome(r model.LinkResult, rule model.RuleName) model.RuleOutcome {
	for _, o := range r.Outcomes {
		if o.Rule == rule {
			return o
		}
	}
	return model.RuleOutcome{}
}

func TestValidateSiblingFirstLink(t *testing.T) {
	t.Parallel()

	content := `<p>See <a href="/trail/socks">socks</a> first. ` + filler(60) +
		` then the <a href="/trail">trail guide</a>.</p>`

	report := newTestValidator().Validate(Input{
		ScopeID: "trail",
		Pages:   testPages(),
		Links: []model.InjectedLink{
			placed("shoes", "socks", "/trail/socks", "socks", 1),
			placed("shoes", "parent", "/trail", "trail guide", 1),
		},
		Content: map[string]string{"shoes": content},
	})

	for _, r := range report.Links {
		if !slices.Contains(r.FailedRules, model.RuleFirstLink) {
			t.Errorf("expected first_link_rule failure for %s, got %v", r.Link.TargetPageID, r.FailedRules)
		}
		if r.Status != model.StatusInjected {
			t.Errorf("expected status injected, got %s", r.Status)
		}
		if r.Link.Status != model.StatusInjected {
			t.Errorf("expected link status injected, got %s", r.Link.Status)
		}
	}
	if report.Verified() {
		t.Error("report must not be verified")
	}
	if report.GeneratedAt.Year() != 2026 || report.ID == "" {
		t.Errorf("unexpected report metadata: %s %v", report.ID, report.GeneratedAt)
	}
}

func TestValidateBudgetWarning(t *testing.T) {
	t.Parallel()

	content := `<p>Start with the <a href="/trail">trail guide</a>. ` + filler(60) +
		` and <a href="https://example.com/trail/socks">socks</a>.</p>`

	report := newTestValidator().Validate(Input{
		ScopeID: "trail",
		Pages:   testPages(),
		Links: []model.InjectedLink{
			placed("shoes", "parent", "/trail", "trail guide", 1),
			placed("shoes", "socks", "https://example.com/trail/socks", "socks", 1),
		},
		Content: map[string]string{"shoes": content},
	})

	if len(report.Pages) != 1 {
		t.Fatalf("expected 1 page summary, got %d", len(report.Pages))
	}
	page := report.Pages[0]
	if page.Status != model.StatusVerified {
		t.Errorf("expected page verified, got %s (failed %v)", page.Status, page.FailedRules)
	}
	if len(page.Warnings) != 1 || !strings.Contains(page.Warnings[0], "budget") {
		t.Errorf("expected a budget warning, got %v", page.Warnings)
	}
	for _, r := range report.Links {
		if r.Status != model.StatusVerified {
			t.Errorf("expected verified link, got %s with %v", r.Status, r.FailedRules)
		}
		if o := outcome(r, model.RuleBudget); !o.Passed || !o.Warning {
			t.Errorf("expected budget warning outcome, got %+v", o)
		}
	}
	if !report.Verified() {
		t.Error("expected verified report")
	}
	if report.WarningCount() != 1 {
		t.Errorf("expected 1 warning, got %d", report.WarningCount())
	}
}

func TestValidateRules(t *testing.T) {
	t.Parallel()

	t.Run("silo and direction across scopes", func(t *testing.T) {
		t.Parallel()

		content := `<p><a href="/trail">trail</a> ` + filler(60) + ` <a href="/road">road</a></p>`
		report := newTestValidator().Validate(Input{
			ScopeID: "trail",
			Pages:   testPages(),
			Links: []model.InjectedLink{
				placed("shoes", "parent", "/trail", "trail", 1),
				placed("shoes", "road", "/road", "road", 1),
			},
			Content: map[string]string{"shoes": content},
		})

		r := report.Links[1]
		if !slices.Contains(r.FailedRules, model.RuleSiloIntegrity) || !slices.Contains(r.FailedRules, model.RuleDirection) {
			t.Errorf("expected silo and direction failures, got %v", r.FailedRules)
		}
		if report.Links[0].Status != model.StatusVerified {
			t.Errorf("first link should verify, failed %v", report.Links[0].FailedRules)
		}
	})

	t.Run("external target fails silo", func(t *testing.T) {
		t.Parallel()

		content := `<p><a href="https://other.org/trail">trail</a></p>`
		report := newTestValidator().Validate(Input{
			ScopeID: "trail",
			Pages:   testPages(),
			Links:   []model.InjectedLink{placed("socks", "parent", "https://other.org/trail", "trail", 1)},
			Content: map[string]string{"socks": content},
		})
		if !slices.Contains(report.Links[0].FailedRules, model.RuleSiloIntegrity) {
			t.Errorf("expected silo failure, got %v", report.Links[0].FailedRules)
		}
	})

	t.Run("link scope disagreeing with the source page fails silo", func(t *testing.T) {
		t.Parallel()

		pages := testPages()
		pages["stray"] = model.Page{ID: "stray", ScopeID: "road", Role: model.RoleNone, URL: "/road/stray"}
		content := `<p><a href="/trail/socks">socks</a></p>`

		report := newTestValidator().Validate(Input{
			ScopeID: "trail",
			Pages:   pages,
			Links:   []model.InjectedLink{placed("stray", "socks", "/trail/socks", "socks", 1)},
			Content: map[string]string{"stray": content},
		})
		o := outcome(report.Links[0], model.RuleSiloIntegrity)
		if o.Passed || !strings.Contains(o.Detail, "source page") {
			t.Errorf("expected silo failure naming the source scope, got %+v", o)
		}
	})

	t.Run("external anchor before the parent link fails first-link", func(t *testing.T) {
		t.Parallel()

		content := `<p>Found on <a href="https://other.org/">a forum</a>. ` + filler(60) +
			` Read the <a href="/trail">trail guide</a>.</p>`
		report := newTestValidator().Validate(Input{
			ScopeID: "trail",
			Pages:   testPages(),
			Links:   []model.InjectedLink{placed("shoes", "parent", "/trail", "trail guide", 1)},
			Content: map[string]string{"shoes": content},
		})
		o := outcome(report.Links[0], model.RuleFirstLink)
		if o.Passed || !strings.Contains(o.Detail, "https://other.org/") {
			t.Errorf("expected first-link failure on the external anchor, got %+v", o)
		}
		if report.Links[0].Status == model.StatusVerified {
			t.Error("link must not verify")
		}
	})

	t.Run("self link and duplicate target", func(t *testing.T) {
		t.Parallel()

		content := `<p><a href="/trail">trail</a> ` + filler(60) + ` <a href="/trail">guide</a></p>` +
			`<p><a href="/trail/shoes">shoes</a></p>`
		report := newTestValidator().Validate(Input{
			ScopeID: "trail",
			Pages:   testPages(),
			Links: []model.InjectedLink{
				placed("shoes", "parent", "/trail", "trail", 1),
				placed("shoes", "parent", "/trail", "guide", 1),
				placed("shoes", "shoes", "/trail/shoes", "shoes", 2),
			},
			Content: map[string]string{"shoes": content},
		})

		if slices.Contains(report.Links[0].FailedRules, model.RuleNoDuplicateTarget) {
			t.Error("first link to a target is not a duplicate")
		}
		if !slices.Contains(report.Links[1].FailedRules, model.RuleNoDuplicateTarget) {
			t.Errorf("expected duplicate failure, got %v", report.Links[1].FailedRules)
		}
		if !slices.Contains(report.Links[2].FailedRules, model.RuleNoSelfLink) {
			t.Errorf("expected self-link failure, got %v", report.Links[2].FailedRules)
		}
	})

	t.Run("budget maximum fails excess links", func(t *testing.T) {
		t.Parallel()

		var content strings.Builder
		var links []model.InjectedLink
		for i := 1; i <= 6; i++ {
			id := fmt.Sprintf("c%d", i)
			fmt.Fprintf(&content, `<p>About <a href="/trail/%s">%s</a>.</p>`, id, id)
			links = append(links, placed("parent", id, "/trail/"+id, id, i))
		}

		report := newTestValidator().Validate(Input{
			ScopeID: "trail",
			Pages:   testPages(),
			Links:   links,
			Content: map[string]string{"parent": content.String()},
		})

		for i, r := range report.Links {
			failed := slices.Contains(r.FailedRules, model.RuleBudget)
			if (i == 5) != failed {
				t.Errorf("link %d: budget failed = %v", i+1, failed)
			}
			if o := outcome(r, model.RuleFirstLink); !o.Skipped {
				t.Errorf("first-link rule must be skipped for parents, got %+v", o)
			}
		}
	})

	t.Run("parent linking to parent fails direction", func(t *testing.T) {
		t.Parallel()

		pages := testPages()
		pages["parent2"] = model.Page{ID: "parent2", ScopeID: "trail", Role: model.RoleParent, URL: "/trail2"}

		report := newTestValidator().Validate(Input{
			ScopeID: "trail",
			Pages:   pages,
			Links:   []model.InjectedLink{placed("parent", "parent2", "/trail2", "other", 1)},
			Content: map[string]string{"parent": `<p><a href="/trail2">other</a></p>`},
		})
		if !slices.Contains(report.Links[0].FailedRules, model.RuleDirection) {
			t.Errorf("expected direction failure, got %v", report.Links[0].FailedRules)
		}
	})

	t.Run("density recheck", func(t *testing.T) {
		t.Parallel()

		content := `<p><a href="/trail">trail</a> two words <a href="/trail/socks">socks</a></p>`
		report := newTestValidator().Validate(Input{
			ScopeID: "trail",
			Pages:   testPages(),
			Links: []model.InjectedLink{
				placed("shoes", "parent", "/trail", "trail", 1),
				placed("shoes", "socks", "/trail/socks", "socks", 1),
				placed("shoes", "c1", "/trail/c1", "missing", 4),
			},
			Content: map[string]string{"shoes": content},
		})
		for _, r := range report.Links {
			if !slices.Contains(r.FailedRules, model.RuleDensity) {
				t.Errorf("expected density failure for %s, got %v", r.Link.AnchorText, r.FailedRules)
			}
		}
	})

	t.Run("anchor diversity uses project-wide counts", func(t *testing.T) {
		t.Parallel()

		link := placed("shoes", "parent", "/trail", "Trail Guide", 1)
		report := newTestValidator().Validate(Input{
			ScopeID:      "trail",
			Pages:        testPages(),
			Links:        []model.InjectedLink{link},
			Content:      map[string]string{"shoes": `<p><a href="/trail">Trail Guide</a></p>`},
			AnchorCounts: map[model.AnchorKey]int{model.NewAnchorKey("trail  guide", "/trail"): 4},
		})
		if !slices.Contains(report.Links[0].FailedRules, model.RuleAnchorDiversity) {
			t.Errorf("expected diversity failure, got %v", report.Links[0].FailedRules)
		}
	})

	t.Run("onboarding skips cluster rules", func(t *testing.T) {
		t.Parallel()

		pages := map[string]model.Page{
			"a": {ID: "a", ScopeID: model.OnboardingScope, Role: model.RoleNone, URL: "/a"},
			"b": {ID: "b", ScopeID: model.OnboardingScope, Role: model.RoleNone, URL: "/b"},
		}
		link := placed("a", "b", "/b", "bee", 1)
		link.ScopeID = model.OnboardingScope

		report := newTestValidator().Validate(Input{
			ScopeID: model.OnboardingScope,
			Pages:   pages,
			Links:   []model.InjectedLink{link},
			Content: map[string]string{"a": `<p>the <a href="/b">bee</a></p>`},
		})
		if report.Cluster {
			t.Error("onboarding is not a cluster")
		}
		r := report.Links[0]
		for _, rule := range []model.RuleName{model.RuleFirstLink, model.RuleDirection} {
			if o := outcome(r, rule); !o.Skipped {
				t.Errorf("expected %s skipped, got %+v", rule, o)
			}
		}
		if r.Status != model.StatusVerified {
			t.Errorf("expected verified, got %s with %v", r.Status, r.FailedRules)
		}
	})

	t.Run("flagged links are reported without evaluation", func(t *testing.T) {
		t.Parallel()

		link := placed("shoes", "parent", "/trail", "trail", 0)
		link.Status = model.StatusFlagged
		link.PlacementMethod = model.MethodUnplaced
		link.Reason = "rewrite timed out"

		report := newTestValidator().Validate(Input{
			ScopeID: "trail",
			Pages:   testPages(),
			Links:   []model.InjectedLink{link},
			Content: map[string]string{"shoes": "<p>no links</p>"},
		})
		r := report.Links[0]
		if r.Status != model.StatusFlagged || len(r.Outcomes) != 0 {
			t.Errorf("unexpected flagged result: %+v", r)
		}
		if report.Pages[0].Status != model.StatusFlagged {
			t.Errorf("expected flagged page, got %s", report.Pages[0].Status)
		}
	})
}

func TestCountAnchors(t *testing.T) {
	t.Parallel()

	flagged := placed("a", "b", "/b", "x", 0)
	flagged.Status = model.StatusFlagged

	counts := CountAnchors([]model.InjectedLink{
		placed("a", "b", "/b", "Running Shoes", 1),
		placed("c", "b", "/b", "running shoes", 1),
		flagged,
	})
	if got := counts[model.NewAnchorKey("running shoes", "/b")]; got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
	if len(counts) != 1 {
		t.Errorf("flagged links must not be counted: %v", counts)
	}
}
