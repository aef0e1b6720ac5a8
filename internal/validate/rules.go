package validate

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/nao1215/linkweaver/internal/density"
	"github.com/nao1215/linkweaver/internal/model"
	"github.com/nao1215/linkweaver/internal/paragraph"
	"golang.org/x/net/html"
)

// pageContext evaluates the rules for the links of one source page.
type pageContext struct {
	v       *Validator
	in      *Input
	page    model.Page
	content string
	counts  map[model.AnchorKey]int
}

func (pc *pageContext) evaluate(indexes []int, out map[int]model.LinkResult) model.PageSummary {
	doc := paragraph.Parse(pc.content)

	placed := 0
	flagged := 0
	for _, i := range indexes {
		switch {
		case pc.in.Links[i].Placed():
			placed++
		case pc.in.Links[i].Status == model.StatusFlagged:
			flagged++
		}
	}

	summary := model.PageSummary{
		PageID:        pc.page.ID,
		Role:          pc.page.Role,
		OutboundLinks: placed,
	}

	var shortfall string
	if placed < pc.v.budgetMin {
		shortfall = fmt.Sprintf("page has %d outbound links, below the minimum of %d", placed, pc.v.budgetMin)
		summary.Warnings = append(summary.Warnings, string(model.RuleBudget)+": "+shortfall)
	}

	firstLink := pc.firstLink()

	seenTargets := make(map[string]bool)
	nth := 0
	verified := 0
	for _, i := range indexes {
		link := pc.in.Links[i]
		res := model.LinkResult{Link: link, Status: link.Status}

		if !link.Placed() {
			res.Link.FailedRules = nil
			out[i] = res
			continue
		}

		nth++
		res.Outcomes = []model.RuleOutcome{
			pc.budget(nth, shortfall),
			pc.silo(link),
			pc.selfLink(link),
			pc.duplicateTarget(link, seenTargets),
			pc.density(doc, link),
			pc.diversity(link),
			firstLink,
			pc.direction(link),
		}
		for _, o := range res.Outcomes {
			if !o.Passed {
				res.FailedRules = append(res.FailedRules, o.Rule)
				if !slices.Contains(summary.FailedRules, o.Rule) {
					summary.FailedRules = append(summary.FailedRules, o.Rule)
				}
			}
		}

		if len(res.FailedRules) == 0 {
			res.Status = model.StatusVerified
			verified++
		} else {
			res.Status = model.StatusInjected
		}
		res.Link.Status = res.Status
		res.Link.FailedRules = res.FailedRules
		out[i] = res
	}

	switch {
	case placed > 0 && verified == placed:
		summary.Status = model.StatusVerified
	case placed > 0:
		summary.Status = model.StatusInjected
	case flagged > 0:
		summary.Status = model.StatusFlagged
	default:
		summary.Status = model.StatusPlanned
	}
	return summary
}

func pass(rule model.RuleName) model.RuleOutcome {
	return model.RuleOutcome{Rule: rule, Passed: true}
}

func fail(rule model.RuleName, format string, args ...any) model.RuleOutcome {
	return model.RuleOutcome{Rule: rule, Detail: fmt.Sprintf(format, args...)}
}

func skip(rule model.RuleName, detail string) model.RuleOutcome {
	return model.RuleOutcome{Rule: rule, Passed: true, Skipped: true, Detail: detail}
}

// budget fails links placed beyond the maximum. A page below the minimum is
// only a warning.
func (pc *pageContext) budget(nth int, shortfall string) model.RuleOutcome {
	if nth > pc.v.budgetMax {
		return fail(model.RuleBudget, "link %d exceeds the maximum of %d outbound links", nth, pc.v.budgetMax)
	}
	if shortfall != "" {
		return model.RuleOutcome{Rule: model.RuleBudget, Passed: true, Warning: true, Detail: shortfall}
	}
	return pass(model.RuleBudget)
}

// silo requires the link, its source page and its target page to share one
// scope. The source page's stored scope is authoritative.
func (pc *pageContext) silo(link model.InjectedLink) model.RuleOutcome {
	scope := pc.page.ScopeID
	if link.ScopeID != scope {
		return fail(model.RuleSiloIntegrity, "link is planned in scope %q but source page is in %q", link.ScopeID, scope)
	}
	target, ok := pc.in.Pages[link.TargetPageID]
	if !ok {
		return fail(model.RuleSiloIntegrity, "target page %q is unknown", link.TargetPageID)
	}
	if target.ScopeID != scope {
		return fail(model.RuleSiloIntegrity, "target page is in scope %q, not %q", target.ScopeID, scope)
	}
	if pc.v.predicate != nil && !pc.v.predicate.IsInternal(link.TargetURL) {
		return fail(model.RuleSiloIntegrity, "target URL %s is not internal", link.TargetURL)
	}
	return pass(model.RuleSiloIntegrity)
}

func (pc *pageContext) selfLink(link model.InjectedLink) model.RuleOutcome {
	if link.TargetPageID == link.SourcePageID {
		return fail(model.RuleNoSelfLink, "page links to itself")
	}
	if pc.page.URL != "" && pc.sameURL(link.TargetURL, pc.page.URL) {
		return fail(model.RuleNoSelfLink, "target URL %s is the page's own URL", link.TargetURL)
	}
	return pass(model.RuleNoSelfLink)
}

// duplicateTarget fails every link after the first to the same target.
func (pc *pageContext) duplicateTarget(link model.InjectedLink, seen map[string]bool) model.RuleOutcome {
	key := link.TargetPageID
	if key == "" {
		key = pc.normalizeURL(link.TargetURL)
	}
	if seen[key] {
		return fail(model.RuleNoDuplicateTarget, "page already links to %s", link.TargetURL)
	}
	seen[key] = true
	return pass(model.RuleNoDuplicateTarget)
}

// density re-checks the paragraph that holds the link in the final content.
func (pc *pageContext) density(doc *paragraph.Document, link model.InjectedLink) model.RuleOutcome {
	p, ok := doc.Paragraph(link.ParagraphIndex)
	if !ok {
		return fail(model.RuleDensity, "paragraph %d not found in content", link.ParagraphIndex)
	}

	found := false
	for _, a := range p.Anchors() {
		if strings.TrimSpace(a.Href) == strings.TrimSpace(link.TargetURL) && paragraph.EqualAnchorText(a.Text, link.AnchorText) {
			found = true
			break
		}
	}
	if !found {
		return fail(model.RuleDensity, "anchor %q not found in paragraph %d", link.AnchorText, link.ParagraphIndex)
	}

	if v, bad := density.Check(p, pc.v.maxLinks, pc.v.minSpacing); bad {
		switch v.Kind {
		case density.TooManyLinks:
			return fail(model.RuleDensity, "paragraph %d holds %d links, maximum is %d", p.Index(), v.Count, pc.v.maxLinks)
		default:
			return fail(model.RuleDensity, "paragraph %d has links %d words apart, minimum is %d", p.Index(), v.Gap, pc.v.minSpacing)
		}
	}
	return pass(model.RuleDensity)
}

func (pc *pageContext) diversity(link model.InjectedLink) model.RuleOutcome {
	if n := pc.counts[link.Key()]; n > pc.v.diversityLimit {
		return fail(model.RuleAnchorDiversity, "anchor %q to %s is used %d times, limit is %d", link.AnchorText, link.TargetURL, n, pc.v.diversityLimit)
	}
	return pass(model.RuleAnchorDiversity)
}

// firstLink checks that the first anchor in a child page's content targets
// the cluster parent. The outcome applies to every link of the page.
func (pc *pageContext) firstLink() model.RuleOutcome {
	if !model.IsClusterScope(pc.in.ScopeID) {
		return skip(model.RuleFirstLink, "not a cluster scope")
	}
	if pc.page.Role != model.RoleChild {
		return skip(model.RuleFirstLink, "applies to child pages only")
	}

	parentURL, ok := pc.parentURL()
	if !ok {
		return fail(model.RuleFirstLink, "scope %q has no parent page", pc.in.ScopeID)
	}
	first, ok := pc.firstHref()
	if !ok {
		return fail(model.RuleFirstLink, "content has no link")
	}
	if !pc.sameURL(first, parentURL) {
		return fail(model.RuleFirstLink, "first link points to %s, not to parent %s", first, parentURL)
	}
	return pass(model.RuleFirstLink)
}

// direction restricts links inside a cluster: parents link to children,
// children link to their parent and siblings.
func (pc *pageContext) direction(link model.InjectedLink) model.RuleOutcome {
	if !model.IsClusterScope(pc.in.ScopeID) {
		return skip(model.RuleDirection, "not a cluster scope")
	}
	if pc.page.Role == model.RoleNone {
		return pass(model.RuleDirection)
	}

	target, ok := pc.in.Pages[link.TargetPageID]
	if !ok || target.ScopeID != pc.in.ScopeID {
		return fail(model.RuleDirection, "target page %q is not in the cluster", link.TargetPageID)
	}

	switch pc.page.Role {
	case model.RoleParent:
		if target.Role != model.RoleChild {
			return fail(model.RuleDirection, "parent may only link to children, target is %s", target.Role)
		}
	case model.RoleChild:
		if target.Role != model.RoleParent && target.Role != model.RoleChild {
			return fail(model.RuleDirection, "child may only link to its parent or siblings, target is %s", target.Role)
		}
	}
	return pass(model.RuleDirection)
}

// parentURL returns the URL of the scope's parent page. Pages without a URL
// fall back to the target URL of a planned link to them.
func (pc *pageContext) parentURL() (string, bool) {
	for _, p := range pc.in.Pages {
		if p.ScopeID != pc.in.ScopeID || p.Role != model.RoleParent {
			continue
		}
		if p.URL != "" {
			return p.URL, true
		}
		for _, l := range pc.in.Links {
			if l.TargetPageID == p.ID {
				return l.TargetURL, true
			}
		}
	}
	return "", false
}

// firstHref returns the href of the first anchor in the page content,
// internal or external. Anchors without an href are not links.
func (pc *pageContext) firstHref() (string, bool) {
	z := html.NewTokenizer(strings.NewReader(pc.content))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return "", false
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "a" {
				continue
			}
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				if string(key) != "href" {
					continue
				}
				return strings.TrimSpace(string(val)), true
			}
		}
	}
}

func (pc *pageContext) sameURL(a, b string) bool {
	return pc.normalizeURL(a) == pc.normalizeURL(b)
}

// normalizeURL reduces internal absolute URLs to their path so that
// "https://example.com/a/" and "/a" compare equal.
func (pc *pageContext) normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.Host != "" && (pc.v.predicate == nil || pc.v.predicate.IsInternal(raw)) {
		u.Scheme = ""
		u.Host = ""
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	if len(u.Path) > 1 {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}
	if u.Path == "" && u.Host == "" {
		u.Path = "/"
	}
	return u.String()
}
