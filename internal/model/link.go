package model

import (
	"strings"

	"golang.org/x/text/cases"
)

// Status is the lifecycle state of a link.
//
// The state machine is:
//
//	planned -> injected (rule_based | llm_fallback) | flagged (unplaced)
//	injected -> verified | injected with failed rules
//
// Stripping moves any state back to planned.
type Status string

const (
	// StatusPlanned is the initial state produced by the planner.
	StatusPlanned Status = "planned"

	// StatusInjected means an anchor was physically placed in the content.
	StatusInjected Status = "injected"

	// StatusFlagged means the link could not be placed; Reason says why.
	StatusFlagged Status = "flagged"

	// StatusVerified means the link is placed and passed every rule.
	StatusVerified Status = "verified"
)

// PlacementMethod records how an anchor was inserted.
type PlacementMethod string

const (
	// MethodRuleBased is a literal anchor-text match wrapped in place.
	MethodRuleBased PlacementMethod = "rule_based"

	// MethodLLMFallback is a paragraph rewritten by the text-rewriting service.
	MethodLLMFallback PlacementMethod = "llm_fallback"

	// MethodUnplaced means no anchor exists in the content.
	MethodUnplaced PlacementMethod = "unplaced"
)

// PlannedLink is a link decided by the external planner.
// It is read-only input to the engine.
type PlannedLink struct {
	SourcePageID      string `json:"source_page_id"`
	TargetPageID      string `json:"target_page_id"`
	TargetURL         string `json:"target_url"`
	AnchorText        string `json:"anchor_text"`
	ScopeID           string `json:"scope_id"`
	IsMandatoryParent bool   `json:"is_mandatory_parent"`
}

// InjectedLink is a PlannedLink augmented with its placement outcome.
type InjectedLink struct {
	PlannedLink

	// Status is the link's current lifecycle state.
	Status Status `json:"status"`

	// PlacementMethod says how the anchor got into the content.
	PlacementMethod PlacementMethod `json:"placement_method"`

	// ParagraphIndex is the 1-based index of the paragraph holding the
	// anchor. Zero when the link is not placed.
	ParagraphIndex int `json:"paragraph_index"`

	// Reason explains why a link was flagged.
	Reason string `json:"reason,omitempty"`

	// FailedRules lists every validation rule the link failed.
	FailedRules []RuleName `json:"failed_rules,omitempty"`

	// Warnings lists non-blocking validation notes.
	Warnings []string `json:"warnings,omitempty"`
}

// NewInjectedLink wraps a planned link in its initial, unplaced state.
func NewInjectedLink(pl PlannedLink) InjectedLink {
	return InjectedLink{
		PlannedLink:     pl,
		Status:          StatusPlanned,
		PlacementMethod: MethodUnplaced,
	}
}

// Placed reports whether an anchor for the link exists in the content.
func (l InjectedLink) Placed() bool {
	return l.Status == StatusInjected || l.Status == StatusVerified
}

// Reset returns the link reverted to its pre-injection state.
func (l InjectedLink) Reset() InjectedLink {
	return NewInjectedLink(l.PlannedLink)
}

// AnchorKey identifies an (anchor text, target URL) pair for the
// anchor-diversity rule. Anchor text is case-folded and whitespace-collapsed
// so "Running Shoes" and "running  shoes" count as the same anchor.
type AnchorKey struct {
	Anchor    string `json:"anchor"`
	TargetURL string `json:"target_url"`
}

// NewAnchorKey builds the normalized key for an anchor/target pair.
func NewAnchorKey(anchor, targetURL string) AnchorKey {
	folded := cases.Fold().String(strings.Join(strings.Fields(anchor), " "))
	return AnchorKey{
		Anchor:    folded,
		TargetURL: strings.TrimSpace(targetURL),
	}
}

// Key returns the anchor key of the link.
func (l PlannedLink) Key() AnchorKey {
	return NewAnchorKey(l.AnchorText, l.TargetURL)
}
