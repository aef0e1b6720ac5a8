package model

import "fmt"

// OnboardingScope is the sentinel scope id shared by pages of the onboarding
// batch. Pages in this scope are not part of a topic cluster, so the
// cluster-only rules (first-link and direction) do not apply to them.
const OnboardingScope = "onboarding"

// Role is the position of a page inside its topic cluster.
type Role string

const (
	// RoleParent is the pillar page of a cluster.
	RoleParent Role = "parent"

	// RoleChild is a supporting page that must link back to its parent.
	RoleChild Role = "child"

	// RoleNone is used for pages without a cluster hierarchy,
	// typically onboarding pages.
	RoleNone Role = "none"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleParent, RoleChild, RoleNone:
		return true
	default:
		return false
	}
}

// ParseRole converts a string into a Role. An empty string maps to RoleNone.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return RoleNone, nil
	}
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown page role %q", s)
	}
	return r, nil
}

// Page is a content page taking part in internal linking.
// Pages are immutable for the duration of an injection batch.
type Page struct {
	// ID uniquely identifies the page in the content store.
	ID string `json:"id"`

	// ScopeID is the cluster id, or OnboardingScope.
	ScopeID string `json:"scope_id"`

	// Role is the page's position in its cluster.
	Role Role `json:"role"`

	// PrimaryKeyword is the keyword the page targets. The fallback rewriter
	// uses it to pick the paragraph with the best topical overlap.
	PrimaryKeyword string `json:"primary_keyword"`

	// URL is the page's public path or absolute URL. It is used to detect
	// self-links and first-link targets in rendered content.
	URL string `json:"url,omitempty"`
}

// InCluster reports whether the page belongs to a topic cluster rather than
// the onboarding scope.
func (p Page) InCluster() bool {
	return IsClusterScope(p.ScopeID)
}

// IsClusterScope reports whether scopeID names a topic cluster.
func IsClusterScope(scopeID string) bool {
	return scopeID != "" && scopeID != OnboardingScope
}
