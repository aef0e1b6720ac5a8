// Package linkscope decides whether a URL is an internal link.
//
// The predicate is configuration: a set of internal domains and optional
// path patterns. A relative URL is always internal. An absolute http(s) URL
// is internal when its host is one of the configured domains; a domain that
// starts with "." also matches every subdomain. When path patterns are
// configured, the URL path must also match one of them.
package linkscope

import (
	"net/url"
	"path"
	"strings"
)

// nonNavigational lists URL prefixes that are never page links.
var nonNavigational = []string{"#", "mailto:", "tel:", "javascript:", "data:"}

// Predicate reports whether an href points inside the site.
type Predicate struct {
	domains []string
	paths   []string
}

// Option configures a Predicate.
type Option func(*Predicate)

// WithDomains registers internal domains. Matching is case-insensitive.
func WithDomains(domains ...string) Option {
	return func(p *Predicate) {
		for _, d := range domains {
			d = strings.ToLower(strings.TrimSpace(d))
			if d != "" {
				p.domains = append(p.domains, d)
			}
		}
	}
}

// WithPaths restricts internal links to paths matching any of the given
// glob patterns (path.Match syntax).
func WithPaths(patterns ...string) Option {
	return func(p *Predicate) {
		for _, pat := range patterns {
			if pat = strings.TrimSpace(pat); pat != "" {
				p.paths = append(p.paths, pat)
			}
		}
	}
}

// New creates a Predicate.
func New(opts ...Option) *Predicate {
	p := &Predicate{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Domains returns the configured internal domains.
func (p *Predicate) Domains() []string {
	out := make([]string, len(p.domains))
	copy(out, p.domains)
	return out
}

// IsInternal reports whether href is an internal link.
func (p *Predicate) IsInternal(href string) bool {
	href = strings.TrimSpace(href)
	if href == "" {
		return false
	}
	lower := strings.ToLower(href)
	for _, prefix := range nonNavigational {
		if strings.HasPrefix(lower, prefix) {
			return false
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return false
	}

	switch {
	case u.Scheme == "" && u.Host == "":
		// Relative reference.
	case u.Scheme == "" || u.Scheme == "http" || u.Scheme == "https":
		if !p.internalHost(u.Hostname()) {
			return false
		}
	default:
		return false
	}

	return p.matchPath(u.Path)
}

func (p *Predicate) internalHost(host string) bool {
	host = strings.ToLower(host)
	if host == "" {
		return false
	}
	for _, d := range p.domains {
		if strings.HasPrefix(d, ".") {
			if host == d[1:] || strings.HasSuffix(host, d) {
				return true
			}
			continue
		}
		if host == d {
			return true
		}
	}
	return false
}

func (p *Predicate) matchPath(urlPath string) bool {
	if len(p.paths) == 0 {
		return true
	}
	if urlPath == "" {
		urlPath = "/"
	}
	for _, pat := range p.paths {
		if ok, err := path.Match(pat, urlPath); err == nil && ok {
			return true
		}
		// A trailing "/*" pattern also covers deeper paths.
		if prefix, found := strings.CutSuffix(pat, "/*"); found && strings.HasPrefix(urlPath, prefix+"/") {
			return true
		}
	}
	return false
}
