package pipeline

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/nao1215/linkweaver/internal/database"
	"github.com/nao1215/linkweaver/internal/model"
)

// memStore is an in-memory Store for tests.
type memStore struct {
	mu       sync.Mutex
	pages    map[string]model.Page
	content  map[string]string
	baseline map[string]string
	links    map[string][]model.InjectedLink
	order    []string
	reports  []*model.ValidationReport

	// loadErr makes LoadContent fail for the given page ids.
	loadErr map[string]error
	// saveErr makes SavePage fail for the given page ids, leaving content
	// and links as they were.
	saveErr map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		pages:    make(map[string]model.Page),
		content:  make(map[string]string),
		baseline: make(map[string]string),
		links:    make(map[string][]model.InjectedLink),
		loadErr:  make(map[string]error),
		saveErr:  make(map[string]error),
	}
}

func (s *memStore) addPage(p model.Page, html string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[p.ID] = p
	if html != "" {
		s.content[p.ID] = html
		s.baseline[p.ID] = html
	}
}

func (s *memStore) LoadContent(_ context.Context, pageID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadErr[pageID]; err != nil {
		return "", err
	}
	html, ok := s.content[pageID]
	if !ok {
		return "", fmt.Errorf("%w: %s", database.ErrContentNotFound, pageID)
	}
	return html, nil
}

func (s *memStore) LoadBaseline(_ context.Context, pageID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	html, ok := s.baseline[pageID]
	if !ok {
		return "", fmt.Errorf("%w: %s", database.ErrContentNotFound, pageID)
	}
	return html, nil
}

func (s *memStore) SavePage(_ context.Context, pageID, html string, links []model.InjectedLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.saveErr[pageID]; err != nil {
		return err
	}
	s.content[pageID] = html
	if _, ok := s.baseline[pageID]; !ok {
		s.baseline[pageID] = html
	}
	s.replaceLocked(pageID, links)
	return nil
}

func (s *memStore) replaceLocked(sourcePageID string, links []model.InjectedLink) {
	if _, ok := s.links[sourcePageID]; !ok {
		s.order = append(s.order, sourcePageID)
	}
	s.links[sourcePageID] = slices.Clone(links)
}

func (s *memStore) ListPages(_ context.Context) ([]model.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Page, 0, len(s.pages))
	for _, p := range s.pages {
		out = append(out, p)
	}
	return out, nil
}

func (s *memStore) ListLinks(_ context.Context, scopeID string) ([]model.InjectedLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.InjectedLink
	for _, src := range s.order {
		for _, l := range s.links[src] {
			if l.ScopeID == scopeID {
				out = append(out, l)
			}
		}
	}
	return out, nil
}

func (s *memStore) ListAllLinks(_ context.Context) ([]model.InjectedLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.InjectedLink
	for _, src := range s.order {
		out = append(out, s.links[src]...)
	}
	return out, nil
}

func (s *memStore) UpdateLinkStatuses(_ context.Context, links []model.InjectedLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bySource := make(map[string][]model.InjectedLink)
	for _, l := range links {
		bySource[l.SourcePageID] = append(bySource[l.SourcePageID], l)
	}
	for src, ls := range bySource {
		s.replaceLocked(src, ls)
	}
	return nil
}

func (s *memStore) SaveValidationReport(_ context.Context, report *model.ValidationReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, report)
	return nil
}

func (s *memStore) contentOf(pageID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.content[pageID]
}

func (s *memStore) linksOf(pageID string) []model.InjectedLink {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.links[pageID])
}
