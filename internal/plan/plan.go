package plan

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/nao1215/linkweaver/internal/model"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ErrSchemaViolation is returned when a plan document does not match the
// plan schema. The wrapped message lists the offending locations.
var ErrSchemaViolation = errors.New("plan does not match schema")

const schemaURL = "https://linkweaver.local/schema/plan.json"

//go:embed schema.json
var schemaJSON []byte

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse plan schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("failed to add plan schema: %w", err)
	}
	return c.Compile(schemaURL)
})

// PageSpec is a page as listed in a plan.
type PageSpec struct {
	model.Page

	// ContentFile is an HTML file holding the page's initial content. A
	// relative path is resolved against the plan file's directory.
	ContentFile string `json:"content_file,omitempty"`
}

// Plan is the planner output: pages and the ordered links between them.
type Plan struct {
	Pages []PageSpec `json:"pages"`

	// Links are in planner order. Within one source page that order is the
	// injection order.
	Links []model.PlannedLink `json:"links"`
}

// Load reads and validates a plan file.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}

	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	base := filepath.Dir(path)
	for i := range p.Pages {
		if f := p.Pages[i].ContentFile; f != "" && !filepath.IsAbs(f) {
			p.Pages[i].ContentFile = filepath.Join(base, f)
		}
	}
	return p, nil
}

// Parse validates data against the plan schema and decodes it.
func Parse(data []byte) (*Plan, error) {
	schema, err := compiledSchema()
	if err != nil {
		return nil, err
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %w", ErrSchemaViolation, err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchemaViolation, err)
	}

	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode plan: %w", err)
	}

	if err := p.check(); err != nil {
		return nil, err
	}
	return &p, nil
}

// check enforces the constraints the schema cannot express.
func (p *Plan) check() error {
	seen := make(map[string]bool, len(p.Pages))
	for i := range p.Pages {
		pg := &p.Pages[i]
		if seen[pg.ID] {
			return fmt.Errorf("duplicate page id %q", pg.ID)
		}
		seen[pg.ID] = true
		if pg.Role == "" {
			pg.Role = model.RoleNone
		}
	}

	for i, l := range p.Links {
		src, ok := p.Page(l.SourcePageID)
		if ok && src.ScopeID != l.ScopeID {
			return fmt.Errorf("link %d: source page %q is in scope %q, link says %q", i, l.SourcePageID, src.ScopeID, l.ScopeID)
		}
	}
	return nil
}

// Page returns the page with the given id.
func (p *Plan) Page(id string) (PageSpec, bool) {
	for _, pg := range p.Pages {
		if pg.ID == id {
			return pg, true
		}
	}
	return PageSpec{}, false
}

// Scopes returns the scope ids of the plan's links in order of first
// appearance.
func (p *Plan) Scopes() []string {
	var scopes []string
	seen := make(map[string]bool)
	for _, l := range p.Links {
		if !seen[l.ScopeID] {
			seen[l.ScopeID] = true
			scopes = append(scopes, l.ScopeID)
		}
	}
	return scopes
}

// Sources returns the source page ids of the plan's links in order of
// first appearance.
func (p *Plan) Sources() []string {
	var ids []string
	seen := make(map[string]bool)
	for _, l := range p.Links {
		if !seen[l.SourcePageID] {
			seen[l.SourcePageID] = true
			ids = append(ids, l.SourcePageID)
		}
	}
	return ids
}

// LinksFrom returns the links of one source page in planner order.
func (p *Plan) LinksFrom(pageID string) []model.PlannedLink {
	var links []model.PlannedLink
	for _, l := range p.Links {
		if l.SourcePageID == pageID {
			links = append(links, l)
		}
	}
	return links
}

// Subset returns a plan holding only the links of the given source pages.
// Pages are kept whole so that link targets still resolve.
func (p *Plan) Subset(pageIDs []string) *Plan {
	keep := make(map[string]bool, len(pageIDs))
	for _, id := range pageIDs {
		keep[id] = true
	}
	out := &Plan{Pages: p.Pages}
	for _, l := range p.Links {
		if keep[l.SourcePageID] {
			out.Links = append(out.Links, l)
		}
	}
	return out
}
