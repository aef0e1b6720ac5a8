package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/nao1215/linkweaver/internal/linkscope"
)

// Default configuration values.
const (
	// DefaultMaxLinksPerParagraph is the density cap per paragraph. Two links
	// keep a paragraph readable while still allowing a parent and a sibling.
	DefaultMaxLinksPerParagraph = 2

	// DefaultMinWordSpacing is the minimum number of words between two
	// anchors in the same paragraph.
	DefaultMinWordSpacing = 50

	// DefaultBudgetMin and DefaultBudgetMax bound the number of internal
	// links a page should end up with.
	DefaultBudgetMin = 3
	DefaultBudgetMax = 5

	// DefaultAnchorDiversityLimit is how many times the same anchor text may
	// point at the same target across the whole project.
	DefaultAnchorDiversityLimit = 3

	// DefaultConcurrency is the number of pages processed at once.
	DefaultConcurrency = 10

	// DefaultFallbackConcurrency caps in-flight rewrite requests. Local
	// model servers usually serve one or two requests at a time, so this is
	// deliberately lower than DefaultConcurrency.
	DefaultFallbackConcurrency = 3

	// DefaultFallbackTimeout bounds a single rewrite request.
	DefaultFallbackTimeout = 60 * time.Second

	// DefaultRewriterURL is the address of a local Ollama server.
	DefaultRewriterURL = "http://127.0.0.1:11434"

	// DefaultRewriterModel is the model asked to rewrite paragraphs.
	DefaultRewriterModel = "llama3.1"

	// AppName is the application name used for XDG directory paths.
	AppName = "linkweaver"

	// EnvRewriterAPIKey names the environment variable holding the rewriter
	// API key. It is read when neither the file nor a flag sets one.
	EnvRewriterAPIKey = "LINKWEAVER_REWRITER_API_KEY"
)

// Config holds all configuration options for linkweaver.
// It is populated from defaults, then the .linkweaver file, then CLI flags,
// and passed down explicitly rather than read from global state.
//
// Design decision: We keep a single flat struct, as for the other settings
// of this tool. The YAML file has nested sections (density, budget,
// rewriter) but they are flattened here by File.Apply.
type Config struct {
	// MaxLinksPerParagraph is the maximum number of links in one paragraph
	// counting links that were already present.
	MaxLinksPerParagraph int

	// MinWordSpacing is the minimum word distance between anchors in one
	// paragraph.
	MinWordSpacing int

	// BudgetMin is the number of internal links below which a page gets a
	// budget warning.
	BudgetMin int

	// BudgetMax is the number of internal links above which extra links on a
	// page fail validation.
	BudgetMax int

	// AnchorDiversityLimit is the project-wide limit on identical
	// (anchor text, target) pairs.
	AnchorDiversityLimit int

	// InternalDomains are the hosts whose absolute URLs count as internal.
	// Relative links are always internal.
	InternalDomains []string

	// InternalPaths are glob patterns (path.Match syntax) a link path must
	// match to count as internal. Empty means every path.
	InternalPaths []string

	// Concurrency is the number of pages injected at once.
	Concurrency int

	// FallbackConcurrency caps concurrent rewrite requests.
	FallbackConcurrency int

	// FallbackTimeout bounds one rewrite request.
	FallbackTimeout time.Duration

	// DisableFallback turns the rewriter off. Links the rule-based injector
	// cannot place are then reported as unplaced.
	DisableFallback bool

	// RewriterURL is the base URL of the Ollama-compatible server.
	RewriterURL string

	// RewriterModel is the model name sent with each request.
	RewriterModel string

	// RewriterAPIKey is sent as a bearer token when set.
	RewriterAPIKey string

	// PlanFile is the planner output consumed by the inject command.
	PlanFile string

	// Requeue lists page ids to re-run from their stripped baseline instead
	// of running the whole plan.
	Requeue []string

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the explicit path to the configuration file.
	// If empty, .linkweaver is searched in the current and home directories.
	ConfigFilePath string

	// JSONReport selects JSON report output. Mutually exclusive with
	// MarkdownReport.
	JSONReport bool

	// MarkdownReport selects Markdown report output.
	MarkdownReport bool

	// ReportFile is the report destination. Empty means stdout.
	ReportFile string

	// MetricsFile is where Prometheus metrics are written in the textfile
	// collector format after a run. Empty disables the export.
	MetricsFile string

	// DBDir is the directory holding the SQLite content store.
	// Defaults to the XDG data directory (~/.local/share/linkweaver on Linux).
	DBDir string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		MaxLinksPerParagraph: DefaultMaxLinksPerParagraph,
		MinWordSpacing:       DefaultMinWordSpacing,
		BudgetMin:            DefaultBudgetMin,
		BudgetMax:            DefaultBudgetMax,
		AnchorDiversityLimit: DefaultAnchorDiversityLimit,
		Concurrency:          DefaultConcurrency,
		FallbackConcurrency:  DefaultFallbackConcurrency,
		FallbackTimeout:      DefaultFallbackTimeout,
		RewriterURL:          DefaultRewriterURL,
		RewriterModel:        DefaultRewriterModel,
		DBDir:                XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for linkweaver.
// On Linux: ~/.local/share/linkweaver
// On macOS: ~/Library/Application Support/linkweaver
// On Windows: %LOCALAPPDATA%\linkweaver
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for linkweaver.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Scope builds the internal-link predicate from InternalDomains and
// InternalPaths.
func (c *Config) Scope() *linkscope.Predicate {
	return linkscope.New(
		linkscope.WithDomains(c.InternalDomains...),
		linkscope.WithPaths(c.InternalPaths...),
	)
}

// Validate checks if the configuration is valid and returns the first
// problem found.
//
// Design decision: We validate once, after flags and the config file are
// merged, so that a bad value fails before any page is touched.
func (c *Config) Validate() error {
	if c.Concurrency <= 0 || c.FallbackConcurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.FallbackTimeout <= 0 {
		return ErrInvalidFallbackTimeout
	}

	if c.MaxLinksPerParagraph <= 0 || c.MinWordSpacing < 0 {
		return ErrInvalidDensity
	}

	// BudgetMin may be zero to silence the shortfall warning
	if c.BudgetMin < 0 || c.BudgetMax <= 0 || c.BudgetMin > c.BudgetMax || c.AnchorDiversityLimit <= 0 {
		return ErrInvalidBudget
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	return nil
}

// ValidateInject is Validate plus the requirements of the inject command.
func (c *Config) ValidateInject() error {
	if c.PlanFile == "" {
		return ErrNoPlan
	}
	return c.Validate()
}
