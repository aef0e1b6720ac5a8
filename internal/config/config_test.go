package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

// TestNewConfig documents the defaults. A failing case here means a default
// changed, which should be intentional.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	tests := []struct {
		name string
		got  any
		want any
	}{
		{name: "max links per paragraph", got: cfg.MaxLinksPerParagraph, want: 2},
		{name: "min word spacing", got: cfg.MinWordSpacing, want: 50},
		{name: "budget min", got: cfg.BudgetMin, want: 3},
		{name: "budget max", got: cfg.BudgetMax, want: 5},
		{name: "anchor diversity limit", got: cfg.AnchorDiversityLimit, want: 3},
		{name: "concurrency", got: cfg.Concurrency, want: 10},
		{name: "fallback concurrency", got: cfg.FallbackConcurrency, want: 3},
		{name: "fallback timeout", got: cfg.FallbackTimeout, want: 60 * time.Second},
		{name: "rewriter url", got: cfg.RewriterURL, want: "http://127.0.0.1:11434"},
		{name: "rewriter model", got: cfg.RewriterModel, want: "llama3.1"},
		{name: "fallback enabled", got: cfg.DisableFallback, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}

	t.Run("db dir is under the XDG data dir", func(t *testing.T) {
		t.Parallel()
		if cfg.DBDir != XDGDataDir() || filepath.Base(cfg.DBDir) != AppName {
			t.Errorf("DBDir = %q", cfg.DBDir)
		}
	})

	t.Run("defaults are valid", func(t *testing.T) {
		t.Parallel()
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() = %v", err)
		}
	})
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(c *Config)
		want   error
	}{
		{name: "zero concurrency", modify: func(c *Config) { c.Concurrency = 0 }, want: ErrInvalidConcurrency},
		{name: "negative fallback concurrency", modify: func(c *Config) { c.FallbackConcurrency = -1 }, want: ErrInvalidConcurrency},
		{name: "zero fallback timeout", modify: func(c *Config) { c.FallbackTimeout = 0 }, want: ErrInvalidFallbackTimeout},
		{name: "zero max links", modify: func(c *Config) { c.MaxLinksPerParagraph = 0 }, want: ErrInvalidDensity},
		{name: "negative spacing", modify: func(c *Config) { c.MinWordSpacing = -1 }, want: ErrInvalidDensity},
		{name: "zero spacing is valid", modify: func(c *Config) { c.MinWordSpacing = 0 }, want: nil},
		{name: "inverted budget", modify: func(c *Config) { c.BudgetMin, c.BudgetMax = 6, 5 }, want: ErrInvalidBudget},
		{name: "zero budget min is valid", modify: func(c *Config) { c.BudgetMin = 0 }, want: nil},
		{name: "zero diversity limit", modify: func(c *Config) { c.AnchorDiversityLimit = 0 }, want: ErrInvalidBudget},
		{name: "both report formats", modify: func(c *Config) { c.JSONReport, c.MarkdownReport = true, true }, want: ErrConflictingReportFormats},
		{
			name:   "first error wins",
			modify: func(c *Config) { c.Concurrency = 0; c.FallbackTimeout = 0 },
			want:   ErrInvalidConcurrency,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := NewConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.want == nil {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestConfigValidateInject(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	if err := cfg.ValidateInject(); !errors.Is(err, ErrNoPlan) {
		t.Errorf("expected ErrNoPlan, got %v", err)
	}

	cfg.PlanFile = "plan.json"
	if err := cfg.ValidateInject(); err != nil {
		t.Errorf("expected no error, got %v", err)
	}

	cfg.Concurrency = 0
	if err := cfg.ValidateInject(); !errors.Is(err, ErrInvalidConcurrency) {
		t.Errorf("expected ErrInvalidConcurrency, got %v", err)
	}
}

func TestConfigScope(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	cfg.InternalDomains = []string{"example.com"}
	cfg.InternalPaths = []string{"/blog/*"}
	scope := cfg.Scope()

	tests := []struct {
		href string
		want bool
	}{
		{href: "/blog/trail-shoes", want: true},
		{href: "https://example.com/blog/trail-shoes", want: true},
		{href: "https://example.com/shop/cart", want: false},
		{href: "https://other.org/blog/x", want: false},
	}
	for _, tt := range tests {
		if got := scope.IsInternal(tt.href); got != tt.want {
			t.Errorf("IsInternal(%q) = %v, want %v", tt.href, got, tt.want)
		}
	}
}

const sampleFile = `
internalDomains:
  - example.com
  - www.example.com
internalPaths:
  - /blog/*
density:
  maxLinksPerParagraph: 1
  minWordSpacing: 30
budget:
  min: 2
  max: 8
  diversityLimit: 4
rewriter:
  url: http://llm.internal:11434
  model: qwen2.5
  apiKey: secret
  timeout: 90s
  concurrency: 1
concurrency: 4
dbDir: /var/lib/linkweaver
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultConfigFile)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("parses every section", func(t *testing.T) {
		t.Parallel()

		cf, err := LoadConfigFile(writeFile(t, sampleFile))
		if err != nil {
			t.Fatalf("LoadConfigFile: %v", err)
		}
		if !slices.Equal(cf.InternalDomains, []string{"example.com", "www.example.com"}) {
			t.Errorf("InternalDomains = %v", cf.InternalDomains)
		}
		if cf.Density.MaxLinksPerParagraph != 1 || cf.Budget.Max != 8 {
			t.Errorf("density/budget = %+v %+v", cf.Density, cf.Budget)
		}
		if cf.Rewriter.Timeout != 90*time.Second || cf.Rewriter.Model != "qwen2.5" {
			t.Errorf("rewriter = %+v", cf.Rewriter)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(writeFile(t, "density: [unclosed"))
		if err == nil || errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected a parse error, got %v", err)
		}
	})
}

func TestFileApply(t *testing.T) {
	t.Parallel()

	t.Run("overrides set values", func(t *testing.T) {
		t.Parallel()

		cf, err := LoadConfigFile(writeFile(t, sampleFile))
		if err != nil {
			t.Fatalf("LoadConfigFile: %v", err)
		}
		cfg := NewConfig()
		cf.Apply(cfg)

		if cfg.MaxLinksPerParagraph != 1 || cfg.MinWordSpacing != 30 {
			t.Errorf("density = %d/%d", cfg.MaxLinksPerParagraph, cfg.MinWordSpacing)
		}
		if cfg.BudgetMin != 2 || cfg.BudgetMax != 8 || cfg.AnchorDiversityLimit != 4 {
			t.Errorf("budget = %d/%d/%d", cfg.BudgetMin, cfg.BudgetMax, cfg.AnchorDiversityLimit)
		}
		if cfg.RewriterURL != "http://llm.internal:11434" || cfg.RewriterAPIKey != "secret" {
			t.Errorf("rewriter = %s %s", cfg.RewriterURL, cfg.RewriterAPIKey)
		}
		if cfg.FallbackTimeout != 90*time.Second || cfg.FallbackConcurrency != 1 {
			t.Errorf("fallback = %v/%d", cfg.FallbackTimeout, cfg.FallbackConcurrency)
		}
		if cfg.Concurrency != 4 || cfg.DBDir != "/var/lib/linkweaver" {
			t.Errorf("concurrency/dbDir = %d %s", cfg.Concurrency, cfg.DBDir)
		}
	})

	t.Run("empty file keeps defaults", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		(&File{}).Apply(cfg)
		if cfg.MaxLinksPerParagraph != DefaultMaxLinksPerParagraph || cfg.RewriterModel != DefaultRewriterModel {
			t.Errorf("defaults changed: %+v", cfg)
		}
	})
}

func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("explicit path exists", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, "concurrency: 1\n")
		if got := FindConfigFile(path); got != path {
			t.Errorf("FindConfigFile = %q, want %q", got, path)
		}
	})

	t.Run("explicit path missing", func(t *testing.T) {
		t.Parallel()

		if got := FindConfigFile(filepath.Join(t.TempDir(), "missing")); got != "" {
			t.Errorf("FindConfigFile = %q, want empty", got)
		}
	})
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("applies the explicit file", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.ConfigFilePath = writeFile(t, "concurrency: 2\n")
		path, err := Load(cfg)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if path != cfg.ConfigFilePath || cfg.Concurrency != 2 {
			t.Errorf("path = %q, concurrency = %d", path, cfg.Concurrency)
		}
	})

	t.Run("missing explicit file is an error", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.ConfigFilePath = filepath.Join(t.TempDir(), "missing")
		if _, err := Load(cfg); !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})
}
