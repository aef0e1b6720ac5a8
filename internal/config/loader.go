package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".linkweaver"

// File represents the structure of the .linkweaver configuration file.
// Zero values mean "not set" and leave the Config untouched.
type File struct {
	// InternalDomains are hosts treated as internal, e.g. "example.com".
	InternalDomains []string `yaml:"internalDomains,omitempty"`

	// InternalPaths are path globs such as "/blog/*".
	InternalPaths []string `yaml:"internalPaths,omitempty"`

	Density  DensityFile  `yaml:"density,omitempty"`
	Budget   BudgetFile   `yaml:"budget,omitempty"`
	Rewriter RewriterFile `yaml:"rewriter,omitempty"`

	// Concurrency is the number of pages processed at once.
	Concurrency int `yaml:"concurrency,omitempty"`

	// DBDir overrides the content store directory.
	DBDir string `yaml:"dbDir,omitempty"`
}

// DensityFile is the density section of the configuration file.
type DensityFile struct {
	MaxLinksPerParagraph int `yaml:"maxLinksPerParagraph,omitempty"`
	MinWordSpacing       int `yaml:"minWordSpacing,omitempty"`
}

// BudgetFile is the budget section of the configuration file.
type BudgetFile struct {
	Min            int `yaml:"min,omitempty"`
	Max            int `yaml:"max,omitempty"`
	DiversityLimit int `yaml:"diversityLimit,omitempty"`
}

// RewriterFile is the rewriter section of the configuration file.
type RewriterFile struct {
	URL         string        `yaml:"url,omitempty"`
	Model       string        `yaml:"model,omitempty"`
	APIKey      string        `yaml:"apiKey,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
	Concurrency int           `yaml:"concurrency,omitempty"`
	Disabled    bool          `yaml:"disabled,omitempty"`
}

// LoadConfigFile loads a configuration file.
// If the file does not exist, it returns ErrConfigNotFound. Callers decide
// whether that matters based on whether the path was given explicitly.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &cf, nil
}

// Apply copies every value set in the file onto c.
func (cf *File) Apply(c *Config) {
	if len(cf.InternalDomains) > 0 {
		c.InternalDomains = cf.InternalDomains
	}
	if len(cf.InternalPaths) > 0 {
		c.InternalPaths = cf.InternalPaths
	}
	if cf.Density.MaxLinksPerParagraph != 0 {
		c.MaxLinksPerParagraph = cf.Density.MaxLinksPerParagraph
	}
	if cf.Density.MinWordSpacing != 0 {
		c.MinWordSpacing = cf.Density.MinWordSpacing
	}
	if cf.Budget.Min != 0 {
		c.BudgetMin = cf.Budget.Min
	}
	if cf.Budget.Max != 0 {
		c.BudgetMax = cf.Budget.Max
	}
	if cf.Budget.DiversityLimit != 0 {
		c.AnchorDiversityLimit = cf.Budget.DiversityLimit
	}
	if cf.Rewriter.URL != "" {
		c.RewriterURL = cf.Rewriter.URL
	}
	if cf.Rewriter.Model != "" {
		c.RewriterModel = cf.Rewriter.Model
	}
	if cf.Rewriter.APIKey != "" {
		c.RewriterAPIKey = cf.Rewriter.APIKey
	}
	if cf.Rewriter.Timeout != 0 {
		c.FallbackTimeout = cf.Rewriter.Timeout
	}
	if cf.Rewriter.Concurrency != 0 {
		c.FallbackConcurrency = cf.Rewriter.Concurrency
	}
	if cf.Rewriter.Disabled {
		c.DisableFallback = true
	}
	if cf.Concurrency != 0 {
		c.Concurrency = cf.Concurrency
	}
	if cf.DBDir != "" {
		c.DBDir = cf.DBDir
	}
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .linkweaver in the current directory
// 3. Look for .linkweaver in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		if p := filepath.Join(cwd, DefaultConfigFile); exists(p) {
			return p
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		if p := filepath.Join(home, DefaultConfigFile); exists(p) {
			return p
		}
	}

	return ""
}

// Load merges the configuration file found by FindConfigFile into c.
// A missing file is only an error when c.ConfigFilePath names it. It
// returns the path that was applied, if any.
func Load(c *Config) (string, error) {
	path := FindConfigFile(c.ConfigFilePath)
	if path == "" {
		if c.ConfigFilePath != "" {
			return "", fmt.Errorf("%w: %s", ErrConfigNotFound, c.ConfigFilePath)
		}
		return "", nil
	}

	cf, err := LoadConfigFile(path)
	if err != nil {
		if errors.Is(err, ErrConfigNotFound) && c.ConfigFilePath == "" {
			return "", nil
		}
		return "", err
	}
	cf.Apply(c)
	return path, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
