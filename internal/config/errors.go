package config

import "errors"

// Configuration validation errors returned by Config.Validate.
//
// Design decision: Sentinel errors let the CLI and tests use errors.Is
// while the messages still name the offending option.
var (
	// ErrNoPlan is returned when the inject command runs without --plan.
	ErrNoPlan = errors.New("no plan specified: use --plan to pass the planner output")

	// ErrInvalidConcurrency is returned when the page or fallback
	// concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidFallbackTimeout is returned when the rewrite timeout is not
	// positive.
	ErrInvalidFallbackTimeout = errors.New("invalid fallback timeout: must be positive")

	// ErrInvalidDensity is returned when the per-paragraph link cap is not
	// positive or the word spacing is negative.
	ErrInvalidDensity = errors.New("invalid density: max links must be positive and word spacing non-negative")

	// ErrInvalidBudget is returned when the link budget is inverted or the
	// diversity limit is not positive.
	ErrInvalidBudget = errors.New("invalid budget: need 0 <= min <= max, max > 0 and a positive diversity limit")

	// ErrConflictingReportFormats is returned when both --json and
	// --markdown are given.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)
