// Package config holds linkweaver's settings: density and budget limits,
// the internal-link scope, concurrency, the rewriter endpoint and report
// output. Values come from NewConfig defaults, the optional .linkweaver YAML
// file and CLI flags, in that order of precedence from lowest to highest.
package config
