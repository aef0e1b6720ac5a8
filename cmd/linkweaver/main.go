// Package main provides the entry point for the linkweaver CLI.
//
// linkweaver injects planned internal links into HTML content, validates the
// result per topic cluster and reports what it did.
//
// Usage:
//
//	linkweaver inject --plan plan.json
//	linkweaver validate
//	linkweaver strip --scope trail-running
//
// See --help for all available options.
package main

func main() {
	Execute()
}
