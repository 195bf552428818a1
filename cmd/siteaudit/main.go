// Package main provides the entry point for the siteaudit CLI.
//
// siteaudit crawls a nonprofit's website, reviews every page from the point
// of view of each stakeholder group with a language model, and writes one
// report per stakeholder together with a run summary.
//
// Usage:
//
//	siteaudit audit <organization|site-url>...
//	siteaudit history <organization>
//
// See --help for all available options.
package main

func main() {
	Execute()
}
