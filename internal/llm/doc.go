// Package llm talks to language model providers.
//
// Every provider implements Service: free-form completion with a system
// instruction, structured completion returning a benefits/drawbacks
// model.Finding, and image captioning. New selects the provider named in
// the configuration; Instrument wraps any Service with metrics and logging.
//
// Calls are never retried here. A failed call returns an error wrapping
// ErrModelCall and the caller decides whether the stage fails or falls back.
package llm
