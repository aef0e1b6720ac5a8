// Package rewrite provides the client for the text-rewriting service.
//
// The service is any Ollama-compatible /api/chat endpoint. The client sends
// the paragraph, the target URL and the anchor text together with a system
// prompt that states the contract, and returns whatever paragraph comes
// back. Checking that the answer honors the contract is the caller's job.
package rewrite
