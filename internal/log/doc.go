// Package log builds the slog loggers used by linkweaver.
//
// Every logger goes through a SecureHandler, which masks:
//   - Authorization headers and bearer or basic credentials
//   - API keys logged under keys such as "apiKey" or "rewriter_api_key"
//   - Passwords and credential query parameters inside URLs
//
// Components never construct loggers themselves. They accept a
// *slog.Logger through a WithLogger option and default to slog.Default().
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Debug("rewriter configured", "url", cfg.RewriterURL, "apiKey", cfg.RewriterAPIKey)
//	// url=http://127.0.0.1:11434 apiKey=***REDACTED***
package log
