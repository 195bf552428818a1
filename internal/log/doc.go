// Package log provides slog based logging that redacts credentials.
//
// siteaudit handles model provider API keys, object storage secrets and
// arbitrary site headers. SecureHandler keeps them out of the log output by
// masking attributes with sensitive key names (api_key, authorization,
// cookie, ...) and values that look like credentials (OpenAI "sk-" keys,
// Google "AIza" keys, bearer tokens, JWTs).
//
// # Usage
//
//	logger := log.New(os.Stderr, log.Options{Verbose: true})
//	logger.Info("calling model", "provider", "openai", "api_key", key) // api_key is masked
//	slog.SetDefault(logger)
package log
