// Package logger provides the structured logging interface used by every
// pipeline stage.
//
// It wraps zerolog. Console output is human readable unless the configured
// format is "json"; an optional log file always receives JSON lines.
//
//	err := logger.Initialize(&cfg.Logging)
//	log := logger.GetLogger().WithField("stage", "extract")
//	log.InfoWithFields("Fetched page", map[string]interface{}{"posts": 100})
//
// Tests use NewTestLogger to capture messages or NewNopLogger to discard them.
package logger
