package logger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// LogStageStart logs the start of a pipeline stage with its parameters
func LogStageStart(log Logger, stage string, params map[string]interface{}) {
	log.WithField("stage", stage).InfoWithFields("Stage started", params)
}

// LogStageStop logs the end of a pipeline stage
func LogStageStop(log Logger, stage string, started time.Time, err error) {
	l := log.WithFields(map[string]interface{}{
		"stage":    stage,
		"duration": time.Since(started),
	})
	if err != nil {
		l.WithError(err).Error("Stage failed")
		return
	}
	l.Info("Stage completed")
}

// LogRateLimit logs rate limiting events
func LogRateLimit(log Logger, endpoint string, wait time.Duration) {
	log.WithFields(map[string]interface{}{
		"endpoint": endpoint,
		"wait":     wait,
		"action":   "rate_limited",
	}).Warn("Rate limit reached, backing off")
}

// LogExtractProgress logs how many posts have been collected so far
func LogExtractProgress(log Logger, subreddit string, collected, limit int) {
	fields := map[string]interface{}{
		"subreddit": subreddit,
		"collected": collected,
	}
	if limit > 0 {
		fields["limit"] = limit
		fields["percentage"] = fmt.Sprintf("%.1f%%", float64(collected)/float64(limit)*100)
	}
	log.InfoWithFields("Extraction progress", fields)
}

// LogMetrics logs per-operation metrics
func LogMetrics(log Logger, operation string, metrics map[string]interface{}) {
	fields := map[string]interface{}{
		"operation": operation,
		"type":      "metrics",
	}
	for k, v := range metrics {
		fields[k] = v
	}
	log.InfoWithFields("Metrics", fields)
}

// NewNopLogger creates a logger that discards everything
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}
