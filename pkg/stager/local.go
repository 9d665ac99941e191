package stager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	errs "redditetl/pkg/errors"
	"redditetl/pkg/logger"
)

// Local stands in for the bucket on local runs: the dataset stays where
// the extractor wrote it and its file:// URI is handed to the loader
type Local struct {
	logger logger.Logger
}

// NewLocal creates a pass-through stager
func NewLocal(log logger.Logger) *Local {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Local{logger: log.WithField("stage", "upload")}
}

func (l *Local) Stage(_ context.Context, localPath, date string) (string, error) {
	abs, err := filepath.Abs(localPath)
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeStorage, err, "failed to resolve dataset path")
	}
	if _, err := os.Stat(abs); err != nil {
		if os.IsNotExist(err) {
			return "", errs.Wrap(errs.ErrorTypeNotFound, err, fmt.Sprintf("dataset for %s not found", date))
		}
		return "", errs.Wrap(errs.ErrorTypeStorage, err, "failed to stat dataset")
	}

	uri := "file://" + abs
	l.logger.WithField("uri", uri).Info("No bucket configured, loading from the local file")
	return uri, nil
}
