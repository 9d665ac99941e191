package pipeline

import (
	"context"
	"fmt"
	"time"

	"redditetl/pkg/checkpoint"
	"redditetl/pkg/extractor"
	"redditetl/pkg/logger"
	"redditetl/pkg/warehouse"
)

// Extractor produces the local dataset for a run date
type Extractor interface {
	Run(ctx context.Context, p extractor.Params) (*extractor.Result, error)
}

// Stager uploads a local dataset and returns its object URI
type Stager interface {
	Stage(ctx context.Context, localPath, date string) (string, error)
}

// Loader merges a staged dataset into the warehouse
type Loader interface {
	Load(ctx context.Context, sourceURI string) (*warehouse.Result, error)
}

// Options control how a run treats an existing checkpoint
type Options struct {
	// Resume skips stages already recorded for the date
	Resume bool
	// ForceRestart discards the date's checkpoint before running
	ForceRestart bool
}

// Report describes what a run did
type Report struct {
	Date      string
	Completed []string
	Skipped   []string
	Rows      int64
	TableRows int64
	Path      string
	URI       string
	Duration  time.Duration

	// Duplicates counts fetched submissions dropped for a repeated id
	Duplicates int
}

// Pipeline runs extract, upload and load in order for one date
type Pipeline struct {
	extractor   Extractor
	stager      Stager
	loader      Loader
	checkpoints *checkpoint.Manager
	params      extractor.Params
	logger      logger.Logger
}

// New creates a pipeline. params supplies the extraction settings; its Date
// is replaced by the date passed to Run.
func New(ext Extractor, stg Stager, ld Loader, checkpoints *checkpoint.Manager, params extractor.Params, log logger.Logger) *Pipeline {
	return &Pipeline{
		extractor:   ext,
		stager:      stg,
		loader:      ld,
		checkpoints: checkpoints,
		params:      params,
		logger:      log,
	}
}

// Run executes the stages for date, recording each completion. It stops at
// the first failing stage; later stages are not attempted.
func (p *Pipeline) Run(ctx context.Context, date string, opts Options) (*Report, error) {
	started := time.Now()
	log := p.logger.WithField("date", date)

	if opts.ForceRestart {
		if err := p.checkpoints.Delete(date); err != nil {
			return nil, err
		}
	}

	var (
		cp  *checkpoint.Checkpoint
		err error
	)
	if opts.Resume {
		cp, err = p.checkpoints.LoadOrCreate(date)
	} else {
		cp, err = p.checkpoints.Create(date)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to prepare checkpoint: %w", err)
	}

	report := &Report{Date: date}
	skip := func(stage string) (checkpoint.StageRecord, bool) {
		rec, ok := cp.Record(stage)
		if ok {
			log.WithField("stage", stage).Info("Skipping completed stage")
			report.Skipped = append(report.Skipped, stage)
		}
		return rec, ok
	}

	if rec, ok := skip(checkpoint.StageExtract); ok {
		report.Path, report.Rows = rec.Location, rec.Rows
	} else {
		params := p.params
		params.Date = date
		res, err := p.extractor.Run(ctx, params)
		if err != nil {
			return report, fmt.Errorf("extract stage failed: %w", err)
		}
		report.Path, report.Rows = res.Path, int64(len(res.Posts))
		report.Duplicates = res.Summary.Duplicates
		if err := p.checkpoints.RecordStage(cp, checkpoint.StageExtract, report.Rows, report.Path); err != nil {
			return report, err
		}
		report.Completed = append(report.Completed, checkpoint.StageExtract)
	}

	if rec, ok := skip(checkpoint.StageUpload); ok {
		report.URI = rec.Location
	} else {
		uri, err := p.stager.Stage(ctx, report.Path, date)
		if err != nil {
			return report, fmt.Errorf("upload stage failed: %w", err)
		}
		report.URI = uri
		if err := p.checkpoints.RecordStage(cp, checkpoint.StageUpload, report.Rows, uri); err != nil {
			return report, err
		}
		report.Completed = append(report.Completed, checkpoint.StageUpload)
	}

	if rec, ok := skip(checkpoint.StageLoad); ok {
		report.TableRows = rec.Rows
	} else {
		res, err := p.loader.Load(ctx, report.URI)
		if err != nil {
			return report, fmt.Errorf("load stage failed: %w", err)
		}
		report.TableRows = res.TableRows
		if err := p.checkpoints.RecordStage(cp, checkpoint.StageLoad, res.TableRows, res.Table); err != nil {
			return report, err
		}
		report.Completed = append(report.Completed, checkpoint.StageLoad)
	}

	report.Duration = time.Since(started)
	log.InfoWithFields("Pipeline completed", map[string]interface{}{
		"completed":  report.Completed,
		"skipped":    report.Skipped,
		"rows":       report.Rows,
		"table_rows": report.TableRows,
		"duration":   report.Duration,
	})
	return report, nil
}
