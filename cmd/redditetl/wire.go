package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"redditetl/pkg/auth"
	"redditetl/pkg/config"
	"redditetl/pkg/extractor"
	"redditetl/pkg/logger"
	"redditetl/pkg/pipeline"
	"redditetl/pkg/ratelimit"
	"redditetl/pkg/reddit"
	"redditetl/pkg/stager"
	"redditetl/pkg/storage"
	"redditetl/pkg/warehouse"
)

// resolveRedditCredentials fills missing Reddit credentials from the
// credential store
func resolveRedditCredentials(cfg *config.Config, log logger.Logger) error {
	if cfg.Reddit.ClientID != "" && cfg.Reddit.ClientSecret != "" {
		return nil
	}

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	creds, err := manager.Retrieve(cfg.Reddit.Account)
	if err != nil {
		return fmt.Errorf("no Reddit credentials configured (set them in the config file or run 'redditetl auth login'): %w", err)
	}

	cfg.Reddit.ClientID = creds.ClientID
	cfg.Reddit.ClientSecret = creds.ClientSecret
	if creds.UserAgent != "" {
		cfg.Reddit.UserAgent = creds.UserAgent
	}
	log.WithField("credentials", creds.Name).Debug("Using stored Reddit credentials")
	return nil
}

func newExtractor(cfg *config.Config, log logger.Logger) (*extractor.Extractor, *storage.Manager, error) {
	if err := resolveRedditCredentials(cfg, log); err != nil {
		return nil, nil, err
	}
	if err := cfg.RequireReddit(); err != nil {
		return nil, nil, err
	}

	store, err := storage.NewManager(cfg.Output.Directory)
	if err != nil {
		return nil, nil, err
	}

	client := reddit.NewClient(reddit.ClientConfig{
		ClientID:     cfg.Reddit.ClientID,
		ClientSecret: cfg.Reddit.ClientSecret,
		UserAgent:    cfg.Reddit.UserAgent,
		BaseURL:      cfg.Reddit.BaseURL,
		TokenURL:     cfg.Reddit.TokenURL,
		Timeout:      cfg.Reddit.Timeout,
		PageAttempts: cfg.Retry.MaxAttempts,
	}, ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute), log)

	return extractor.New(client, store, cfg, log), store, nil
}

func newS3Client(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	if err := cfg.RequireStorage(); err != nil {
		return nil, err
	}
	return stager.NewS3Client(ctx, cfg.AWS)
}

// newStager returns the S3 stager, or a pass-through one for local sqlite
// runs without a bucket
func newStager(ctx context.Context, cfg *config.Config, log logger.Logger) (pipeline.Stager, error) {
	if cfg.AWS.BucketName == "" && cfg.Warehouse.Driver == "sqlite" {
		return stager.NewLocal(log), nil
	}
	client, err := newS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return stager.New(client, cfg.AWS.BucketName, cfg.AWS.Region, log), nil
}

// sourceOpener reads s3:// sources through the S3 client, created on first
// use, and everything else from the local filesystem
func sourceOpener(cfg *config.Config) warehouse.Opener {
	var client *s3.Client
	return func(ctx context.Context, uri string) (io.ReadCloser, error) {
		if !strings.HasPrefix(uri, "s3://") {
			return warehouse.OpenFile(ctx, uri)
		}
		if client == nil {
			c, err := newS3Client(ctx, cfg)
			if err != nil {
				return nil, err
			}
			client = c
		}
		return stager.OpenObject(ctx, client, uri)
	}
}

func newLoader(ctx context.Context, cfg *config.Config, log logger.Logger) (*warehouse.Loader, *sql.DB, error) {
	if err := cfg.RequireWarehouse(); err != nil {
		return nil, nil, err
	}

	db, dialect, err := warehouse.Open(ctx, cfg.Warehouse, sourceOpener(cfg))
	if err != nil {
		return nil, nil, err
	}
	return warehouse.NewLoader(db, dialect, cfg.Warehouse, log.WithField("stage", "load")), db, nil
}

// defaultSource is where the load stage reads the dataset of a date from
func defaultSource(cfg *config.Config, date string) (string, error) {
	if cfg.AWS.BucketName != "" {
		return stager.URI(cfg.AWS.BucketName, date), nil
	}
	if cfg.Warehouse.Driver == "sqlite" {
		store, err := storage.NewManager(cfg.Output.Directory)
		if err != nil {
			return "", err
		}
		return store.Path(date), nil
	}
	return "", fmt.Errorf("aws bucket_name is required to locate the staged dataset")
}
