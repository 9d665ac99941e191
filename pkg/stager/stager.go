package stager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	errs "redditetl/pkg/errors"
	"redditetl/pkg/logger"
	"redditetl/pkg/models"
)

// defaultRegion is the region whose buckets are created without a
// location constraint
const defaultRegion = "us-east-1"

// Stager uploads local datasets to the bucket
type Stager struct {
	api    ObjectAPI
	bucket string
	region string
	logger logger.Logger
}

// New creates a stager for bucket in region
func New(api ObjectAPI, bucket, region string, log logger.Logger) *Stager {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Stager{
		api:    api,
		bucket: bucket,
		region: region,
		logger: log.WithFields(map[string]interface{}{"stage": "upload", "bucket": bucket}),
	}
}

// Key is the object key of the dataset for a run date
func Key(date string) string {
	return models.DatasetFile(date)
}

// URI is the s3:// location of the dataset for a run date
func URI(bucket, date string) string {
	return fmt.Sprintf("s3://%s/%s", bucket, Key(date))
}

// ParseURI splits an s3://bucket/key URI
func ParseURI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 URI: %q", uri)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 URI %q needs both bucket and key", uri)
	}
	return bucket, key, nil
}

// Stage uploads localPath as the dataset for date and returns its URI. A
// missing bucket is created and the upload retried once.
func (s *Stager) Stage(ctx context.Context, localPath, date string) (string, error) {
	started := time.Now()
	key := Key(date)
	logger.LogStageStart(s.logger, "upload", map[string]interface{}{
		"file": localPath,
		"key":  key,
	})

	uri, err := s.stage(ctx, localPath, key)
	logger.LogStageStop(s.logger, "upload", started, err)
	return uri, err
}

func (s *Stager) stage(ctx context.Context, localPath, key string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", errs.Wrap(errs.ErrorTypeNotFound, err, "source file does not exist")
		}
		return "", errs.Wrap(errs.ErrorTypeStorage, err, "failed to open source file")
	}
	defer f.Close()

	err = s.put(ctx, f, key)
	if err != nil && isMissingBucket(err) {
		s.logger.Warn("Bucket does not exist, creating it")
		if err := s.createBucket(ctx); err != nil {
			return "", err
		}
		if _, seekErr := f.Seek(0, io.SeekStart); seekErr != nil {
			return "", errs.Wrap(errs.ErrorTypeStorage, seekErr, "failed to rewind source file")
		}
		err = s.put(ctx, f, key)
	}
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeStorage, err, fmt.Sprintf("failed to upload %s", key))
	}

	uri := fmt.Sprintf("s3://%s/%s", s.bucket, key)
	s.logger.InfoWithFields("Uploaded dataset", map[string]interface{}{"uri": uri})
	return uri, nil
}

func (s *Stager) put(ctx context.Context, body io.Reader, key string) error {
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String("text/csv"),
	})
	return err
}

func (s *Stager) createBucket(ctx context.Context) error {
	input := &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}
	if s.region != "" && s.region != defaultRegion {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.region),
		}
	}

	_, err := s.api.CreateBucket(ctx, input)
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return errs.Wrap(errs.ErrorTypeStorage, err, "failed to create bucket")
	}

	s.logger.InfoWithFields("Created bucket", map[string]interface{}{"region": s.region})
	return nil
}

// Open streams a staged object back
func (s *Stager) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	return OpenObject(ctx, s.api, uri)
}

// OpenObject streams the object at an s3:// URI
func OpenObject(ctx context.Context, api ObjectAPI, uri string) (io.ReadCloser, error) {
	bucket, key, err := ParseURI(uri)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeConfig, err, "invalid source URI")
	}

	out, err := api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isMissingBucket(err) || isMissingKey(err) {
			return nil, errs.Wrap(errs.ErrorTypeNotFound, err, fmt.Sprintf("object %s not found", uri))
		}
		return nil, errs.Wrap(errs.ErrorTypeStorage, err, fmt.Sprintf("failed to read %s", uri))
	}
	return out.Body, nil
}

func isMissingBucket(err error) bool {
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchBucket" {
		return true
	}
	return isStatus(err, 404)
}

func isStatus(err error, code int) bool {
	var status interface{ HTTPStatusCode() int }
	return errors.As(err, &status) && status.HTTPStatusCode() == code
}

func isMissingKey(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return isStatus(err, 404)
}
