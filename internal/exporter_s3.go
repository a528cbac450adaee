package internal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/lychee-technology/appforge"
	"go.uber.org/zap"
)

type bucketAPI interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

type objectUploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Exporter uploads documents to a bucket. Repeated upload failures open
// a circuit breaker so later exports fail fast.
type S3Exporter struct {
	bucket       string
	prefix       string
	createBucket bool
	timeout      time.Duration

	buckets  bucketAPI
	uploader objectUploader
	breaker  *CircuitBreaker

	ensureMu sync.Mutex
	ensured  bool
}

var _ appforge.Exporter = (*S3Exporter)(nil)

// NewS3Exporter builds an exporter from cfg using the default AWS credential
// chain, or static keys when both are set.
func NewS3Exporter(ctx context.Context, cfg appforge.ExportConfig) (*S3Exporter, error) {
	s3cfg := cfg.S3
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(s3cfg.Region),
	}
	if s3cfg.AccessKeyID != "" && s3cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s3cfg.AccessKeyID, s3cfg.SecretAccessKey, ""),
		))
	}
	if s3cfg.Endpoint != "" {
		loadOpts = append(loadOpts, config.WithBaseEndpoint(s3cfg.Endpoint))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = s3cfg.UsePathStyle
	})
	return newS3Exporter(client, manager.NewUploader(client), s3cfg, cfg.Timeout), nil
}

func newS3Exporter(buckets bucketAPI, uploader objectUploader, cfg appforge.S3Config, timeout time.Duration) *S3Exporter {
	return &S3Exporter{
		bucket:       cfg.Bucket,
		prefix:       cfg.Prefix,
		createBucket: cfg.CreateBucket,
		timeout:      timeout,
		buckets:      buckets,
		uploader:     uploader,
		breaker:      NewCircuitBreaker(3, time.Minute, 30*time.Second),
	}
}

func (e *S3Exporter) objectKey(name string) string {
	return strings.TrimPrefix(path.Join(e.prefix, path.Base(name)), "/")
}

// Export uploads html under prefix/name and returns its s3:// location.
func (e *S3Exporter) Export(ctx context.Context, name string, html []byte) (string, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	key := e.objectKey(name)
	err := e.breaker.Do(func() error {
		if err := e.ensureBucket(ctx); err != nil {
			return err
		}
		_, err := e.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(e.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(html),
			ContentType: aws.String("text/html; charset=utf-8"),
		})
		if err != nil {
			return fmt.Errorf("s3 upload: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrCircuitOpen) {
			return "", appforge.NewExportError("s3 export temporarily disabled after repeated failures", err)
		}
		zap.S().Warnw("s3 export failed", "bucket", e.bucket, "key", key, "error", err)
		return "", appforge.NewExportError("failed to upload document", err)
	}
	return fmt.Sprintf("s3://%s/%s", e.bucket, key), nil
}

// ensureBucket creates the bucket on first use when configured to.
func (e *S3Exporter) ensureBucket(ctx context.Context) error {
	if !e.createBucket {
		return nil
	}
	e.ensureMu.Lock()
	defer e.ensureMu.Unlock()
	if e.ensured {
		return nil
	}

	if _, err := e.buckets.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(e.bucket)}); err != nil {
		if _, cerr := e.buckets.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(e.bucket)}); cerr != nil {
			var apiErr smithy.APIError
			if !errors.As(cerr, &apiErr) {
				return fmt.Errorf("create bucket: %w", cerr)
			}
			if code := apiErr.ErrorCode(); code != "BucketAlreadyOwnedByYou" && code != "BucketAlreadyExists" {
				return fmt.Errorf("create bucket: %w", cerr)
			}
		}
	}
	e.ensured = true
	return nil
}
