package internal

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// HealthCheck confirms the export bucket is reachable with the configured
// credentials. It does not trip the circuit breaker.
func (e *S3Exporter) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := e.buckets.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(e.bucket)}); err != nil {
		return fmt.Errorf("s3 bucket %s unreachable: %w", e.bucket, err)
	}
	if e.breaker.IsOpen() {
		return fmt.Errorf("s3 exporter circuit is open")
	}
	return nil
}
