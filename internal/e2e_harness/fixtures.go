package e2e_harness

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lychee-technology/appforge"
	"github.com/lychee-technology/appforge/internal"
)

// TodoResponse is a model reply describing a small task tracker.
const TodoResponse = "Sure, here is the spec:\n```json\n" + `{
	"meta": {"name": "Team Todo", "description": "Shared task list"},
	"entities": [{"id": "task", "name": "Task", "properties": [
		{"name": "title", "type": "string", "required": true},
		{"name": "due", "type": "date"},
		{"name": "status", "type": "enum", "options": ["open", "done"]}
	]}],
	"views": [
		{"id": "tasks", "name": "Tasks", "type": "list", "entity": "task"},
		{"id": "new-task", "name": "New Task", "type": "form", "entity": "task"}
	],
	"actions": [{"id": "add", "name": "Add task", "trigger": "form_submit", "logic": "create a task"}],
	"patterns": ["view-list", "view-form"]
}` + "\n```"

// PrepareSpecStore creates the spec store tables in pool.
func PrepareSpecStore(ctx context.Context, pool *pgxpool.Pool, tables appforge.TableNames) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()
	return internal.EnsureSpecStoreSchema(ctx, conn, tables)
}

// S3ExportConfig returns an exporter config that targets the harness endpoint.
func S3ExportConfig(endpoint, bucket, prefix string) appforge.ExportConfig {
	return appforge.ExportConfig{
		Driver: "s3",
		S3: appforge.S3Config{
			Bucket:          bucket,
			Prefix:          prefix,
			Region:          "us-east-1",
			Endpoint:        endpoint,
			AccessKeyID:     s3AccessKey,
			SecretAccessKey: s3SecretKey,
			UsePathStyle:    true,
			CreateBucket:    true,
		},
		Timeout: 30 * time.Second,
	}
}

// ReadObject downloads bucket/key from the harness endpoint.
func ReadObject(ctx context.Context, endpoint, bucket, key string) ([]byte, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(s3AccessKey, s3SecretKey, "")),
		config.WithBaseEndpoint(endpoint),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) { o.UsePathStyle = true })

	out, err := client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return nil, fmt.Errorf("get object %s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}
