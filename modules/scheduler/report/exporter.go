package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"timezone-scheduler/core/config"
	"timezone-scheduler/core/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// Uploader is the slice of the S3 client the exporter uses.
type Uploader interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Exporter writes verification reports to an S3 bucket.
type Exporter struct {
	client Uploader
	bucket string
	now    func() time.Time
}

// NewExporter builds an S3-backed exporter. It returns nil when no bucket is configured.
func NewExporter(cfg config.ReportConfig) *Exporter {
	if cfg.Bucket == "" {
		return nil
	}
	opts := s3.Options{
		Region: cfg.Region,
	}
	if cfg.AccessKeyID != "" {
		opts.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
		opts.UsePathStyle = true
	}
	return NewExporterWithClient(s3.New(opts), cfg.Bucket, nil)
}

func NewExporterWithClient(client Uploader, bucket string, now func() time.Time) *Exporter {
	if now == nil {
		now = time.Now
	}
	return &Exporter{client: client, bucket: bucket, now: now}
}

func (e *Exporter) Bucket() string {
	return e.bucket
}

// ObjectKey names a report: audits/<scope slug>/<utc timestamp>-<id>.json.
func ObjectKey(scope string, at time.Time, id string) string {
	if scope == "" {
		scope = "all"
	}
	return fmt.Sprintf("audits/%s/%s-%s.json", slug.Make(scope), at.UTC().Format("20060102T150405Z"), id)
}

// Export uploads report as JSON and returns its object key.
func (e *Exporter) Export(ctx context.Context, scope string, report any) (string, error) {
	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	key := ObjectKey(scope, e.now(), uuid.NewString())
	_, err = e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		logger.Error("Exporter:Export:PutObject", "bucket", e.bucket, "key", key, "error", err)
		return "", err
	}
	logger.Info("Exporter:Export:Done", "bucket", e.bucket, "key", key, "bytes", len(body))
	return key, nil
}
