package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/tenantry/tenantry/internal/config"
)

// ObjectPutter is the subset of *s3.Client used by the archive shipper
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Shipper archives each entry as one JSON object in an S3-compatible bucket
// under <prefix>/<yyyy>/<mm>/<dd>/<timestamp>-<id>.json
type S3Shipper struct {
	client ObjectPutter
	bucket string
	prefix string
}

// NewS3Shipper creates an S3 archive shipper. Static credentials are used when
// both keys are configured; otherwise the AWS default credential chain applies
// (env vars, shared config, IAM role).
func NewS3Shipper(ctx context.Context, cfg *config.AuditS3Config) (*S3Shipper, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket name is required")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return NewS3ShipperWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewS3ShipperWithClient creates a shipper around an existing client
func NewS3ShipperWithClient(client ObjectPutter, bucket, prefix string) *S3Shipper {
	return &S3Shipper{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

// objectKey returns the archive key for entry
func (s *S3Shipper) objectKey(entry *LogEntry) string {
	ts := entry.Timestamp.UTC()
	name := fmt.Sprintf("%s-%s.json", ts.Format("20060102T150405.000000000Z"), entry.ID)
	return path.Join(s.prefix, ts.Format("2006"), ts.Format("01"), ts.Format("02"), name)
}

// Ship uploads the entry
func (s *S3Shipper) Ship(ctx context.Context, entry *LogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(entry)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload audit entry to S3: %w", err)
	}
	return nil
}

// Close is a no-op
func (s *S3Shipper) Close() error {
	return nil
}
