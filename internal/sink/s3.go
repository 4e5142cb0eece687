package sink

import (
	"bytes"
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/gzip"

	"github.com/malindarathnayake/AuditFlux/internal/config"
	"github.com/malindarathnayake/AuditFlux/internal/event"
	"github.com/malindarathnayake/AuditFlux/internal/observability"
)

// S3ArchiveSink archives one gzip-compressed JSON object per event. The
// sequence counter keeps keys unique when several events share a
// timestamp.
type S3ArchiveSink struct {
	client  *s3.Client
	bucket  string
	prefix  string
	timeout time.Duration
	seq     uint64
	logger  *observability.Logger
}

func NewS3ArchiveSink(cfg config.S3Sink, logger *observability.Logger) (*S3ArchiveSink, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("missing s3 bucket")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	logger.Info("S3 archive session opened", map[string]interface{}{
		"region": cfg.Region,
		"bucket": cfg.Bucket,
		"prefix": cfg.Prefix,
	})

	return &S3ArchiveSink{
		client:  s3.NewFromConfig(awsCfg),
		bucket:  cfg.Bucket,
		prefix:  cfg.Prefix,
		timeout: timeout,
		logger:  logger,
	}, nil
}

func (s *S3ArchiveSink) Submit(ev *event.Event, payload []byte) error {
	frame, err := encodeRecord(ev, payload)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(frame); err != nil {
		return fmt.Errorf("failed to compress record: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to compress record: %w", err)
	}

	now := time.Now().UTC()
	n := atomic.AddUint64(&s.seq, 1)
	key := fmt.Sprintf("%s%s/%d-%06d.json.gz", s.prefix, now.Format("2006/01/02"), now.Unix(), n)

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(buf.Bytes()),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return nil
}

func (s *S3ArchiveSink) Close() error { return nil }
