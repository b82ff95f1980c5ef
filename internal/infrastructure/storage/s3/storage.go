package s3

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kirillkom/contract-risk-assistant/internal/core/domain"
	"github.com/kirillkom/contract-risk-assistant/internal/infrastructure/resilience"
)

const (
	putOperation = "s3.put"
	getOperation = "s3.get"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Storage archives raw uploads in an S3-compatible bucket.
type Storage struct {
	client   *minio.Client
	bucket   string
	executor *resilience.Executor
}

func New(ctx context.Context, cfg Config, executor *resilience.Executor) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}
	return &Storage{client: client, bucket: cfg.Bucket, executor: executor}, nil
}

func (s *Storage) run(ctx context.Context, op string, fn func(context.Context) error) error {
	var err error
	if s.executor != nil {
		err = s.executor.Execute(ctx, op, fn, classifyS3Error)
	} else {
		err = fn(ctx)
	}
	if err != nil && classifyS3Error(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, op, err)
	}
	return err
}

// Save uploads with unknown size so the body can be streamed once; retries
// are only safe when the reader can seek back to its start.
func (s *Storage) Save(ctx context.Context, key string, data io.Reader) error {
	seeker, canRewind := data.(io.Seeker)
	attempt := 0
	return s.run(ctx, putOperation, func(ctx context.Context) error {
		if attempt > 0 {
			if !canRewind {
				return fmt.Errorf("put object %s: body cannot be replayed", key)
			}
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				return fmt.Errorf("rewind body: %w", err)
			}
		}
		attempt++
		_, err := s.client.PutObject(ctx, s.bucket, key, data, -1, minio.PutObjectOptions{
			ContentType: "application/octet-stream",
		})
		if err != nil {
			return fmt.Errorf("put object %s: %w", key, err)
		}
		return nil
	})
}

func (s *Storage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	var object *minio.Object
	err := s.run(ctx, getOperation, func(ctx context.Context) error {
		obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
		if err != nil {
			return fmt.Errorf("get object %s: %w", key, err)
		}
		if _, err := obj.Stat(); err != nil {
			_ = obj.Close()
			return fmt.Errorf("stat object %s: %w", key, err)
		}
		object = obj
		return nil
	})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "open stored upload", err)
		}
		return nil, err
	}
	return object, nil
}
