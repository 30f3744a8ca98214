package packaging

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/chr1sbest/pipegate/internal/config"
)

// S3Publisher uploads bundle zips to an S3-compatible bucket and returns a
// presigned download link.
type S3Publisher struct {
	client     *minio.Client
	bucketName string
	region     string
	prefix     string
	ttl        time.Duration
	initOnce   sync.Once
	initErr    error
}

func NewS3Publisher(cfg config.S3Config) (*S3Publisher, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	return &S3Publisher{
		client:     client,
		bucketName: bucket,
		region:     region,
		prefix:     strings.Trim(cfg.Prefix, "/"),
		ttl:        cfg.GetPresignTTL(),
	}, nil
}

func (s *S3Publisher) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucketName)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

func (s *S3Publisher) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

// Publish uploads the file at filePath under key.
func (s *S3Publisher) Publish(ctx context.Context, key, filePath string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("object key is required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("ensure bucket: %w", err)
	}

	objKey := s.objectKey(key)
	if _, err := s.client.FPutObject(ctx, s.bucketName, objKey, filePath, minio.PutObjectOptions{
		ContentType: "application/zip",
	}); err != nil {
		return "", fmt.Errorf("upload %s: %w", objKey, err)
	}

	link, err := s.client.PresignedGetObject(ctx, s.bucketName, objKey, s.ttl, nil)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", objKey, err)
	}
	return link.String(), nil
}
