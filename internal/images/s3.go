package images

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"mailblast/internal/config"
	"mailblast/internal/types"
)

// s3API is the narrow slice of the S3 client the store uses. Declared here so
// tests can substitute a fake.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store hosts uploads in an S3-compatible bucket. Objects are written
// public-read under an uploads/ prefix so recipients' mail clients can fetch
// them without credentials.
type S3Store struct {
	api    s3API
	cfg    config.S3Config
	logger *slog.Logger
}

// NewS3Store builds an S3Store from static credentials. A custom Endpoint
// switches the client to path-style addressing for S3-compatible services
// (MinIO, R2).
func NewS3Store(cfg config.S3Config, logger *slog.Logger) *S3Store {
	if logger == nil {
		logger = slog.Default()
	}

	opts := []func(*s3.Options){
		func(o *s3.Options) {
			o.Region = cfg.Region
			o.Credentials = credentials.NewStaticCredentialsProvider(
				cfg.AccessKey,
				cfg.SecretKey.Unmask(),
				"",
			)
		},
	}

	if cfg.Endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	client := s3.New(s3.Options{}, opts...)

	return &S3Store{
		api:    client,
		cfg:    cfg,
		logger: logger,
	}
}

// Save uploads the image and returns its public URL.
func (s *S3Store) Save(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	key := "uploads/" + objectKey(filename)

	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
		ACL:           s3types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", types.NewAppError(
			types.ErrCodeStorageUpload,
			"failed to upload image to object storage",
			err,
		)
	}

	url := s.publicURL(key)
	s.logger.Info("image uploaded",
		slog.String("store", "s3"),
		slog.String("bucket", s.cfg.Bucket),
		slog.String("key", key),
		slog.Int("bytes", len(data)),
	)
	return url, nil
}

// publicURL builds the unsigned URL for an uploaded object: the configured
// public prefix when set, the custom endpoint in path style when one is
// configured, the standard AWS URL otherwise.
func (s *S3Store) publicURL(key string) string {
	if s.cfg.PublicURL != "" {
		return strings.TrimSuffix(s.cfg.PublicURL, "/") + "/" + key
	}

	if s.cfg.Endpoint != "" {
		endpoint := strings.TrimSuffix(s.cfg.Endpoint, "/")
		return fmt.Sprintf("%s/%s/%s", endpoint, s.cfg.Bucket, key)
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, key)
}
