// Package blob stores payment attachments in S3-compatible object storage.
package blob

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"encaissement/internal/core/id"
)

// PresignExpiry is how long a presigned download link stays valid.
const PresignExpiry = 15 * time.Minute

// Config holds connection settings for an S3-compatible endpoint
// (MinIO in development, AWS in production).
type Config struct {
	Region       string
	Endpoint     string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// AttachmentStore saves and serves payment receipt attachments.
type AttachmentStore struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

// NewAttachmentStore builds the S3 client once and reuses it.
func NewAttachmentStore(ctx context.Context, cfg Config) (*AttachmentStore, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &AttachmentStore{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
	}, nil
}

// StorageKey builds a date-partitioned object key. The original filename
// is kept as a suffix so downloads keep a meaningful name.
func StorageKey(filename string) string {
	d := time.Now()
	return fmt.Sprintf("attachments/%d/%d/%d/%v-%s",
		d.Year(), d.Month(), d.Day(), id.New(), path.Base(filename))
}

// Save uploads an attachment and returns its storage key.
func (s *AttachmentStore) Save(ctx context.Context, filename, contentType string, body io.Reader) (string, error) {
	key := StorageKey(filename)

	input := &s3.PutObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = &contentType
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("upload attachment: %w", err)
	}

	return key, nil
}

// PresignGet returns a temporary download URL for a stored attachment.
func (s *AttachmentStore) PresignGet(ctx context.Context, key string) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	}, s3.WithPresignExpires(PresignExpiry))
	if err != nil {
		return "", fmt.Errorf("presign attachment: %w", err)
	}

	return req.URL, nil
}

// Delete removes a stored attachment. Missing objects are not an error.
func (s *AttachmentStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		return fmt.Errorf("delete attachment: %w", err)
	}

	return nil
}
