// Package storage holds note image bytes in S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/saurabhp75/epic-web/internal/config"
)

// ImageStore stores and retrieves note image objects
type ImageStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, keys []string) error
}

// S3ImageStore is an ImageStore backed by S3 or MinIO
type S3ImageStore struct {
	client *s3.Client
	bucket string
}

// NewS3ImageStore creates an image store. A non-empty endpoint switches the
// client into path-style addressing for MinIO compatibility.
func NewS3ImageStore(cfg *config.StorageConfig) (*S3ImageStore, error) {
	var client *s3.Client

	if cfg.Endpoint != "" {
		endpointURL := cfg.Endpoint
		if !strings.HasPrefix(endpointURL, "http://") && !strings.HasPrefix(endpointURL, "https://") {
			protocol := "http"
			if cfg.UseSSL {
				protocol = "https"
			}
			endpointURL = protocol + "://" + endpointURL
		}

		client = s3.New(s3.Options{
			Region: cfg.Region,
			Credentials: credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				"",
			),
			BaseEndpoint: aws.String(endpointURL),
			UsePathStyle: true,
		})
	} else {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		client = s3.NewFromConfig(awsCfg)
	}

	return &S3ImageStore{client: client, bucket: cfg.Bucket}, nil
}

// NewObjectKey builds a unique object key for an uploaded note image
func NewObjectKey(noteID string) string {
	return "notes/" + noteID + "/" + uuid.New().String()
}

func (s *S3ImageStore) Put(ctx context.Context, key, contentType string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to store object %s: %w", key, err)
	}
	return nil
}

// Get returns the object body and its content type. The caller must close
// the returned reader.
func (s *S3ImageStore) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch object %s: %w", key, err)
	}

	contentType := ""
	if output.ContentType != nil {
		contentType = *output.ContentType
	}

	return output.Body, contentType, nil
}

func (s *S3ImageStore) Delete(ctx context.Context, keys []string) error {
	// Deletions are issued individually; a note rarely has more than a
	// handful of images.
	for _, key := range keys {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return fmt.Errorf("failed to delete object %s: %w", key, err)
		}
	}
	return nil
}
