// Package audiostorage issues short-lived upload URLs and durable retrieval
// URLs for audio objects. The application never inspects audio bytes;
// clients upload directly against the presigned URL.
package audiostorage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Client wraps the S3 client with presigning for audio objects.
type Client struct {
	s3Client *s3.Client
	presign  *s3.PresignClient
	config   *Config
}

// NewClient creates a new audio storage client.
func NewClient(cfg *Config) (*Client, error) {
	if !cfg.IsEnabled() {
		return nil, fmt.Errorf("audio storage is not configured")
	}

	awsConfig, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			// S3-compatible stores (MinIO, B2) need path-style URLs
			o.UsePathStyle = true
		}
	})

	return &Client{
		s3Client: s3Client,
		presign:  s3.NewPresignClient(s3Client),
		config:   cfg,
	}, nil
}

// NewClientFromEnv creates a client from environment configuration.
func NewClientFromEnv() (*Client, error) {
	return NewClient(NewConfigFromEnv())
}

// NewObjectKey builds a unique object key for a user's upload.
func NewObjectKey(userID uint) string {
	return fmt.Sprintf("audio/%d/%s", userID, uuid.New().String())
}

// PresignUpload returns a short-lived URL the client PUTs the audio file to.
func (c *Client) PresignUpload(ctx context.Context, objectKey, contentType string) (string, error) {
	req, err := c.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.config.Bucket),
		Key:         aws.String(objectKey),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(c.config.UploadExpiry))
	if err != nil {
		return "", fmt.Errorf("presign upload for %s: %w", objectKey, err)
	}
	return req.URL, nil
}

// PresignPlayback returns a retrieval URL for a stored audio object.
func (c *Client) PresignPlayback(ctx context.Context, objectKey string) (string, error) {
	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.config.Bucket),
		Key:    aws.String(objectKey),
	}, s3.WithPresignExpires(c.config.PlaybackExpiry))
	if err != nil {
		return "", fmt.Errorf("presign playback for %s: %w", objectKey, err)
	}
	return req.URL, nil
}
