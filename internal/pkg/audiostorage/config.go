package audiostorage

import (
	"time"

	"github.com/marcwilhelm/echowave/internal/pkg/env"
)

// Config holds the S3 connection settings for the audio object store.
type Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	EndpointURL     string

	UploadExpiry   time.Duration
	PlaybackExpiry time.Duration
}

// NewConfigFromEnv reads the audio storage configuration from environment variables.
func NewConfigFromEnv() *Config {
	return &Config{
		Region:          env.GetEnv("AUDIO_S3_REGION", "us-east-1"),
		Bucket:          env.GetEnv("AUDIO_S3_BUCKET", ""),
		AccessKeyID:     env.GetEnv("AUDIO_S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("AUDIO_S3_SECRET_ACCESS_KEY", ""),
		EndpointURL:     env.GetEnv("AUDIO_S3_ENDPOINT_URL", ""),
		UploadExpiry:    15 * time.Minute,
		PlaybackExpiry:  1 * time.Hour,
	}
}

// IsEnabled reports whether the store is configured.
func (c *Config) IsEnabled() bool {
	return c.Bucket != "" && c.AccessKeyID != "" && c.SecretAccessKey != ""
}
