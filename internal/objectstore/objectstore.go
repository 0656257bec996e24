// Package objectstore uploads visitor photos to durable object storage.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"dcvisitor/internal/config"
)

// Uploader stores a blob under name and returns its durable URL.
type Uploader interface {
	Upload(ctx context.Context, r io.Reader, name, contentType string) (string, error)
}

// ErrNotConfigured is returned by Disabled.
var ErrNotConfigured = errors.New("objectstore: photo storage not configured")

// Disabled rejects every upload. Registration then degrades to records without photos.
type Disabled struct{}

func (Disabled) Upload(context.Context, io.Reader, string, string) (string, error) {
	return "", ErrNotConfigured
}

// PhotoName builds an object name of the form <unix millis>_<random>.<ext>.
func PhotoName(now time.Time, ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		ext = "jpg"
	}
	return fmt.Sprintf("%d_%s.%s", now.UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", "")[:12], ext)
}

// FromConfig selects the uploader named by PHOTO_BACKEND.
func FromConfig(cfg config.App, log logrus.FieldLogger) (Uploader, error) {
	switch cfg.PhotoBackend {
	case "cloudinary":
		if cfg.CloudinaryCloudName == "" || cfg.CloudinaryAPIKey == "" || cfg.CloudinaryAPISecret == "" {
			log.Warn("cloudinary not configured (CLOUDINARY_CLOUD_NAME / API_KEY / API_SECRET not set), photos disabled")
			return Disabled{}, nil
		}
		log.WithField("cloud", cfg.CloudinaryCloudName).Info("cloudinary photo storage configured")
		return NewCloudinary(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder), nil
	case "s3":
		s3, err := NewS3(S3Config{
			Bucket:        cfg.S3Bucket,
			Region:        cfg.S3Region,
			Endpoint:      cfg.S3Endpoint,
			PublicBaseURL: cfg.S3PublicBaseURL,
			// same folder layout as the cloudinary bucket
			Prefix: cfg.CloudinaryFolder,
		}, log)
		if err != nil {
			return nil, err
		}
		log.WithField("bucket", cfg.S3Bucket).Info("s3 photo storage configured")
		return s3, nil
	case "", "none":
		return Disabled{}, nil
	default:
		return nil, fmt.Errorf("objectstore: unknown PHOTO_BACKEND %q", cfg.PhotoBackend)
	}
}
