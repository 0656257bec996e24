package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/sirupsen/logrus"
)

// S3Config selects the bucket and, for S3-compatible stores, the endpoint.
type S3Config struct {
	Bucket        string
	Region        string
	Endpoint      string
	PublicBaseURL string
	Prefix        string
	// Credentials overrides the default AWS credential chain when set.
	Credentials *credentials.Credentials
}

// S3 uploads photos to an S3 bucket.
type S3 struct {
	cfg      S3Config
	uploader *s3manager.Uploader
	log      logrus.FieldLogger
}

// NewS3 creates an uploader from an AWS session.
func NewS3(cfg S3Config, log logrus.FieldLogger) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3: bucket required")
	}
	awsCfg := aws.Config{Region: aws.String(cfg.Region)}
	if cfg.Endpoint != "" {
		awsCfg.S3ForcePathStyle = aws.Bool(true)
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
	}
	if cfg.Credentials != nil {
		awsCfg.Credentials = cfg.Credentials
	}

	sess, err := session.NewSessionWithOptions(session.Options{Config: awsCfg})
	if err != nil {
		return nil, fmt.Errorf("s3: create session: %w", err)
	}
	return &S3{cfg: cfg, uploader: s3manager.NewUploader(sess), log: log}, nil
}

// Upload puts r at <prefix>/<name> and returns its URL, built from
// PublicBaseURL when configured.
func (s *S3) Upload(ctx context.Context, r io.Reader, name, contentType string) (string, error) {
	key := name
	if s.cfg.Prefix != "" {
		key = strings.Trim(s.cfg.Prefix, "/") + "/" + name
	}

	out, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3: upload %s: %w", key, err)
	}
	s.log.WithFields(logrus.Fields{"bucket": s.cfg.Bucket, "key": key}).Debug("photo uploaded")

	if s.cfg.PublicBaseURL != "" {
		return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + (&url.URL{Path: key}).EscapedPath(), nil
	}
	return out.Location, nil
}
