package utils

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// NewGCSClient prefers ADC (Cloud Run service account / GOOGLE_APPLICATION_CREDENTIALS).
// credJSON is for running locally with an explicit key.
func NewGCSClient(ctx context.Context, credJSON string) (*storage.Client, error) {
	if strings.TrimSpace(credJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	}
	return storage.NewClient(ctx)
}

// ObjectUploader stores one object.
type ObjectUploader interface {
	Upload(ctx context.Context, objectName string, data []byte, contentType string) error
}

// GCSUploader writes objects into a single bucket.
type GCSUploader struct {
	client *storage.Client
	bucket string
}

func NewGCSUploader(client *storage.Client, bucket string) (*GCSUploader, error) {
	if bucket == "" {
		return nil, errors.New("GCS_BUCKET is required")
	}
	return &GCSUploader{client: client, bucket: bucket}, nil
}

func (u *GCSUploader) Upload(ctx context.Context, objectName string, data []byte, contentType string) error {
	wc := u.client.Bucket(u.bucket).Object(objectName).NewWriter(ctx)
	wc.ContentType = contentType

	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return fmt.Errorf("failed to upload bytes to Google Cloud Storage: %v", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %v", err)
	}
	return nil
}

// ReportObjectName is where a monitoring snapshot taken at t is archived.
func ReportObjectName(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("monitor-reports/%04d/%02d/%02d/%d.json", t.Year(), t.Month(), t.Day(), t.Unix())
}

// ArchiveReport uploads a JSON snapshot and returns its object name.
func ArchiveReport(ctx context.Context, u ObjectUploader, t time.Time, data []byte) (string, error) {
	name := ReportObjectName(t)
	if err := u.Upload(ctx, name, data, "application/json"); err != nil {
		return "", err
	}
	return name, nil
}
