package media

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/threadline/backend/internal/models"
)

// UploadInput is one file to store on the asset host
type UploadInput struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Asset identifies a stored file
type Asset struct {
	PublicID string
	URL      string
	Type     models.MediaType
}

// AssetHost stores and releases media files
type AssetHost interface {
	Upload(ctx context.Context, in UploadInput) (Asset, error)
	Delete(ctx context.Context, publicID string, t models.MediaType) error
}

// MinIOConfig holds the object storage connection settings
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinIOHost implements AssetHost on a MinIO/S3 bucket
type MinIOHost struct {
	client *minio.Client
	bucket string
	scheme string
	host   string
}

// NewMinIOHost connects to the object store and makes sure the bucket exists
func NewMinIOHost(ctx context.Context, cfg MinIOConfig) (*MinIOHost, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}
	}

	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return &MinIOHost{client: client, bucket: cfg.Bucket, scheme: scheme, host: cfg.Endpoint}, nil
}

// Upload stores the file under posts/<yyyy>/<mm>/<uuid><ext>
func (m *MinIOHost) Upload(ctx context.Context, in UploadInput) (Asset, error) {
	contentType := in.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(strings.ToLower(filepath.Ext(in.FileName)))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	objectName := ObjectName(in.FileName, time.Now())

	_, err := m.client.PutObject(ctx, m.bucket, objectName, in.Body, in.Size, minio.PutObjectOptions{
		ContentType: contentType,
		UserMetadata: map[string]string{
			"original-filename": in.FileName,
		},
	})
	if err != nil {
		return Asset{}, fmt.Errorf("failed to upload to MinIO: %w", err)
	}

	return Asset{
		PublicID: objectName,
		URL:      fmt.Sprintf("%s://%s/%s/%s", m.scheme, m.host, m.bucket, objectName),
		Type:     models.MediaTypeFromContentType(contentType),
	}, nil
}

// Delete removes a stored object
func (m *MinIOHost) Delete(ctx context.Context, publicID string, _ models.MediaType) error {
	if err := m.client.RemoveObject(ctx, m.bucket, publicID, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete from MinIO: %w", err)
	}
	return nil
}

// ObjectName derives a collision-free storage key for an upload
func ObjectName(fileName string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "" {
		ext = ".bin"
	}
	return fmt.Sprintf("posts/%d/%02d/%s%s", now.Year(), now.Month(), uuid.New().String(), ext)
}
