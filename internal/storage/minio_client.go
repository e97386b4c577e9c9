package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"snapjournal/internal/config"
)

type MinIOClient struct {
	client *minio.Client
	config config.MinIO
	now    func() time.Time
}

// NewMinIOClient connects to MinIO and creates the bucket when missing.
func NewMinIOClient(ctx context.Context, cfg config.MinIO) (*MinIOClient, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.BucketName, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.BucketName, err)
		}
	}

	return &MinIOClient{client: client, config: cfg, now: time.Now}, nil
}

func (m *MinIOClient) Upload(ctx context.Context, obj Object) (StoredObject, error) {
	now := m.now()
	name := objectName(obj, now)

	_, err := m.client.PutObject(ctx, m.config.BucketName, name, obj.Body, obj.Size,
		minio.PutObjectOptions{
			ContentType:  obj.ContentType,
			UserMetadata: metadata(obj, now),
		})
	if err != nil {
		return StoredObject{}, fmt.Errorf("upload to minio: %w", err)
	}

	return StoredObject{Name: name, URL: m.objectURL(name)}, nil
}

func (m *MinIOClient) Delete(ctx context.Context, name string) error {
	err := m.client.RemoveObject(ctx, m.config.BucketName, name, minio.RemoveObjectOptions{GovernanceBypass: true})
	if err != nil {
		return fmt.Errorf("delete from minio: %w", err)
	}
	return nil
}

func (m *MinIOClient) objectURL(name string) string {
	return fmt.Sprintf("%s/%s/%s", m.config.PublicURL, m.config.BucketName, name)
}
