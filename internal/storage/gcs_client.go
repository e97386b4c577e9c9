package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	gcs "cloud.google.com/go/storage"
)

// GCSClient stores objects in a Google Cloud Storage bucket, which is also
// what Firebase Storage serves from.
type GCSClient struct {
	bucket *gcs.BucketHandle
	name   string
	now    func() time.Time
}

func NewGCSClient(bucket *gcs.BucketHandle, bucketName string) *GCSClient {
	return &GCSClient{bucket: bucket, name: bucketName, now: time.Now}
}

func (g *GCSClient) Upload(ctx context.Context, obj Object) (StoredObject, error) {
	now := g.now()
	name := objectName(obj, now)

	w := g.bucket.Object(name).NewWriter(ctx)
	w.ContentType = obj.ContentType
	w.Metadata = metadata(obj, now)

	if _, err := io.Copy(w, obj.Body); err != nil {
		_ = w.Close()
		return StoredObject{}, fmt.Errorf("upload to gcs: %w", err)
	}
	if err := w.Close(); err != nil {
		return StoredObject{}, fmt.Errorf("upload to gcs: %w", err)
	}

	return StoredObject{Name: name, URL: g.objectURL(name)}, nil
}

func (g *GCSClient) Delete(ctx context.Context, name string) error {
	if err := g.bucket.Object(name).Delete(ctx); err != nil {
		return fmt.Errorf("delete from gcs: %w", err)
	}
	return nil
}

func (g *GCSClient) objectURL(name string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", g.name, (&url.URL{Path: name}).EscapedPath())
}
