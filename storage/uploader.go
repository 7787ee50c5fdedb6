package storage

import (
	"context"
	"io"
)

// UploadResult describes a stored object. Location is the public URL the
// object is reachable at.
type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

// FileUploader stores binary assets (banners, logos) under caller-chosen
// keys. Uploading to an existing key replaces the object.
type FileUploader interface {
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)
	Delete(ctx context.Context, key string) error
	GetPublicURL(key string) string
}
