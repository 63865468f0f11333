package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

var ErrInvalidKey = errors.New("invalid object key")

// Provider stores public objects such as profile images.
type Provider interface {
	Upload(ctx context.Context, request *UploadRequest) (*UploadResponse, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

type UploadRequest struct {
	Key          string    `json:"key"`
	Reader       io.Reader `json:"-"`
	ContentType  string    `json:"content_type"`
	Size         int64     `json:"size"`
	CacheControl string    `json:"cache_control"`
}

type UploadResponse struct {
	Key  string `json:"key"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// CleanKey normalises a slash separated object key and rejects keys that
// are empty or escape the storage root.
func CleanKey(key string) (string, error) {
	cleaned := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." || strings.Contains(key, "..") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}
