package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type LocalStorage struct {
	basePath string
	baseURL  string
}

func NewLocalStorage(basePath, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
		baseURL:  baseURL,
	}, nil
}

func (l *LocalStorage) Upload(ctx context.Context, request *UploadRequest) (*UploadResponse, error) {
	key, err := CleanKey(request.Key)
	if err != nil {
		return nil, err
	}
	filePath := l.path(key)

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to a temp file first so readers never see a partial image.
	tmp, err := os.CreateTemp(filepath.Dir(filePath), ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	size, err := io.Copy(tmp, request.Reader)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	return &UploadResponse{
		Key:  key,
		URL:  l.generateURL(key),
		Size: size,
	}, nil
}

func (l *LocalStorage) Delete(ctx context.Context, key string) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}
	if err := os.Remove(l.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (l *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	key, err := CleanKey(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(l.path(key))
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

func (l *LocalStorage) path(key string) string {
	return filepath.Join(l.basePath, filepath.FromSlash(key))
}

func (l *LocalStorage) generateURL(key string) string {
	return fmt.Sprintf("%s/%s", strings.TrimRight(l.baseURL, "/"), key)
}
