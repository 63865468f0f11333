package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageUploadExistsDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir, "http://localhost:8080/uploads/")
	require.NoError(t, err)
	ctx := context.Background()

	resp, err := store.Upload(ctx, &UploadRequest{
		Key:         "profile_images/u1/avatar.png",
		Reader:      strings.NewReader("png-bytes"),
		ContentType: "image/png",
	})
	require.NoError(t, err)
	assert.Equal(t, "profile_images/u1/avatar.png", resp.Key)
	assert.Equal(t, "http://localhost:8080/uploads/profile_images/u1/avatar.png", resp.URL)
	assert.Equal(t, int64(9), resp.Size)

	data, err := os.ReadFile(filepath.Join(dir, "profile_images", "u1", "avatar.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	ok, err := store.Exists(ctx, resp.Key)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.Delete(ctx, resp.Key))
	ok, err = store.Exists(ctx, resp.Key)
	require.NoError(t, err)
	assert.False(t, ok)

	// deleting twice is fine
	assert.NoError(t, store.Delete(ctx, resp.Key))
}

func TestLocalStorageRejectsEscapingKeys(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir(), "http://localhost/uploads")
	require.NoError(t, err)

	_, err = store.Upload(context.Background(), &UploadRequest{
		Key:    "../outside.png",
		Reader: strings.NewReader("x"),
	})
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestCleanKey(t *testing.T) {
	key, err := CleanKey("/profile_images//u1/a.png")
	require.NoError(t, err)
	assert.Equal(t, "profile_images/u1/a.png", key)

	_, err = CleanKey("")
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, err = CleanKey("a/../../b")
	assert.ErrorIs(t, err, ErrInvalidKey)
}
