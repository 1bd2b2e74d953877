package transfer

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("portrait-bytes"))
	}))
	defer srv.Close()

	c := New(nil, nil)
	dest := filepath.Join(t.TempDir(), "image")
	require.NoError(t, c.Resolve(context.Background(), srv.URL, dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "portrait-bytes", string(data))
}

func TestResolveHTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(nil, nil)
	err := c.Resolve(context.Background(), srv.URL, filepath.Join(t.TempDir(), "image"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestResolveDataURI(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("audio-bytes"))

	c := New(nil, nil)
	dest := filepath.Join(t.TempDir(), "audio")
	require.NoError(t, c.Resolve(context.Background(), "data:audio/mpeg;base64,"+payload, dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "audio-bytes", string(data))
}

func TestResolveRawBase64(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("raw-bytes"))

	c := New(nil, nil)
	dest := filepath.Join(t.TempDir(), "input")
	require.NoError(t, c.Resolve(context.Background(), payload, dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "raw-bytes", string(data))
}

func TestResolveMalformedInline(t *testing.T) {
	c := New(nil, nil)
	err := c.Resolve(context.Background(), "not-valid-base64!!!", filepath.Join(t.TempDir(), "x"))
	assert.Error(t, err)

	err = c.Resolve(context.Background(), "data:video/mp4;base64", filepath.Join(t.TempDir(), "y"))
	assert.Error(t, err)
}

type stubStore struct {
	url string
	err error
	key string
}

func (s *stubStore) UploadFile(ctx context.Context, key, filePath, contentType string) (string, error) {
	s.key = key
	return s.url, s.err
}

func TestPublishViaStore(t *testing.T) {
	local := filepath.Join(t.TempDir(), "final.mp4")
	require.NoError(t, os.WriteFile(local, []byte("video"), 0o644))

	store := &stubStore{url: "https://cdn.example.com/videos/j1/output.mp4"}
	c := New(store, nil)

	url, err := c.Publish(context.Background(), local, "videos/j1/output.mp4", "video/mp4")
	require.NoError(t, err)
	assert.Equal(t, store.url, url)
	assert.Equal(t, "videos/j1/output.mp4", store.key)
}

func TestPublishFallsBackToDataURI(t *testing.T) {
	local := filepath.Join(t.TempDir(), "final.mp4")
	require.NoError(t, os.WriteFile(local, []byte("video"), 0o644))

	store := &stubStore{err: errors.New("bucket offline")}
	c := New(store, nil)

	url, err := c.Publish(context.Background(), local, "videos/j1/output.mp4", "video/mp4")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "data:video/mp4;base64,"))

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, "data:video/mp4;base64,"))
	require.NoError(t, err)
	assert.Equal(t, "video", string(decoded))
}

func TestPublishWithoutStore(t *testing.T) {
	local := filepath.Join(t.TempDir(), "thumb.jpg")
	require.NoError(t, os.WriteFile(local, []byte("jpeg"), 0o644))

	c := New(nil, nil)
	url, err := c.Publish(context.Background(), local, "videos/j1/thumbnail.jpg", "image/jpeg")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "data:image/jpeg;base64,"))
}
