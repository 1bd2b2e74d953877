// Package transfer moves artifacts across the job boundary: inbound
// references resolve to scratch files, outbound artifacts publish to object
// storage with an inline data-URI fallback.
package transfer

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/personaforge/studiopod/internal/logging"
	"github.com/personaforge/studiopod/internal/metrics"
)

// ObjectStore is the publishing backend. A nil store means every artifact
// returns inline.
type ObjectStore interface {
	UploadFile(ctx context.Context, key, filePath, contentType string) (string, error)
}

// Client resolves job inputs and publishes finished artifacts.
type Client struct {
	httpClient *http.Client
	store      ObjectStore
	log        *logging.Logger
}

// New creates a transfer client. store may be nil.
func New(store ObjectStore, log *logging.Logger) *Client {
	if log == nil {
		log = logging.NewDefaultLogger()
	}
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		store:      store,
		log:        log,
	}
}

// Resolve fetches a job input reference into destPath. References are
// http(s) URLs, data URIs, or raw base64 payloads.
func (c *Client) Resolve(ctx context.Context, ref, destPath string) error {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return c.download(ctx, ref, destPath)
	}
	return decodeInline(ref, destPath)
}

func (c *Client) download(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", url, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to fetch %s: status %d", url, resp.StatusCode)
	}

	dst, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", destPath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, resp.Body); err != nil {
		return fmt.Errorf("failed to write %s: %w", destPath, err)
	}
	return nil
}

// decodeInline writes a base64 reference to disk. A data: prefix is
// stripped down to its payload first.
func decodeInline(ref, destPath string) error {
	payload := ref
	if strings.HasPrefix(ref, "data:") {
		idx := strings.Index(ref, ",")
		if idx < 0 {
			return fmt.Errorf("malformed data URI")
		}
		payload = ref[idx+1:]
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return fmt.Errorf("failed to decode inline input: %w", err)
	}
	if err := os.WriteFile(destPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", destPath, err)
	}
	return nil
}

// Publish uploads a finished artifact under key and returns its URL. When
// the object store is absent or the upload fails, the artifact is returned
// inline as a data URI so the caller still receives the render.
func (c *Client) Publish(ctx context.Context, localPath, key, contentType string) (string, error) {
	if c.store != nil {
		url, err := c.store.UploadFile(ctx, key, localPath, contentType)
		if err == nil {
			metrics.RecordUpload("object_store", true)
			return url, nil
		}
		metrics.RecordUpload("object_store", false)
		c.log.Warnf("upload of %s failed, returning inline: %v", key, err)
	}

	uri, err := dataURI(localPath, contentType)
	if err != nil {
		metrics.RecordUpload("data_uri", false)
		return "", err
	}
	metrics.RecordUpload("data_uri", true)
	return uri, nil
}

func dataURI(path, contentType string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
