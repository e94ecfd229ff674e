package imagegen

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxImageBytes bounds any image body read from the network.
const maxImageBytes = 32 << 20

// Downloader fetches images from the temporary URLs some OpenAI-compatible
// servers return instead of inline base64.
//
// Thread Safety: Downloader is safe for concurrent use.
type Downloader struct {
	client *http.Client
}

// NewDownloader creates a downloader using client, or http.DefaultClient.
func NewDownloader(client *http.Client) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Downloader{client: client}
}

// DownloadBytes downloads an image and returns its bytes and Content-Type.
func (d *Downloader) DownloadBytes(ctx context.Context, url string) ([]byte, string, error) {
	if url == "" {
		return nil, "", fmt.Errorf("imagegen: URL cannot be empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("imagegen: failed to create download request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("imagegen: failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("imagegen: download failed with status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !isImageContentType(contentType) {
		return nil, "", fmt.Errorf("imagegen: download returned %s, not an image", mediaType(contentType))
	}

	data, err := readLimited(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("imagegen: failed to read image data: %w", err)
	}
	return data, contentType, nil
}

// readLimited reads r up to maxImageBytes and fails on anything larger.
func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxImageBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("image larger than %d bytes", maxImageBytes)
	}
	return data, nil
}

// mediaType lowercases contentType and strips parameters.
func mediaType(contentType string) string {
	lower := strings.ToLower(contentType)
	if idx := strings.Index(lower, ";"); idx != -1 {
		lower = lower[:idx]
	}
	return strings.TrimSpace(lower)
}

func isImageContentType(contentType string) bool {
	return strings.HasPrefix(mediaType(contentType), "image/")
}

func isJSONContentType(contentType string) bool {
	mt := mediaType(contentType)
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}
