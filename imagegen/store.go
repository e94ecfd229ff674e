package imagegen

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"edudiff/vision"
)

// ErrInvalidImageName is returned by ImageStore.Path for names that are
// not plain image file names inside the store.
var ErrInvalidImageName = errors.New("imagegen: invalid image name")

// Metadata describes one saved generation. It is written next to the image
// as <stem>_metadata.json.
type Metadata struct {
	ID             string          `json:"id"`
	Timestamp      time.Time       `json:"timestamp"`
	Style          string          `json:"style"`
	Quality        string          `json:"quality_preset,omitempty"`
	Prompt         string          `json:"prompt"`
	ComposedPrompt string          `json:"composed_prompt"`
	NegativePrompt string          `json:"negative_prompt"`
	Backend        string          `json:"backend"`
	Conditioning   string          `json:"conditioning,omitempty"`
	Seed           int64           `json:"seed"`
	Steps          int             `json:"steps"`
	Guidance       float64         `json:"guidance"`
	Resolution     Resolution      `json:"resolution"`
	DurationMs     int64           `json:"duration_ms"`
	ImagePath      string          `json:"image_path,omitempty"`
	Score          *vision.Quality `json:"quality_score,omitempty"`
}

// Resolution is an image size in pixels.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ImageStore saves generated PNGs and their metadata under one directory.
//
// Thread Safety: ImageStore is safe for concurrent use; every file name
// carries a unique id.
type ImageStore struct {
	dir string
}

// NewImageStore creates dir if needed.
func NewImageStore(dir string) (*ImageStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("imagegen: output directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("imagegen: failed to create output directory: %w", err)
	}
	return &ImageStore{dir: dir}, nil
}

// Dir returns the store directory.
func (s *ImageStore) Dir() string { return s.dir }

// SaveImage writes png as edudiff_<timestamp>_<id>.png and returns the path.
func (s *ImageStore) SaveImage(id string, png []byte, ts time.Time) (string, error) {
	name := fmt.Sprintf("edudiff_%s_%s.png", ts.Format("20060102_150405"), sanitizeFilename(shortID(id)))
	path := filepath.Join(s.dir, name)
	if err := writeFileAtomic(path, png); err != nil {
		return "", fmt.Errorf("imagegen: failed to save image: %w", err)
	}
	return path, nil
}

// WriteMetadata writes md next to imagePath and returns the JSON path.
func (s *ImageStore) WriteMetadata(imagePath string, md *Metadata) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(md); err != nil {
		return "", fmt.Errorf("imagegen: failed to encode metadata: %w", err)
	}

	stem := strings.TrimSuffix(imagePath, filepath.Ext(imagePath))
	path := stem + "_metadata.json"
	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		return "", fmt.Errorf("imagegen: failed to write metadata: %w", err)
	}
	return path, nil
}

// Path resolves a bare file name to a path inside the store. Names with
// separators, dot segments or unsupported extensions are rejected.
func (s *ImageStore) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) ||
		strings.HasPrefix(name, ".") || sanitizeFilename(name) != name {
		return "", ErrInvalidImageName
	}
	if !vision.IsSupportedExtension(name) {
		return "", ErrInvalidImageName
	}
	return filepath.Join(s.dir, name), nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// sanitizeFilename replaces characters that are unsafe in file names.
func sanitizeFilename(filename string) string {
	unsafe := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|", "\n", "\r", "\t"}
	result := filename
	for _, char := range unsafe {
		result = strings.ReplaceAll(result, char, "_")
	}
	if len(result) > 200 {
		result = result[:200]
	}
	if result == "" {
		result = "image"
	}
	return result
}
