// Package images stores uploaded book covers on disk and derives their metadata.
package images

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	// ErrUnsupportedFormat is returned for uploads that are not JPEG, PNG, GIF, or WebP.
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrTooLarge is returned when an upload exceeds the configured size limit.
	ErrTooLarge = errors.New("image too large")
	// ErrNotFound is returned when no cover is stored for an ID.
	ErrNotFound = errors.New("image not found")
)

var extensions = map[string]string{
	"jpeg": ".jpg",
	"png":  ".png",
	"gif":  ".gif",
	"webp": ".webp",
}

// Saved describes a stored image.
type Saved struct {
	Filename string
	Format   string
	Size     int64
	Hash     string // hex sha256 of the bytes, used as the ETag
	BlurHash string
	Width    int
	Height   int
}

// Storage keeps one image per ID under a single directory.
type Storage struct {
	dir      string
	maxBytes int64
	mu       sync.RWMutex
}

// NewStorage creates dir if needed. maxBytes <= 0 disables the size limit.
func NewStorage(dir string, maxBytes int64) (*Storage, error) {
	if dir == "" {
		return nil, errors.New("image directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image directory: %w", err)
	}
	return &Storage{dir: dir, maxBytes: maxBytes}, nil
}

// Dir returns the storage directory.
func (s *Storage) Dir() string { return s.dir }

// Save validates data as an image and writes it as {id}{ext}, replacing any
// earlier image for id regardless of its format.
func (s *Storage) Save(id string, data []byte) (*Saved, error) {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return nil, fmt.Errorf("invalid image id %q", id)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", ErrUnsupportedFormat)
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, len(data), s.maxBytes)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
	}
	ext, ok := extensions[format]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	blur, err := BlurHash(img)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)

	s.mu.Lock()
	defer s.mu.Unlock()

	_ = s.removeLocked(id)

	filename := id + ext
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("close image: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, filename)); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("rename image: %w", err)
	}

	bounds := img.Bounds()
	return &Saved{
		Filename: filename,
		Format:   format,
		Size:     int64(len(data)),
		Hash:     hex.EncodeToString(sum[:]),
		BlurHash: blur,
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
	}, nil
}

// Path returns the absolute path of a stored file name.
func (s *Storage) Path(filename string) string {
	return filepath.Join(s.dir, filepath.Base(filename))
}

// Open returns the stored file for id. The caller closes it.
func (s *Storage) Open(id string) (*os.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ext := range extensions {
		f, err := os.Open(filepath.Join(s.dir, id+ext))
		if err == nil {
			return f, nil
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("open image: %w", err)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Delete removes the image for id. Missing images are not an error.
func (s *Storage) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(id)
}

func (s *Storage) removeLocked(id string) error {
	var errs []error
	for _, ext := range extensions {
		if err := os.Remove(filepath.Join(s.dir, id+ext)); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
