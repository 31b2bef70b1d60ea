// Package storage holds message image blobs. The rest of the system treats
// it as an external collaborator behind the ImageStore interface; the disk
// implementation is deliberately thin.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ImageStore persists an uploaded image and returns the public URL the
// message record will carry.
type ImageStore interface {
	Save(ctx context.Context, filename string, r io.Reader) (string, error)
}

// DiskStore writes images under a local directory served at /uploads.
type DiskStore struct {
	dir     string
	baseURL string
}

// NewDiskStore ensures the upload directory exists. baseURL is the public
// prefix ("http://host:port") prepended to generated URLs.
func NewDiskStore(dir, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskStore{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Save streams the blob to disk under a fresh random name, keeping only the
// original extension. The client-supplied filename never touches the path.
func (s *DiskStore) Save(ctx context.Context, filename string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(filename))
	name := uuid.NewString() + ext

	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("create image file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("write image file: %w", err)
	}

	return s.baseURL + "/uploads/" + name, nil
}
