package store

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/suPer8Hu/agroguard/internal/common"
)

// ImageStore keeps captured images as files under one directory. References
// are file:// URLs.
type ImageStore struct {
	dir string
}

func NewImageStore(dir string) (*ImageStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, common.Storage("image store", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, common.Storage("image store", err)
	}
	return &ImageStore{dir: abs}, nil
}

var imageExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

func (s *ImageStore) Save(ctx context.Context, data []byte, mimeType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ext, ok := imageExt[mimeType]
	if !ok {
		return "", common.Validation("save image", "unsupported image type %s", mimeType)
	}
	path := filepath.Join(s.dir, uuid.NewString()+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", common.Storage("save image", err)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String(), nil
}

// Remove deletes an image written by Save. Unknown references are ignored.
func (s *ImageStore) Remove(ref string) error {
	path, err := s.pathOf(ref)
	if err != nil {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return common.Storage("remove image", err)
	}
	return nil
}

// Path resolves a reference to a file inside the store directory.
func (s *ImageStore) Path(ref string) (string, error) {
	return s.pathOf(ref)
}

func (s *ImageStore) pathOf(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil || u.Scheme != "file" {
		return "", fmt.Errorf("not an image reference: %q", ref)
	}
	path := filepath.Clean(filepath.FromSlash(u.Path))
	if !strings.HasPrefix(path, s.dir+string(filepath.Separator)) {
		return "", fmt.Errorf("image reference outside store: %q", ref)
	}
	return path, nil
}
