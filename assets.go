package postadmin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const (
	// ImageDirectory is the directory hint featured images are stored under.
	ImageDirectory = "uploads/posts"
	maxUploadSize  = 10 << 20 // 10MB
)

// AssetStore persists uploaded featured images and hands back a reference
// that is saved on the post.
type AssetStore interface {
	StoreImage(ctx context.Context, data []byte, dirHint string) (string, error)
	DeleteImage(ctx context.Context, ref string) error
	URL(ref string) string
}

// Upload is a file received from the form or the API.
type Upload struct {
	Filename string
	Data     []byte
}

// detectImage checks data decodes as one of the accepted image formats and
// returns the format name. Only the header is read; nothing is re-encoded.
func detectImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("file is empty")
	}
	if len(data) > maxUploadSize {
		return "", errors.New("file too large (max 10MB)")
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", errors.New("file is not a supported image (jpeg, png, gif, webp, bmp)")
	}
	return format, nil
}

// imageKey builds a collision-free reference under dirHint.
func imageKey(dirHint, format string) string {
	ext := format
	if ext == "jpeg" {
		ext = "jpg"
	}
	return path.Join(strings.Trim(dirHint, "/"), uuid.NewString()+"."+ext)
}

// LocalAssetStore writes images below a directory served under /uploads/.
type LocalAssetStore struct {
	root string
}

// NewLocalAssetStore stores files below root (e.g. "public").
func NewLocalAssetStore(root string) *LocalAssetStore {
	return &LocalAssetStore{root: root}
}

// Root is the directory references are resolved against.
func (s *LocalAssetStore) Root() string {
	return s.root
}

func (s *LocalAssetStore) StoreImage(ctx context.Context, data []byte, dirHint string) (string, error) {
	format, err := detectImage(data)
	if err != nil {
		return "", &StorageError{Op: "store", Err: err}
	}
	ref := imageKey(dirHint, format)
	full, err := s.resolve(ref)
	if err != nil {
		return "", &StorageError{Op: "store", Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", &StorageError{Op: "store", Err: fmt.Errorf("create uploads dir: %w", err)}
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", &StorageError{Op: "store", Err: fmt.Errorf("write image: %w", err)}
	}
	return ref, nil
}

func (s *LocalAssetStore) DeleteImage(ctx context.Context, ref string) error {
	full, err := s.resolve(ref)
	if err != nil {
		return &StorageError{Op: "delete", Err: err}
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &StorageError{Op: "delete", Err: err}
	}
	return nil
}

func (s *LocalAssetStore) URL(ref string) string {
	return "/" + strings.TrimLeft(ref, "/")
}

// resolve maps ref inside root and refuses anything that would escape it.
func (s *LocalAssetStore) resolve(ref string) (string, error) {
	clean := path.Clean("/" + ref)
	if clean == "/" {
		return "", errors.New("empty reference")
	}
	if !strings.HasPrefix(clean, "/uploads/") {
		return "", fmt.Errorf("reference %q is outside uploads", ref)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}
