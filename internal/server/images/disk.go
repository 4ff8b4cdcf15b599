package images

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/passvault/internal/common"
	"github.com/dmitrijs2005/passvault/internal/filex"
)

// URLPrefix starts every path DiskStore hands out.
const URLPrefix = "/uploads"

// DiskStore writes images under a local directory. Paths look like
// /uploads/2024/01/02/<uuid>.png.
type DiskStore struct {
	dir string
	now func() time.Time
}

func NewDiskStore(dir string) (*DiskStore, error) {
	abs, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, err
	}
	return &DiskStore{dir: abs, now: time.Now}, nil
}

// Dir is the absolute root directory of the store.
func (s *DiskStore) Dir() string {
	return s.dir
}

func (s *DiskStore) Save(ctx context.Context, u *Upload) (string, error) {
	name := newObjectName(u, s.now())
	full := filepath.Join(s.dir, filepath.FromSlash(name))

	if _, err := filex.EnsureDir(filepath.Dir(full)); err != nil {
		return "", err
	}

	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return "", fmt.Errorf("create image: %w", err)
	}

	if _, err := f.Write(u.Data); err != nil {
		_ = f.Close()
		_ = os.Remove(full)
		return "", fmt.Errorf("write image: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(full)
		return "", fmt.Errorf("close image: %w", err)
	}

	return path.Join(URLPrefix, name), nil
}

// Remove deletes the file behind p. Missing files are not an error.
func (s *DiskStore) Remove(ctx context.Context, p string) error {
	full, err := s.resolve(p)
	if err != nil {
		return err
	}
	return filex.RemoveIfExists(full)
}

func (s *DiskStore) URL(ctx context.Context, p string) (string, error) {
	if _, err := s.resolve(p); err != nil {
		return "", err
	}
	return p, nil
}

// Open returns the file behind p. A missing file is ErrNotFound.
func (s *DiskStore) Open(ctx context.Context, p string) (*os.File, error) {
	full, err := s.resolve(p)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: image %s", common.ErrNotFound, p)
	}
	return f, err
}

// resolve maps a stored path to a file inside dir, refusing anything that
// would escape it.
func (s *DiskStore) resolve(p string) (string, error) {
	rel, ok := strings.CutPrefix(path.Clean("/"+p), URLPrefix+"/")
	if !ok || rel == "" {
		return "", fmt.Errorf("image path %q is outside %s", p, URLPrefix)
	}
	return filepath.Join(s.dir, filepath.FromSlash(rel)), nil
}
