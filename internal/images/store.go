// Package images stores uploaded product pictures in a publicly served directory.
package images

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// URLPrefix is the public path under which stored images are served.
const URLPrefix = "/images/"

var ErrUnsupportedType = errors.New("unsupported image type")

var allowedExt = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

// Store writes images to <root>/images on fs.
type Store struct {
	fs  afero.Fs
	dir string
}

func NewStore(fs afero.Fs, root string) *Store {
	return &Store{fs: fs, dir: filepath.Join(root, "images")}
}

// Save copies r into a new file named after a fresh uuid and the original base name,
// and returns its public URL.
func (s *Store) Save(originalName string, r io.Reader) (string, error) {
	base := filepath.Base(strings.ReplaceAll(originalName, "\\", "/"))
	ext := strings.ToLower(filepath.Ext(base))
	if !allowedExt[ext] {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create image dir: %w", err)
	}
	name := uuid.NewString() + "_" + strings.ReplaceAll(base, " ", "_")
	f, err := s.fs.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("create image: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		s.fs.Remove(f.Name())
		return "", fmt.Errorf("write image: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close image: %w", err)
	}
	return URLPrefix + name, nil
}

// Remove deletes the file behind url. Missing files and urls outside
// URLPrefix are ignored.
func (s *Store) Remove(url string) error {
	if !strings.HasPrefix(url, URLPrefix) {
		return nil
	}
	name := path.Base(url)
	if name == "." || name == "/" {
		return nil
	}
	err := s.fs.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove image: %w", err)
	}
	return nil
}

// FileSystem serves the stored images, for mounting at URLPrefix.
// Directories are not listed.
func (s *Store) FileSystem() http.FileSystem {
	return filesOnly{afero.NewHttpFs(afero.NewBasePathFs(s.fs, s.dir))}
}

type filesOnly struct {
	fs http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.IsDir() {
		file.Close()
		return nil, os.ErrNotExist
	}
	return file, nil
}
