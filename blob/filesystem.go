// blob/filesystem.go
package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/masim/analysis/store"
)

// Filesystem writes artifacts below a root directory, creating
// subdirectories on demand.
type Filesystem struct {
	root string
}

func NewFilesystem(root string) *Filesystem {
	return &Filesystem{root: root}
}

func (f *Filesystem) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid artifact key %q", key)
	}
	return filepath.Join(f.root, clean), nil
}

func (f *Filesystem) Put(_ context.Context, key string, r io.Reader, _ string) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return store.WriteFileAtomic(p, func(w io.Writer) error {
		_, err := io.Copy(w, r)
		return err
	})
}

func (f *Filesystem) Location(key string) string {
	if p, err := f.path(key); err == nil {
		return p
	}
	return key
}
