package source

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/wippyai/wasm-host/errors"
)

// FileSource reads images from the local filesystem. Relative paths are
// resolved against Root when it is set.
type FileSource struct {
	Root string
}

// Fetch reads the whole file.
func (s FileSource) Fetch(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Source(errors.KindIO, path, err)
	}
	name := s.resolve(path)
	data, err := os.ReadFile(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Source(errors.KindNotFound, path, err)
		}
		return nil, errors.Source(errors.KindIO, path, err)
	}
	return data, nil
}

func (s FileSource) resolve(path string) string {
	name := strings.TrimPrefix(path, FileURIPrefix)
	if s.Root != "" && !filepath.IsAbs(name) {
		name = filepath.Join(s.Root, name)
	}
	return name
}
