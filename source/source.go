// Package source fetches module image bytes.
//
// Three sources cover the ways an image reaches the host: FileSource reads
// the local filesystem, HTTPSource fetches over HTTP(S) and can stream the
// body, and DataSource decodes base64 data URIs embedded in configuration.
// Auto picks one per path at call time.
//
// Every failure is an *errors.Error in errors.PhaseSource with kind
// KindNotFound, KindNetwork or KindIO.
package source

import (
	"context"
	"io"
	"strings"
)

// DataURIPrefix marks an inline base64 module image.
const DataURIPrefix = "data:application/octet-stream;base64,"

// FileURIPrefix marks an explicit local path.
const FileURIPrefix = "file://"

// Source returns the full image for path.
type Source interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
}

// Streamer is a Source that can hand out the image incrementally.
type Streamer interface {
	Source
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// LocateFunc maps a module name to the path handed to a Source.
type LocateFunc func(name string) string

// Identity returns name unchanged.
func Identity(name string) string {
	return name
}

// Prefix resolves names relative to dir. Data URIs and absolute URLs pass
// through untouched.
func Prefix(dir string) LocateFunc {
	return func(name string) string {
		if IsDataURI(name) || IsRemote(name) || IsFileURI(name) {
			return name
		}
		if dir == "" {
			return name
		}
		if strings.HasSuffix(dir, "/") {
			return dir + name
		}
		return dir + "/" + name
	}
}

// IsDataURI reports whether path is an inline base64 image.
func IsDataURI(path string) bool {
	return strings.HasPrefix(path, DataURIPrefix)
}

// IsFileURI reports whether path uses the file:// scheme.
func IsFileURI(path string) bool {
	return strings.HasPrefix(path, FileURIPrefix)
}

// IsRemote reports whether path is an http or https URL.
func IsRemote(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}
