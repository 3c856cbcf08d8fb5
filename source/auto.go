package source

import (
	"bytes"
	"context"
	"io"
	"net/http"
)

// Auto dispatches on the shape of each path: data URIs go to DataSource,
// http(s) URLs to HTTPSource and everything else to FileSource. Nothing is
// cached between calls.
type Auto struct {
	Client   *http.Client
	Fallback Source
	Root     string
}

// For returns the concrete source Auto would use for path.
func (a Auto) For(path string) Source {
	switch {
	case IsDataURI(path):
		return DataSource{}
	case IsRemote(path):
		return HTTPSource{Client: a.Client, Fallback: a.Fallback}
	default:
		return FileSource{Root: a.Root}
	}
}

// Fetch fetches path from the matching source.
func (a Auto) Fetch(ctx context.Context, path string) ([]byte, error) {
	return a.For(path).Fetch(ctx, path)
}

// Open streams remote paths; other paths are fetched whole.
func (a Auto) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	src := a.For(path)
	if s, ok := src.(Streamer); ok {
		return s.Open(ctx, path)
	}
	data, err := src.Fetch(ctx, path)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
