package source

import (
	"context"
	"encoding/base64"

	"github.com/wippyai/wasm-host/errors"
)

// DataSource decodes images embedded as base64 data URIs.
type DataSource struct{}

// Fetch decodes the URI payload.
func (DataSource) Fetch(_ context.Context, path string) ([]byte, error) {
	if !IsDataURI(path) {
		return nil, errors.Source(errors.KindNotFound, truncate(path),
			errors.InvalidInput(errors.PhaseSource, "not a data URI"))
	}
	data, err := base64.StdEncoding.DecodeString(path[len(DataURIPrefix):])
	if err != nil {
		return nil, errors.Source(errors.KindIO, truncate(path), err)
	}
	return data, nil
}

// EncodeDataURI returns image as a data URI DataSource can decode.
func EncodeDataURI(image []byte) string {
	return DataURIPrefix + base64.StdEncoding.EncodeToString(image)
}

func truncate(path string) string {
	const limit = 64
	if len(path) <= limit {
		return path
	}
	return path[:limit] + "..."
}
