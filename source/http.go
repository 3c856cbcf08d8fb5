package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"

	"github.com/wippyai/wasm-host/errors"
)

// HTTPSource fetches images with GET. When Fallback is set and the network
// fetch fails, the last path element of the URL is fetched from Fallback
// instead, exactly once.
type HTTPSource struct {
	Client   *http.Client
	Fallback Source
}

// Fetch returns the whole response body.
func (s HTTPSource) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	body, err := s.Open(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, errors.Source(errors.KindNetwork, rawURL, err)
	}
	return data, nil
}

// Open issues the request and returns the response body for streaming.
// The caller must close it.
func (s HTTPSource) Open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	body, err := s.get(ctx, rawURL)
	if err == nil {
		return body, nil
	}
	if s.Fallback == nil || !errors.Is(err, errors.ErrSourceNetwork) {
		return nil, err
	}
	data, ferr := s.Fallback.Fetch(ctx, fallbackName(rawURL))
	if ferr != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s HTTPSource) get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Source(errors.KindIO, rawURL, err)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Source(errors.KindNetwork, rawURL, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return resp.Body, nil
	case resp.StatusCode == http.StatusNotFound:
		drain(resp)
		return nil, errors.Source(errors.KindNotFound, rawURL, fmt.Errorf("not found (404)"))
	default:
		drain(resp)
		return nil, errors.Source(errors.KindNetwork, rawURL, fmt.Errorf("unexpected HTTP status %d", resp.StatusCode))
	}
}

// drain closes the response after reading the rest of the body so the
// connection can be reused.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

func fallbackName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return rawURL
	}
	return path.Base(u.Path)
}
