// Package fetchpdf resolves a document reference into PDF bytes, either by
// downloading a URL or by reading a local file.
package fetchpdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

// maxSize caps how much of a response is read; a daily press review is a
// few megabytes at most.
const maxSize = 50 << 20

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher downloads PDFs over HTTP with a single retry on transient
// failure.
type Fetcher struct {
	client     HTTPClient
	retryDelay time.Duration
}

// New creates a Fetcher with the given HTTP client.
func New(client HTTPClient) *Fetcher {
	return &Fetcher{client: client, retryDelay: 2 * time.Second}
}

// Fetch downloads url and returns its bytes after checking they look like
// a PDF. Network errors and 5xx/429 responses are retried exactly once.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var data []byte
	backoff := retry.WithMaxRetries(1, retry.NewConstant(f.retryDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		data, err = f.fetchOnce(ctx, url)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	return data, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, retry.RetryableError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, retry.RetryableError(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	// Read one byte past the cap so an oversize body is rejected rather
	// than silently clipped.
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSize+1))
	if err != nil {
		return nil, retry.RetryableError(fmt.Errorf("read body: %w", err))
	}
	if len(data) > maxSize {
		return nil, fmt.Errorf("response exceeds %d byte limit", maxSize)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty response body")
	}
	if !looksLikePDF(resp.Header.Get("Content-Type"), data) {
		return nil, fmt.Errorf("response is not a pdf (content-type %q)", resp.Header.Get("Content-Type"))
	}
	return data, nil
}

func looksLikePDF(contentType string, data []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "application/pdf") {
		return true
	}
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

// ReadLocal reads a PDF from disk for the local-file upload mode.
func ReadLocal(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read local file: %w", err)
	}
	return data, nil
}
