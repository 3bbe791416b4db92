// Package fetcher downloads PDF documents referenced by scraped pages.
package fetcher

import (
	"bytes"
	"context"
	"io"
	"net/url"

	"github.com/rotisserie/eris"
)

// DefaultMaxBytes caps a download when no limit is configured.
const DefaultMaxBytes = 64 << 20

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body. The caller
	// must close it.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// Router dispatches downloads by URL scheme.
type Router struct {
	schemes  map[string]Fetcher
	maxBytes int64
}

// NewRouter creates a Router. http and https share one fetcher. A nil
// fetcher leaves its scheme unsupported.
func NewRouter(httpF, ftpF, fileF Fetcher, maxBytes int64) *Router {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	r := &Router{schemes: make(map[string]Fetcher), maxBytes: maxBytes}
	if httpF != nil {
		r.schemes["http"] = httpF
		r.schemes["https"] = httpF
	}
	if ftpF != nil {
		r.schemes["ftp"] = ftpF
	}
	if fileF != nil {
		r.schemes["file"] = fileF
	}
	return r
}

// Download implements Fetcher.
func (r *Router) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse url %s", rawURL)
	}
	f, ok := r.schemes[u.Scheme]
	if !ok {
		return nil, eris.Errorf("fetcher: unsupported scheme %q", u.Scheme)
	}
	return f.Download(ctx, rawURL)
}

// FetchPDF downloads rawURL and checks that the body is a PDF no larger
// than the configured limit.
func (r *Router) FetchPDF(ctx context.Context, rawURL string) ([]byte, error) {
	body, err := r.Download(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(body, r.maxBytes+1))
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: read %s", rawURL)
	}
	if int64(len(data)) > r.maxBytes {
		return nil, eris.Errorf("fetcher: %s exceeds %d bytes", rawURL, r.maxBytes)
	}
	if !IsPDF(data) {
		return nil, eris.Errorf("fetcher: %s is not a PDF", rawURL)
	}
	return data, nil
}

// IsPDF reports whether data starts with the PDF header, allowing for
// leading whitespace some servers prepend.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n\x00"), []byte("%PDF-"))
}
