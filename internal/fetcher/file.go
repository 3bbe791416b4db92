package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"

	"github.com/rotisserie/eris"
)

// FileFetcher opens file:// URLs, for price lists already on disk.
type FileFetcher struct{}

// Download implements Fetcher.
func (FileFetcher) Download(_ context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: parse file url")
	}
	if u.Scheme != "file" {
		return nil, eris.Errorf("fetcher: expected file scheme, got %q", u.Scheme)
	}
	f, err := os.Open(u.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: open %s", u.Path)
	}
	return f, nil
}
