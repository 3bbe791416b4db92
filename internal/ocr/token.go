package ocr

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// TokenCache holds the current bearer token for the OCR provider. Reads
// load the cached token without locking. A token that expires within the
// margin is exchanged again; concurrent refreshes may both hit the
// exchanger and the last one stored wins.
type TokenCache struct {
	src    oauth2.TokenSource
	margin time.Duration
	cur    atomic.Pointer[oauth2.Token]

	nowFunc func() time.Time
}

// NewTokenCache wraps src, refreshing tokens that expire within margin.
func NewTokenCache(src oauth2.TokenSource, margin time.Duration) *TokenCache {
	if margin <= 0 {
		margin = time.Minute
	}
	return &TokenCache{src: src, margin: margin, nowFunc: time.Now}
}

// NewServiceAccountTokenCache exchanges a service account key for
// cloud-platform access tokens.
func NewServiceAccountTokenCache(ctx context.Context, credentialsJSON []byte, margin time.Duration) (*TokenCache, error) {
	creds, err := google.CredentialsFromJSON(ctx, credentialsJSON, cloudPlatformScope)
	if err != nil {
		return nil, eris.Wrap(err, "ocr: parse service account credentials")
	}
	return NewTokenCache(creds.TokenSource, margin), nil
}

// Token implements oauth2.TokenSource.
func (c *TokenCache) Token() (*oauth2.Token, error) {
	if t := c.cur.Load(); t != nil && c.fresh(t) {
		return t, nil
	}
	t, err := c.src.Token()
	if err != nil {
		return nil, eris.Wrap(err, "ocr: exchange access token")
	}
	c.cur.Store(t)
	return t, nil
}

// Invalidate drops the cached token so the next call exchanges a new one.
func (c *TokenCache) Invalidate() {
	c.cur.Store(nil)
}

func (c *TokenCache) fresh(t *oauth2.Token) bool {
	if t.AccessToken == "" {
		return false
	}
	if t.Expiry.IsZero() {
		return true
	}
	return c.nowFunc().Add(c.margin).Before(t.Expiry)
}
