package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"github.com/sells-group/vehicle-catalog/internal/resilience"
)

func TestMistralOCR_DefaultModel(t *testing.T) {
	m := NewMistralOCR("key", "")
	assert.Equal(t, defaultMistralModel, m.model)
}

func TestMistralOCR_Extract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req mistralOCRRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "document_url", req.Document.Type)
		assert.Contains(t, req.Document.DocumentURL, "data:application/pdf;base64,")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"pages":[{"index":0,"markdown":"| Active | 199 900 kr |"},{"index":1,"markdown":"| Allure | 229 900 kr |"}],"usage_info":{"pages_processed":2}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	m := &MistralOCR{apiKey: "test-key", model: "test-model", endpoint: srv.URL, client: srv.Client()}

	doc, err := m.Extract(context.Background(), []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, "| Active | 199 900 kr |\n\n| Allure | 229 900 kr |", doc.Text)
	assert.Equal(t, 2, doc.Pages)
	assert.False(t, doc.Empty())
}

func TestMistralOCR_RateLimitedIsClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"message":"rate limit"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	m := &MistralOCR{apiKey: "k", model: "m", endpoint: srv.URL, client: srv.Client()}
	_, err := m.Extract(context.Background(), []byte("%PDF"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mistral API returned 429")
	assert.True(t, resilience.IsRateLimited(err))
}

func TestMistralOCR_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{invalid json`)) //nolint:errcheck
	}))
	defer srv.Close()

	m := &MistralOCR{apiKey: "k", model: "m", endpoint: srv.URL, client: srv.Client()}
	_, err := m.Extract(context.Background(), []byte("%PDF"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
}

func TestPdfToText_BinaryNotFound(t *testing.T) {
	p := NewPdfToText("/nonexistent/pdftotext")
	_, err := p.Extract(context.Background(), []byte("%PDF"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdftotext failed")
}

func TestPdfToText_Extract(t *testing.T) {
	fakeBin := filepath.Join(t.TempDir(), "pdftotext")
	script := "#!/bin/sh\nprintf 'Active 199 900 kr\\fAllure 229 900 kr\\f'\n"
	require.NoError(t, os.WriteFile(fakeBin, []byte(script), 0o755))

	doc, err := NewPdfToText(fakeBin).Extract(context.Background(), []byte("%PDF"))
	require.NoError(t, err)
	assert.Contains(t, doc.Text, "Allure 229 900 kr")
	assert.Equal(t, 2, doc.Pages)
}

func TestDocument_Empty(t *testing.T) {
	var nilDoc *Document
	assert.True(t, nilDoc.Empty())
	assert.True(t, (&Document{Text: " \n\f"}).Empty())
	assert.False(t, (&Document{Text: "x"}).Empty())
}

type countingSource struct {
	calls  atomic.Int32
	expiry time.Duration
	err    error
}

func (s *countingSource) Token() (*oauth2.Token, error) {
	n := s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return &oauth2.Token{AccessToken: "tok-" + string(rune('0'+n)), Expiry: time.Now().Add(s.expiry)}, nil
}

func TestTokenCache_ReusesFreshToken(t *testing.T) {
	src := &countingSource{expiry: time.Hour}
	tc := NewTokenCache(src, time.Minute)

	a, err := tc.Token()
	require.NoError(t, err)
	b, err := tc.Token()
	require.NoError(t, err)
	assert.Equal(t, a.AccessToken, b.AccessToken)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestTokenCache_RefreshesWithinMargin(t *testing.T) {
	src := &countingSource{expiry: 30 * time.Second}
	tc := NewTokenCache(src, time.Minute)

	_, err := tc.Token()
	require.NoError(t, err)
	_, err = tc.Token()
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestTokenCache_InvalidateAndError(t *testing.T) {
	src := &countingSource{expiry: time.Hour}
	tc := NewTokenCache(src, time.Minute)
	_, _ = tc.Token()
	tc.Invalidate()
	_, _ = tc.Token()
	assert.Equal(t, int32(2), src.calls.Load())

	failing := NewTokenCache(&countingSource{err: errors.New("denied")}, 0)
	_, err := failing.Token()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exchange access token")
}

func TestTokenCache_ConcurrentReaders(t *testing.T) {
	src := &countingSource{expiry: time.Hour}
	tc := NewTokenCache(src, time.Minute)
	done := make(chan struct{})
	for i := 0; i < 20; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			tok, err := tc.Token()
			assert.NoError(t, err)
			assert.NotEmpty(t, tok.AccessToken)
		}()
	}
	for i := 0; i < 20; i++ {
		<-done
	}
	assert.GreaterOrEqual(t, src.calls.Load(), int32(1))
}

func TestDocumentAI_Extract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/projects/p1/locations/eu/processors/proc:process", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		raw := body["rawDocument"].(map[string]any)
		assert.Equal(t, "application/pdf", raw["mimeType"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"document":{"text":"Active 199 900 kr","pages":[{},{}],"entities":[
			{"type":"variant_name","mentionText":"Active","confidence":0.93,
			 "textAnchor":{"textSegments":[{"startIndex":"0","endIndex":"6"}]},
			 "pageAnchor":{"pageRefs":[{"page":"1","boundingPoly":{"normalizedVertices":[{"x":0.1,"y":0.25}]}}]}},
			{"type":"row","properties":[
				{"type":"price","confidence":0.88,"textAnchor":{"textSegments":[{"startIndex":"7","endIndex":"17"}]}}
			]}
		]}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	d, err := NewDocumentAI(context.Background(), "p1", "eu", "proc", nil,
		option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	doc, err := d.Extract(context.Background(), []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Pages)
	require.Len(t, doc.Entities, 2)

	name := doc.Entities[0]
	assert.Equal(t, "variant_name", name.Type)
	assert.Equal(t, "Active", name.Text)
	assert.InDelta(t, 0.93, name.Confidence, 0.0001)
	require.NotNil(t, name.TextPosition)
	assert.Equal(t, int64(0), *name.TextPosition)
	require.NotNil(t, name.PageIndex)
	assert.Equal(t, 1, *name.PageIndex)
	require.NotNil(t, name.BoundingBoxY)
	assert.InDelta(t, 0.25, *name.BoundingBoxY, 0.0001)

	price := doc.Entities[1]
	assert.Equal(t, "price", price.Type)
	assert.Equal(t, "199 900 kr", price.Text)
	assert.Nil(t, price.PageIndex)
}

func TestNewDocumentAI_RequiresProcessor(t *testing.T) {
	_, err := NewDocumentAI(context.Background(), "p1", "eu", "", nil)
	require.Error(t, err)
}

func TestProcessorName(t *testing.T) {
	assert.Equal(t, "projects/p/locations/us/processors/x", ProcessorName("p", "us", "x"))
}

func TestAnchorText_CountsCodePoints(t *testing.T) {
	text := "Växellåda Automat 459 900 kr"
	assert.Equal(t, "Växellåda", anchorText(text, 0, 9))
	assert.Equal(t, "Automat", anchorText(text, 10, 17))
	assert.Equal(t, "459 900 kr", anchorText(text, 18, 28))
	assert.Empty(t, anchorText(text, 18, 40))
	assert.Empty(t, anchorText(text, 5, 5))
	assert.Empty(t, anchorText(text, -1, 3))
}
