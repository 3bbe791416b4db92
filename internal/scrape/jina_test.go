package scrape

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/vehicle-catalog/internal/model"
	"github.com/sells-group/vehicle-catalog/internal/resilience"
	"github.com/sells-group/vehicle-catalog/pkg/jina"
)

type mockJina struct {
	mock.Mock
}

func (m *mockJina) Read(ctx context.Context, targetURL string, opts ...jina.ReadOption) (*jina.ReadResponse, error) {
	args := m.Called(ctx, targetURL)
	resp, _ := args.Get(0).(*jina.ReadResponse)
	return resp, args.Error(1)
}

var ceedPage = strings.Join([]string{
	"# Kia Ceed",
	"",
	"Action 1.5 T-GDi 140 hk manuell 259 900 kr",
	"Advance 1.5 T-GDi 160 hk DCT 289 900 kr",
	"",
	"[Prislista Ceed](/files/ceed-prislista.pdf)",
	"[Broschyr](/files/ceed-broschyr.pdf)",
	"",
	"GT-Line 1.5 T-GDi 160 hk DCT 329 900 kr. Privatleasing från 3 995 kr/mån.",
}, "\n")

func TestJinaScraper_Scrape(t *testing.T) {
	client := &mockJina{}
	client.On("Read", mock.Anything, "https://kia.se/ceed").Return(&jina.ReadResponse{
		Code: 200,
		Data: jina.ReadData{
			Title:   "Kia Ceed",
			URL:     "https://kia.se/bilar/ceed",
			Content: ceedPage,
			Links:   map[string]string{"Teknisk data": "https://kia.se/files/ceed-teknisk.pdf"},
			Usage:   jina.ReadUsage{Tokens: 800},
		},
	}, nil)

	s := NewJinaScraper(client, 120, nil, nil)
	assert.Equal(t, "jina", s.Name())
	assert.True(t, s.Supports("https://kia.se/ceed"))

	res, err := s.Scrape(context.Background(), "https://kia.se/ceed")
	require.NoError(t, err)
	assert.Equal(t, "https://kia.se/bilar/ceed", res.URL)
	assert.Equal(t, "Kia Ceed", res.Title)
	assert.Equal(t, 800, res.Tokens)
	assert.Greater(t, len(res.HTMLBatches), 1)
	for _, b := range res.HTMLBatches {
		assert.LessOrEqual(t, len(b), 120)
	}

	require.Len(t, res.PDFLinks, 3)
	cats := map[model.LinkCategory]int{}
	for _, l := range res.PDFLinks {
		cats[l.Category]++
	}
	assert.Equal(t, 1, cats[model.CategoryPriceList])
	assert.Equal(t, 1, cats[model.CategoryBrochure])
	assert.Equal(t, 1, cats[model.CategorySpec])
	client.AssertExpectations(t)
}

func TestJinaScraper_BlockedContent(t *testing.T) {
	client := &mockJina{}
	client.On("Read", mock.Anything, "https://kia.se/ceed").Return(&jina.ReadResponse{
		Code: 200,
		Data: jina.ReadData{Content: "Just a moment..."},
	}, nil)

	_, err := NewJinaScraper(client, 0, nil, nil).Scrape(context.Background(), "https://kia.se/ceed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unusable")
}

func TestJinaScraper_ClientError(t *testing.T) {
	client := &mockJina{}
	client.On("Read", mock.Anything, "https://fail.se").Return(nil, errors.New("connection refused"))

	_, err := NewJinaScraper(client, 0, nil, nil).Scrape(context.Background(), "https://fail.se")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestJinaScraper_BreakerOpens(t *testing.T) {
	client := &mockJina{}
	client.On("Read", mock.Anything, mock.Anything).
		Return(nil, &resilience.StatusError{StatusCode: http.StatusTooManyRequests})

	breaker := resilience.NewCircuitBreaker("jina", resilience.CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Hour,
	})
	s := NewJinaScraper(client, 0, breaker, nil)

	for range 2 {
		_, err := s.Scrape(context.Background(), "https://kia.se")
		require.Error(t, err)
	}
	assert.False(t, s.Supports("https://kia.se"))

	_, err := s.Scrape(context.Background(), "https://kia.se")
	require.Error(t, err)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	client.AssertNumberOfCalls(t, "Read", 2)
}
