package scrape

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectBlock_Cloudflare403(t *testing.T) {
	resp := &http.Response{
		StatusCode: 403,
		Header:     http.Header{"Cf-Ray": {"abc123"}},
	}
	blocked, bt := DetectBlock(resp, nil)
	assert.True(t, blocked)
	assert.Equal(t, BlockCloudflare, bt)
}

func TestDetectBlock_Cloudflare503Server(t *testing.T) {
	resp := &http.Response{
		StatusCode: 503,
		Header:     http.Header{"Server": {"cloudflare"}},
	}
	blocked, bt := DetectBlock(resp, nil)
	assert.True(t, blocked)
	assert.Equal(t, BlockCloudflare, bt)
}

func TestDetectBlock_CaptchaInBody(t *testing.T) {
	resp := &http.Response{StatusCode: 200, Header: http.Header{}}
	body := []byte("<html><body>Please complete the reCAPTCHA to see our prices</body></html>")
	blocked, bt := DetectBlock(resp, body)
	assert.True(t, blocked)
	assert.Equal(t, BlockCaptcha, bt)
}

func TestDetectBlock_JSShell(t *testing.T) {
	resp := &http.Response{StatusCode: 200, Header: http.Header{}}
	body := []byte("<html><noscript>Aktivera JavaScript to continue</noscript></html>")
	blocked, bt := DetectBlock(resp, body)
	assert.True(t, blocked)
	assert.Equal(t, BlockJSShell, bt)
}

func TestDetectBlock_NilResponse(t *testing.T) {
	blocked, bt := DetectBlock(nil, nil)
	assert.False(t, blocked)
	assert.Equal(t, BlockNone, bt)
}

func TestDetectBlock_CleanPage(t *testing.T) {
	resp := &http.Response{StatusCode: 200, Header: http.Header{}}
	body := []byte("<html><body><h1>Nya Kia Ceed</h1><p>Pris från 279 900 kr</p></body></html>")
	blocked, bt := DetectBlock(resp, body)
	assert.False(t, blocked)
	assert.Equal(t, BlockNone, bt)
}

func TestDetectContentBlock(t *testing.T) {
	long := strings.Repeat("Kia Ceed GT-Line 1.5 T-GDi 160 hk DCT 329 900 kr\n", 30)
	tests := []struct {
		name    string
		status  int
		content string
		want    BlockType
	}{
		{"ok", 200, long, BlockNone},
		{"zero status means ok", 0, long, BlockNone},
		{"bad status", 451, long, BlockStatus},
		{"empty", 200, "   ", BlockEmpty},
		{"short", 200, "Hello", BlockEmpty},
		{"challenge", 200, "Just a moment... Checking your browser before accessing the site. " + strings.Repeat(".", 80), BlockCloudflare},
		{"cookies", 200, "Please enable cookies to continue using this website and view the prices here. " + strings.Repeat(".", 40), BlockJSShell},
		{"long page mentioning captcha", 200, long + " captcha", BlockNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocked, bt := DetectContentBlock(tt.status, tt.content)
			assert.Equal(t, tt.want != BlockNone, blocked)
			assert.Equal(t, tt.want, bt)
		})
	}
}
