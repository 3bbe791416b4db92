package scrape

import (
	"net/http"
	"strings"
)

// BlockType describes the kind of block detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
	BlockEmpty      BlockType = "empty"
	BlockStatus     BlockType = "status"
)

// minContentChars is the shortest page body treated as real content.
const minContentChars = 100

// DetectBlock checks an HTTP response for signs of anti-bot protection.
func DetectBlock(resp *http.Response, body []byte) (bool, BlockType) {
	if resp == nil {
		return false, BlockNone
	}

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusServiceUnavailable {
		if resp.Header.Get("cf-ray") != "" || resp.Header.Get("cf-cache-status") != "" ||
			resp.Header.Get("server") == "cloudflare" {
			return true, BlockCloudflare
		}
	}

	lower := strings.ToLower(string(body))
	if t := detectMarkers(lower); t != BlockNone {
		return true, t
	}

	// JS-only shell: very small body with noscript or meta refresh.
	if len(body) < 2000 {
		if strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") {
			return true, BlockJSShell
		}
		if strings.Contains(lower, `meta http-equiv="refresh"`) {
			return true, BlockJSShell
		}
	}

	return false, BlockNone
}

// DetectContentBlock checks reader output, which has no headers, for a
// challenge page or an empty body. Challenge markers only count on short
// pages, since a long price page may mention the same words.
func DetectContentBlock(status int, content string) (bool, BlockType) {
	if status != 0 && status != http.StatusOK {
		return true, BlockStatus
	}
	content = strings.TrimSpace(content)
	if len(content) < minContentChars {
		return true, BlockEmpty
	}
	if len(content) >= 1000 {
		return false, BlockNone
	}
	lower := strings.ToLower(content)
	if t := detectMarkers(lower); t != BlockNone {
		return true, t
	}
	for _, sig := range []string{"enable javascript", "please enable cookies", "access denied", "403 forbidden", "just a moment"} {
		if strings.Contains(lower, sig) {
			return true, BlockJSShell
		}
	}
	return false, BlockNone
}

func detectMarkers(lower string) BlockType {
	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "cf-browser-verification") ||
		strings.Contains(lower, "cloudflare") && strings.Contains(lower, "challenge") {
		return BlockCloudflare
	}
	if strings.Contains(lower, "captcha") {
		return BlockCaptcha
	}
	return BlockNone
}
