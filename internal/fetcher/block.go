package fetcher

import (
	"bytes"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrBlocked is returned when a site served a bot challenge instead of content.
var ErrBlocked = eris.New("fetcher: page blocked by bot challenge")

// challengeSignatures are phrases seen on interstitial and captcha pages.
var challengeSignatures = []string{
	"checking your browser",
	"enable javascript",
	"please enable cookies",
	"access denied",
	"403 forbidden",
	"just a moment",
	"cloudflare",
	"attention required",
	"captcha",
	"are you a robot",
}

// challengeMaxBytes bounds how large a challenge page can be. Real listing
// pages mention "cloudflare" or "captcha" in scripts, so only short pages count.
const challengeMaxBytes = 8 << 10

// IsBlocked reports whether body looks like a challenge page.
func IsBlocked(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || len(trimmed) > challengeMaxBytes {
		return false
	}
	lower := strings.ToLower(string(trimmed))
	for _, sig := range challengeSignatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}
