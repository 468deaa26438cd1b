package fetch

import "strings"

// blockMarkers are substrings that identify an interstitial or refusal
// page served with a 2xx status. Matched case-insensitively against the
// body.
var blockMarkers = []string{
	"captcha",
	"access denied",
	"acesso negado",
	"too many requests",
	"checking your browser",
	"just a moment",
	"ray id",
}

// LooksBlocked reports whether a page body carries a block or captcha
// marker. Shared with the extractor, which runs the same check on cached
// bodies that never went through classification.
func LooksBlocked(body string) bool {
	lower := strings.ToLower(body)
	for _, marker := range blockMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
