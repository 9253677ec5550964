package scrape

import "strings"

// blockedMarkers are phrases that show up when a bot wall served an
// interstitial instead of the real page. Matching is case-insensitive
// and only applied to short responses, since a legitimate page can
// mention these terms in passing.
var blockedMarkers = []string{
	"verify you are human",
	"checking your browser",
	"enable javascript and cookies",
	"access denied",
	"captcha",
	"attention required",
	"are you a robot",
}

const blockedScanLimit = 2000

// Blocked reports whether page content looks like a bot-wall
// interstitial rather than real site content.
func Blocked(content string) bool {
	if len(content) > blockedScanLimit {
		return false
	}
	lower := strings.ToLower(content)
	for _, m := range blockedMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
