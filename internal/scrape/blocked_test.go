package scrape

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlockedDetectsBotWalls(t *testing.T) {
	assert.True(t, Blocked("Attention Required! | Cloudflare"))
	assert.True(t, Blocked("Please verify you are human to continue."))
	assert.True(t, Blocked("Checking your browser before accessing example.com"))
}

func TestBlockedIgnoresRealContent(t *testing.T) {
	assert.False(t, Blocked("## Opening Hours\nMon-Fri 9am-6pm\nSat 10am-2pm"))
	assert.False(t, Blocked(""))
}

func TestBlockedIgnoresLongPagesMentioningMarkers(t *testing.T) {
	page := strings.Repeat("Our security products solve captcha fatigue. ", 100)
	assert.False(t, Blocked(page))
}
