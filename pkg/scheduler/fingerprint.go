package scheduler

import (
	"crypto/sha256"
	"fmt"
	"math"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// wordsPerMinute is the reading speed assumed for the reading-time estimate
const wordsPerMinute = 200

// Fingerprint computes the dedup key for a feed item: sha256 over feed identity,
// item URL and item title joined by colons. Fingerprinting on URL+title instead
// of a GUID field tolerates feeds without stable item identifiers; a title edit
// makes the item look new, which is accepted. The colon delimiter can in theory
// collide with field content, kept as a known limitation.
func Fingerprint(feedID int64, url, title string) string {
	h := sha256.Sum256(fmt.Appendf(nil, "%d:%s:%s", feedID, url, title))
	return fmt.Sprintf("%x", h)
}

// stripPolicy removes all HTML, leaving plain text
var stripPolicy = bluemonday.StrictPolicy()

// EstimateReadingTime returns reading minutes for HTML content: word count of
// the stripped text at 200 words per minute, rounded up, never below 1.
func EstimateReadingTime(htmlContent string) int {
	text := stripPolicy.Sanitize(htmlContent)
	words := len(strings.Fields(text))
	if words == 0 {
		return 1
	}

	minutes := int(math.Ceil(float64(words) / wordsPerMinute))
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}
