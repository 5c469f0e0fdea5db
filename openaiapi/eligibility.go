package openaiapi

import (
	"regexp"
	"strings"
	"time"

	"github.com/onnwee/replyt/youtubeapi"
)

// maxCommentAge bounds how far back the pipeline replies; stale threads read
// worse with a late bot answer than with none.
const maxCommentAge = 7 * 24 * time.Hour

// spamPatterns match obvious solicitation comments that never deserve a reply.
var spamPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)subscribe.*channel`),
	regexp.MustCompile(`(?i)check.*out.*my`),
	regexp.MustCompile(`(?i)follow.*me.*on`),
	regexp.MustCompile(`👆👆👆`),
	regexp.MustCompile(`(?i)🔥🔥🔥.*subscribe`),
}

// Eligible decides, without any network call, whether a comment should get a
// generated reply. Replies-to-replies, near-empty reactions, stale comments and
// spam all filter out before the expensive generation call.
func (c *Client) Eligible(comment youtubeapi.Comment) bool {
	return EligibleAt(comment, time.Now())
}

// EligibleAt is Eligible with an injectable clock for the age boundary.
func EligibleAt(comment youtubeapi.Comment, now time.Time) bool {
	// Only top-level comments are answered.
	if comment.ParentID != "" {
		return false
	}
	if len([]rune(strings.TrimSpace(comment.TextOriginal))) < 3 {
		return false
	}
	if comment.PublishedAt.Before(now.Add(-maxCommentAge)) {
		return false
	}
	for _, pattern := range spamPatterns {
		if pattern.MatchString(comment.TextOriginal) {
			return false
		}
	}
	return true
}
