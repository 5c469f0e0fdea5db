package openaiapi

import (
	"testing"
	"time"

	"github.com/onnwee/replyt/youtubeapi"
)

func freshComment(text string) youtubeapi.Comment {
	return youtubeapi.Comment{
		ID:           "c1",
		VideoID:      "v1",
		Author:       "viewer",
		TextOriginal: text,
		PublishedAt:  time.Now().Add(-time.Hour),
	}
}

func TestEligibleRejectsReplies(t *testing.T) {
	c := freshComment("Great video!")
	c.ParentID = "parent-comment"
	if EligibleAt(c, time.Now()) {
		t.Error("replies to other comments must never be eligible")
	}
}

func TestEligibleRejectsShortText(t *testing.T) {
	cases := []string{"", " ", "hi", "  ok  ", "👍"}
	for _, text := range cases {
		if EligibleAt(freshComment(text), time.Now()) {
			t.Errorf("text %q should be ineligible", text)
		}
	}
	if !EligibleAt(freshComment("wow"), time.Now()) {
		t.Error("three characters should be eligible")
	}
}

func TestEligibleAgeBoundary(t *testing.T) {
	now := time.Now()
	c := freshComment("Great explanation, thanks")

	c.PublishedAt = now.Add(-7*24*time.Hour - time.Minute)
	if EligibleAt(c, now) {
		t.Error("comment one minute older than seven days should be ineligible")
	}

	c.PublishedAt = now.Add(-7*24*time.Hour + time.Minute)
	if !EligibleAt(c, now) {
		t.Error("comment one minute younger than seven days should be eligible")
	}
}

func TestEligibleRejectsSpam(t *testing.T) {
	spam := []string{
		"Please SUBSCRIBE to my channel",
		"check out my latest upload",
		"Follow me on instagram",
		"👆👆👆 free giveaway",
		"🔥🔥🔥 subscribe now",
	}
	for _, text := range spam {
		if EligibleAt(freshComment(text), time.Now()) {
			t.Errorf("spam %q should be ineligible", text)
		}
	}
}

func TestEligibleAcceptsNormalComment(t *testing.T) {
	if !EligibleAt(freshComment("Great video! Really helped me understand pointers."), time.Now()) {
		t.Error("ordinary fresh top-level comment should be eligible")
	}
}
