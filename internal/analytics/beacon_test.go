package analytics

import (
	"errors"
	"strings"
	"testing"
)

func TestRenderBeacon(t *testing.T) {
	t.Parallel()

	script, err := RenderBeacon("https://track.example.com/", "w1")
	if err != nil {
		t.Fatalf("RenderBeacon failed: %v", err)
	}

	wants := []string{
		`"https://track.example.com/track-event"`,
		`var websiteId = "w1"`,
		`event_type: "pageview"`,
		`event_type: "click"`,
		`addEventListener("click"`,
		`.catch(function () {})`,
	}
	for _, want := range wants {
		if !strings.Contains(script, want) {
			t.Errorf("beacon script missing %q", want)
		}
	}

	if strings.Count(script, `send({ event_type: "pageview" })`) != 1 {
		t.Error("beacon should fire exactly one pageview on load")
	}
}

func TestRenderBeacon_RejectsBadWebsiteID(t *testing.T) {
	t.Parallel()

	tests := []string{
		"",
		`w1"; alert(1); "`,
		"has space",
		strings.Repeat("a", 65),
	}

	for _, id := range tests {
		if _, err := RenderBeacon("https://track.example.com", id); !errors.Is(err, ErrInvalidWebsiteID) {
			t.Errorf("RenderBeacon(%q) error = %v, want ErrInvalidWebsiteID", id, err)
		}
	}
}

func TestRenderBeacon_EscapesEndpoint(t *testing.T) {
	t.Parallel()

	script, err := RenderBeacon(`https://evil.example.com/"+alert(1)+"`, "w1")
	if err != nil {
		t.Fatalf("RenderBeacon failed: %v", err)
	}

	if strings.Contains(script, `"+alert(1)+"`) {
		t.Error("endpoint must be JS-escaped inside the string literal")
	}
}
