package analytics

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"text/template"
)

// ErrInvalidWebsiteID is returned when a beacon is requested for a malformed site id.
var ErrInvalidWebsiteID = errors.New("invalid website id")

// TrackEventPath is the ingestion route the beacon posts to.
const TrackEventPath = "/track-event"

var websiteIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// The beacon keeps one session id per browser tab, fires a single pageview
// on load and one click event per DOM click. Every network error is
// swallowed so tracking can never break the host page.
var beaconTemplate = template.Must(template.New("beacon").Parse(`(function () {
  "use strict";
  var endpoint = "{{js .Endpoint}}";
  var websiteId = "{{js .WebsiteID}}";
  var storageKey = "rp_session_id";

  function newId() {
    if (window.crypto && typeof window.crypto.randomUUID === "function") {
      return window.crypto.randomUUID();
    }
    return "xxxxxxxx-xxxx-4xxx-yxxx-xxxxxxxxxxxx".replace(/[xy]/g, function (c) {
      var r = (Math.random() * 16) | 0;
      return (c === "x" ? r : (r & 0x3) | 0x8).toString(16);
    });
  }

  function sessionId() {
    try {
      var id = window.sessionStorage.getItem(storageKey);
      if (!id) {
        id = newId();
        window.sessionStorage.setItem(storageKey, id);
      }
      return id;
    } catch (e) {
      return newId();
    }
  }

  function send(payload) {
    try {
      payload.session_id = sessionId();
      payload.url = window.location.href;
      payload.website_id = websiteId;
      payload.client_timestamp = new Date().toISOString();
      payload.screen_resolution = window.screen.width + "x" + window.screen.height;
      window.fetch(endpoint, {
        method: "POST",
        headers: { "Content-Type": "application/json" },
        body: JSON.stringify(payload),
        keepalive: true,
        mode: "cors"
      }).catch(function () {});
    } catch (e) {}
  }

  send({ event_type: "pageview" });

  document.addEventListener("click", function (ev) {
    var el = ev.target || {};
    var classes = typeof el.className === "string" ? el.className : "";
    send({
      event_type: "click",
      element_tag: el.tagName ? String(el.tagName).toLowerCase() : null,
      element_id: el.id || null,
      element_classes: classes || null,
      click_x: Math.round(ev.pageX),
      click_y: Math.round(ev.pageY)
    });
  }, true);
})();
`))

type beaconData struct {
	Endpoint  string
	WebsiteID string
}

// RenderBeacon generates the self-contained tracking snippet for a website.
// baseURL is the public origin of the ingestion service.
func RenderBeacon(baseURL, websiteID string) (string, error) {
	if !websiteIDPattern.MatchString(websiteID) {
		return "", ErrInvalidWebsiteID
	}

	var buf bytes.Buffer
	err := beaconTemplate.Execute(&buf, beaconData{
		Endpoint:  strings.TrimRight(baseURL, "/") + TrackEventPath,
		WebsiteID: websiteID,
	})
	if err != nil {
		return "", fmt.Errorf("render beacon: %w", err)
	}
	return buf.String(), nil
}
