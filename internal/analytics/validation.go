// Package analytics provides tracking beacon capture: payload parsing,
// validation, sanitization and beacon script generation.
package analytics

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rankpulse/tracker/internal/model"
)

// Error codes returned to beacon clients on rejected payloads.
const (
	CodeInvalidPayload   = "InvalidPayload"
	CodeMissingField     = "MissingField"
	CodeInvalidEventType = "InvalidEventType"
	CodeInvalidURL       = "InvalidUrl"
)

// ValidationError is a client input error carrying a machine-readable code.
type ValidationError struct {
	Code  string
	Field string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Field)
}

// RequestMeta is the server-captured context of a beacon request.
type RequestMeta struct {
	IP         string
	UserAgent  string
	ReceivedAt time.Time
}

var screenResolutionPattern = regexp.MustCompile(`^\d{1,5}x\d{1,5}$`)

// ParseTrackEvent decodes, validates and sanitizes a beacon body.
// Validation stops at the first failure; sanitization never rejects.
func ParseTrackEvent(body []byte, meta RequestMeta) (*model.TrackingEvent, error) {
	fields, err := decodeObject(body)
	if err != nil {
		return nil, &ValidationError{Code: CodeInvalidPayload}
	}

	sessionID, ok := stringField(fields, "session_id")
	if !ok || sessionID == "" {
		return nil, &ValidationError{Code: CodeMissingField, Field: "session_id"}
	}

	eventType, _ := stringField(fields, "event_type")
	if !model.EventType(eventType).IsValid() {
		return nil, &ValidationError{Code: CodeInvalidEventType, Field: "event_type"}
	}

	rawURL, ok := stringField(fields, "url")
	if !ok || !isAbsoluteURL(rawURL) {
		return nil, &ValidationError{Code: CodeInvalidURL, Field: "url"}
	}

	clientTimestamp, ok := stringField(fields, "client_timestamp")
	if !ok || clientTimestamp == "" {
		return nil, &ValidationError{Code: CodeMissingField, Field: "client_timestamp"}
	}

	event := &model.TrackingEvent{
		SessionID:       Truncate(sessionID, model.MaxSessionIDLength),
		EventType:       model.EventType(eventType),
		URL:             Truncate(rawURL, model.MaxURLLength),
		ClientTimestamp: Truncate(clientTimestamp, model.MaxClientTimestampLength),
		ReceivedAt:      meta.ReceivedAt.UTC(),

		ElementTag:     optionalString(fields, "element_tag", model.MaxElementTagLength),
		ElementID:      optionalString(fields, "element_id", model.MaxElementIDLength),
		ElementClasses: optionalString(fields, "element_classes", model.MaxElementClassesLength),
		ClickX:         coordinateField(fields, "click_x"),
		ClickY:         coordinateField(fields, "click_y"),
		WebsiteID:      optionalString(fields, "website_id", model.MaxWebsiteIDLength),

		UserAgent: nullable(Truncate(strings.TrimSpace(meta.UserAgent), model.MaxUserAgentLength)),
	}

	if res := optionalString(fields, "screen_resolution", model.MaxScreenResolutionLength); res != nil && screenResolutionPattern.MatchString(*res) {
		event.ScreenResolution = res
	}

	if meta.IP != "" && meta.IP != UnknownIP {
		event.IPAddress = nullable(Truncate(meta.IP, model.MaxIPAddressLength))
	}

	return event, nil
}

// decodeObject parses body as a single JSON object, keeping numbers exact.
// Anything but whitespace after the object is an error.
func decodeObject(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, fmt.Errorf("payload is not an object")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after payload object")
	}
	return fields, nil
}

// stringField returns the trimmed value of a string field.
// ok is false when the field is absent or not a string.
func stringField(fields map[string]any, key string) (string, bool) {
	s, ok := fields[key].(string)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(s), true
}

// optionalString returns a trimmed, truncated copy of a string field,
// or nil when the field is absent, empty or of the wrong type.
func optionalString(fields map[string]any, key string, maxLen int) *string {
	s, ok := stringField(fields, key)
	if !ok {
		return nil
	}
	return nullable(Truncate(s, maxLen))
}

// coordinateField clamps a numeric field into the click coordinate range.
// Non-numeric values become nil. Literals beyond float64 range parse as
// ±Inf and clamp like any other out-of-range value.
func coordinateField(fields map[string]any, key string) *int {
	n, ok := fields[key].(json.Number)
	if !ok {
		return nil
	}
	f, err := n.Float64()
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return nil
	}
	if math.IsNaN(f) {
		return nil
	}
	v := ClampCoordinate(f)
	return &v
}

// isAbsoluteURL reports whether raw parses as a URL with a scheme and host.
func isAbsoluteURL(raw string) bool {
	if raw == "" {
		return false
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return parsed.Scheme != "" && parsed.Host != ""
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
