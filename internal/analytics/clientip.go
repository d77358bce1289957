package analytics

import (
	"net/http"
	"strings"
)

// UnknownIP is the rate-limit key used when no client IP header is present.
const UnknownIP = "unknown"

// Client IP headers in priority order.
const (
	HeaderCFConnectingIP = "CF-Connecting-IP"
	HeaderRealIP         = "X-Real-IP"
	HeaderForwardedFor   = "X-Forwarded-For"
)

// ClientIP extracts the caller's IP from proxy headers.
// Order: CF-Connecting-IP, X-Real-IP, first X-Forwarded-For entry, "unknown".
func ClientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get(HeaderCFConnectingIP)); ip != "" {
		return ip
	}

	if ip := strings.TrimSpace(r.Header.Get(HeaderRealIP)); ip != "" {
		return ip
	}

	if xff := r.Header.Get(HeaderForwardedFor); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	return UnknownIP
}
