package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rankpulse/tracker/internal/model"
)

const (
	// DefaultProviderURL is the ip-api.com free endpoint base.
	DefaultProviderURL = "http://ip-api.com"

	// DefaultLookupTimeout bounds a single provider request.
	DefaultLookupTimeout = 5 * time.Second

	// lookupFields limits the provider response to what we consume.
	lookupFields = "status,message,country,countryCode,lat,lon"

	// maxResponseSize caps how much of a provider response we read.
	maxResponseSize = 64 << 10
)

// ipAPIResponse mirrors the provider JSON for the requested fields.
type ipAPIResponse struct {
	Status      string  `json:"status"`
	Message     string  `json:"message"`
	Country     string  `json:"country"`
	CountryCode string  `json:"countryCode"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
}

// IPAPIProvider resolves IPs through an ip-api compatible HTTP endpoint.
type IPAPIProvider struct {
	baseURL    string
	httpClient *http.Client
}

// NewIPAPIProvider creates a provider for baseURL (e.g. http://ip-api.com).
func NewIPAPIProvider(baseURL string, timeout time.Duration) *IPAPIProvider {
	if baseURL == "" {
		baseURL = DefaultProviderURL
	}
	return &IPAPIProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: NewHTTPClient(timeout),
	}
}

// NewHTTPClient creates an HTTP client for provider lookups.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ResponseHeaderTimeout: timeout,
			MaxIdleConns:          10,
			MaxIdleConnsPerHost:   2,
			IdleConnTimeout:       90 * time.Second,
		},
	}
}

// Lookup resolves one IP. Transport problems and throttling/5xx responses
// wrap ErrTransport; anything else the provider rejects wraps ErrLookupFailed.
func (p *IPAPIProvider) Lookup(ctx context.Context, ip string) (*model.CountryResolution, error) {
	endpoint := fmt.Sprintf("%s/json/%s?fields=%s", p.baseURL, url.PathEscape(ip), lookupFields)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrLookupFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: provider returned %d", ErrTransport, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: provider returned %d", ErrLookupFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}

	var payload ipAPIResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode body: %v", ErrLookupFailed, err)
	}

	if payload.Status != "success" {
		return nil, fmt.Errorf("%w: status %q: %s", ErrLookupFailed, payload.Status, payload.Message)
	}
	if len(payload.CountryCode) != 2 {
		return nil, fmt.Errorf("%w: invalid country code %q", ErrLookupFailed, payload.CountryCode)
	}

	return &model.CountryResolution{
		IP:          ip,
		CountryCode: strings.ToUpper(payload.CountryCode),
		CountryName: payload.Country,
		Coordinates: model.Coordinates{payload.Lon, payload.Lat},
	}, nil
}
