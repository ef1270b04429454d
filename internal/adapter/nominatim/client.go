package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/incident-alert-service/internal/domain"
	"github.com/couchcryptid/incident-alert-service/internal/observability"
)

// DefaultBaseURL is the public OpenStreetMap Nominatim endpoint.
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

// Client implements domain.Lookup using the Nominatim search API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Nominatim geocoding client. Nominatim's usage policy
// requires an identifying User-Agent.
func NewClient(baseURL, userAgent string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:   baseURL,
		userAgent: userAgent,
		metrics:   metrics,
		logger:    logger,
	}
}

// Search forward-geocodes a single query. An empty result set is reported
// with ok=false and no error.
func (c *Client) Search(ctx context.Context, query string) (domain.GeocodeResult, bool, error) {
	params := url.Values{
		"format":         {"json"},
		"q":              {query},
		"limit":          {"1"},
		"addressdetails": {"1"},
	}
	fullURL := c.baseURL + "/search?" + params.Encode()

	start := time.Now()
	result, ok, err := c.doRequest(ctx, fullURL)
	c.metrics.GeocodeAPIDuration.Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
	case !ok:
		c.metrics.GeocodeRequests.WithLabelValues("empty").Inc()
	default:
		c.metrics.GeocodeRequests.WithLabelValues("success").Inc()
	}
	return result, ok, err
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (domain.GeocodeResult, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.GeocodeResult{}, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.GeocodeResult{}, false, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.GeocodeResult{}, false, fmt.Errorf("nominatim API error: status %d: %s", resp.StatusCode, body)
	}

	var places []place
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return domain.GeocodeResult{}, false, fmt.Errorf("decode response: %w", err)
	}
	if len(places) == 0 {
		return domain.GeocodeResult{}, false, nil
	}

	p := places[0]
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return domain.GeocodeResult{}, false, fmt.Errorf("parse lat %q: %w", p.Lat, err)
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return domain.GeocodeResult{}, false, fmt.Errorf("parse lon %q: %w", p.Lon, err)
	}

	c.logger.Debug("nominatim match", "display_name", p.DisplayName)
	return domain.GeocodeResult{
		Lat:    lat,
		Lon:    lon,
		City:   p.Address.locality(),
		Region: p.Address.State,
	}, true, nil
}

// Nominatim API response types.

type place struct {
	Lat         string  `json:"lat"` // decimal string
	Lon         string  `json:"lon"`
	DisplayName string  `json:"display_name"`
	Address     address `json:"address"`
}

type address struct {
	City    string `json:"city"`
	Town    string `json:"town"`
	Village string `json:"village"`
	State   string `json:"state"`
}

func (a address) locality() string {
	switch {
	case a.City != "":
		return a.City
	case a.Town != "":
		return a.Town
	default:
		return a.Village
	}
}
