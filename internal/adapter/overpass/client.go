// internal/adapter/overpass/client.go

package overpass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"slonstudy/internal/domain/spot"
)

// DefaultEndpoint is the public Overpass interpreter
const DefaultEndpoint = "https://overpass-api.de/api/interpreter"

var (
	ErrUnexpectedStatus = errors.New("unexpected status from overpass")
	ErrMalformedBody    = errors.New("malformed overpass response")
)

// Config contains configuration for the Overpass client
type Config struct {
	Endpoint string
	// UserAgent identifies the application to the upstream usage policy
	UserAgent string
	Timeout   time.Duration
}

// Client queries the Overpass API for study spots
type Client struct {
	HTTPClient *http.Client
	endpoint   string
	userAgent  string
}

// NewClient creates a new Overpass API client
func NewClient(cfg Config) *Client {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 25 * time.Second
	}

	return &Client{
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		endpoint:  endpoint,
		userAgent: cfg.UserAgent,
	}
}

// FetchStudySpots issues one query for the box and parses the result
func (c *Client) FetchStudySpots(ctx context.Context, bbox spot.BoundingBox) ([]spot.StudySpot, error) {
	reqURL := c.endpoint + "?data=" + url.QueryEscape(BuildQuery(bbox))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to overpass: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain a little of the body so the connection can be reused
		io.CopyN(io.Discard, resp.Body, 4096)
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	spots, err := ParseResponse(resp.Body)
	if err != nil {
		return nil, err
	}

	return spots, nil
}

// element is one upstream record. Coordinates are pointers so that a
// missing field can be told apart from zero.
type element struct {
	Lat  *float64  `json:"lat"`
	Lon  *float64  `json:"lon"`
	Tags spot.Tags `json:"tags"`
}

// ParseResponse decodes an Overpass JSON body into study spots, in upstream
// order. Elements that are malformed, lack coordinates, lack tags or lack a
// name are skipped; a body that is not an object with an elements array is
// an error.
func ParseResponse(r io.Reader) ([]spot.StudySpot, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}

	elementsJSON, ok := raw["elements"]
	if !ok {
		return nil, fmt.Errorf("%w: missing elements", ErrMalformedBody)
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(elementsJSON, &elements); err != nil {
		return nil, fmt.Errorf("%w: elements is not an array: %v", ErrMalformedBody, err)
	}

	spots := make([]spot.StudySpot, 0, len(elements))
	for _, rawEl := range elements {
		var el element
		if err := json.Unmarshal(rawEl, &el); err != nil {
			continue
		}

		if el.Lat == nil || el.Lon == nil {
			continue
		}

		s, ok := spot.FromTags(spot.Location{Latitude: *el.Lat, Longitude: *el.Lon}, el.Tags)
		if !ok {
			continue
		}

		spots = append(spots, s)
	}

	return spots, nil
}
