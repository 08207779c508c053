package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.aladhan.com/v1"

// Default outbound throttle. A batch of ten fetches drains the burst and then
// proceeds at the sustained rate, which keeps well under Al Adhan's limits.
const (
	DefaultRateLimit = 5.0
	DefaultBurst     = 10
)

// ErrMalformed is returned when the API answers 200 but the body is unusable.
var ErrMalformed = errors.New("malformed API response")

// Client communicates with the Al Adhan prayer times API.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	// BaseURL is the API base URL. Defaults to the Al Adhan API.
	// Exported for testing with httptest.
	BaseURL string
}

// Option configures a Client.
type Option func(*Client)

// WithRateLimit sets the sustained requests-per-second and burst. rps <= 0 disables throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a new API client with sensible defaults.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultBurst),
		BaseURL: defaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchByCoordinates fetches prayer times for the given date and coordinates.
// A negative method lets the API choose based on location.
func (c *Client) FetchByCoordinates(ctx context.Context, date time.Time, lat, lon float64, method int) (*Response, error) {
	endpoint := fmt.Sprintf("%s/timings/%s", c.BaseURL, date.Format(DateLayout))

	params := url.Values{}
	params.Set("latitude", fmt.Sprintf("%f", lat))
	params.Set("longitude", fmt.Sprintf("%f", lon))
	if method >= 0 {
		params.Set("method", fmt.Sprintf("%d", method))
	}

	return c.doTimings(ctx, endpoint, params)
}

// FetchByCity fetches prayer times for the given date, city, and country.
func (c *Client) FetchByCity(ctx context.Context, date time.Time, city, country string, method int) (*Response, error) {
	endpoint := fmt.Sprintf("%s/timingsByCity/%s", c.BaseURL, date.Format(DateLayout))

	params := url.Values{}
	params.Set("city", city)
	params.Set("country", country)
	if method >= 0 {
		params.Set("method", fmt.Sprintf("%d", method))
	}

	return c.doTimings(ctx, endpoint, params)
}

// HijriForDate converts a Gregorian date to the API's unadjusted Hijri date.
func (c *Client) HijriForDate(ctx context.Context, date time.Time) (*HijriConversion, error) {
	endpoint := fmt.Sprintf("%s/gToH/%s", c.BaseURL, date.Format(DateLayout))

	body, err := c.get(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("failed to decode Hijri response: %w", ErrMalformed)
	}

	res := gjson.ParseBytes(body)
	if code := res.Get("code").Int(); code != 200 {
		return nil, fmt.Errorf("API error: code=%d status=%s", code, res.Get("status").String())
	}

	h := res.Get("data.hijri")
	conv := &HijriConversion{
		Day:       int(h.Get("day").Int()),
		Month:     int(h.Get("month.number").Int()),
		Year:      int(h.Get("year").Int()),
		Gregorian: res.Get("data.gregorian.date").String(),
	}
	if conv.Day < 1 || conv.Day > 30 || conv.Month < 1 || conv.Month > 12 || conv.Year <= 0 {
		return nil, fmt.Errorf("Hijri date %d-%d-%d out of range: %w", conv.Day, conv.Month, conv.Year, ErrMalformed)
	}

	return conv, nil
}

func (c *Client) doTimings(ctx context.Context, endpoint string, params url.Values) (*Response, error) {
	body, err := c.get(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}

	var apiResp Response
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode API response: %w", err)
	}

	if apiResp.Code != 200 {
		return nil, fmt.Errorf("API error: code=%d status=%s", apiResp.Code, apiResp.Status)
	}

	return &apiResp, nil
}

// get performs a throttled GET and returns the body of a 200 response.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	reqURL := endpoint
	if len(params) > 0 {
		reqURL = fmt.Sprintf("%s?%s", endpoint, params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read API response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}
