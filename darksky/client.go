package darksky

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Sender performs the HTTP GET for a fully formatted request URL and returns
// the response body. Implementations report failures to reach the API, and
// non-2xx responses, as errors.
type Sender interface {
	Send(ctx context.Context, url string) (io.ReadCloser, error)
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, url string) (io.ReadCloser, error)

// Send calls f(ctx, url).
func (f SenderFunc) Send(ctx context.Context, url string) (io.ReadCloser, error) {
	return f(ctx, url)
}

// HTTPSender is the Sender backed by a net/http client.
type HTTPSender struct {
	HTTPClient *http.Client
	UserAgent  string
}

// Send issues the GET request. A non-2xx status is returned as *APIError
// with the response body as the message.
func (s *HTTPSender) Send(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, newError(KindInvalidURI, "create request", err)
	}

	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}
	req.Header.Set("Accept", "application/json")

	httpClient := s.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, newError(KindTransport, "send request", &NetworkError{Operation: "GET", Err: err})
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, newError(KindTransport, "send request", &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
		})
	}

	return resp.Body, nil
}

// Client retrieves forecasts from the DarkSky API.
// It holds no per-request state and is safe for concurrent use.
type Client struct {
	sender  Sender
	baseURL string
}

// NewClient creates a client with a 30 second HTTP timeout
func NewClient(userAgent string) *Client {
	return NewClientWithHTTPClient(&http.Client{
		Timeout: 30 * time.Second,
	}, userAgent)
}

// NewClientWithHTTPClient creates a new client with a custom HTTP client
func NewClientWithHTTPClient(httpClient *http.Client, userAgent string) *Client {
	return NewClientWithSender(&HTTPSender{
		HTTPClient: httpClient,
		UserAgent:  userAgent,
	})
}

// NewClientWithSender creates a client that delegates the HTTP call to s.
func NewClientWithSender(s Sender) *Client {
	return &Client{
		sender:  s,
		baseURL: DefaultBaseURL,
	}
}

// SetBaseURL sets the base URL for the API (useful for testing)
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// BaseURL returns the base URL requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetForecast retrieves the forecast for a location with units chosen by
// the API from the location.
func (c *Client) GetForecast(ctx context.Context, token string, latitude, longitude float64) (*Forecast, error) {
	reqURL, err := FormatAutoURL(c.baseURL, token, latitude, longitude)
	if err != nil {
		return nil, err
	}
	return c.get(ctx, reqURL)
}

// GetForecastWithOptions retrieves the forecast for a location. configure
// receives empty Options and returns the options to send:
//
//	forecast, err := client.GetForecastWithOptions(ctx, token, 37.8267, -122.423,
//		func(o darksky.Options) darksky.Options {
//			return o.Exclude(darksky.BlockMinutely).Unit(darksky.UnitSI)
//		})
//
// Unlike GetForecast, no unit is requested unless configure sets one.
func (c *Client) GetForecastWithOptions(ctx context.Context, token string, latitude, longitude float64, configure func(Options) Options) (*Forecast, error) {
	reqURL, err := FormatURL(c.baseURL, token, latitude, longitude, "", applyOptions(configure))
	if err != nil {
		return nil, err
	}
	return c.get(ctx, reqURL)
}

// GetForecastTimeMachine retrieves observed or forecast conditions at a
// point in time. at is a Unix timestamp or a local/zoned ISO-8601 time as
// produced by the utils package; it is not validated here.
func (c *Client) GetForecastTimeMachine(ctx context.Context, token string, latitude, longitude float64, at string, configure func(Options) Options) (*Forecast, error) {
	if at == "" {
		return nil, newError(KindFormat, "format time", &ValidationError{Field: "time", Message: "time must not be empty"})
	}
	reqURL, err := FormatURL(c.baseURL, token, latitude, longitude, at, applyOptions(configure))
	if err != nil {
		return nil, err
	}
	return c.get(ctx, reqURL)
}

// get is the internal method that performs the actual API request
func (c *Client) get(ctx context.Context, reqURL string) (*Forecast, error) {
	body, err := c.sender.Send(ctx, reqURL)
	if err != nil {
		return nil, asTransportError(err)
	}
	defer body.Close()

	return DecodeReader(body)
}

func applyOptions(configure func(Options) Options) Options {
	if configure == nil {
		return Options{}
	}
	return configure(Options{})
}

// asTransportError leaves library errors alone and classifies anything else
// a custom Sender returns as a transport failure.
func asTransportError(err error) error {
	if _, ok := err.(*Error); ok {
		return err
	}
	return newError(KindTransport, "send request", err)
}

// ValidateCoordinates validates that the coordinates are within acceptable ranges
func ValidateCoordinates(latitude, longitude float64) error {
	if latitude < -90 || latitude > 90 {
		return &ValidationError{Field: "latitude", Message: fmt.Sprintf("must be between -90 and 90, got %f", latitude)}
	}
	if longitude < -180 || longitude > 180 {
		return &ValidationError{Field: "longitude", Message: fmt.Sprintf("must be between -180 and 180, got %f", longitude)}
	}
	return nil
}
