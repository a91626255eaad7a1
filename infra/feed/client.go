// Package feed reads the Midttrafik live vehicle feed.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/kilianp07/bustrack/core/model"
	"github.com/kilianp07/bustrack/infra/logger"
)

// ErrUnavailable wraps transport failures: the upstream could not be reached.
var ErrUnavailable = errors.New("feed unavailable")

// DefaultUserAgent identifies the collector upstream.
const DefaultUserAgent = "bustrack/0.1 (+https://github.com/kilianp07/bustrack)"

// Config locates the feed and the area it is queried for.
type Config struct {
	BaseURL   string        `json:"base_url" validate:"required,url"`
	Lat       float64       `json:"lat" validate:"gte=-90,lte=90"`
	Lon       float64       `json:"lon" validate:"gte=-180,lte=180"`
	RadiusM   float64       `json:"radius_m" validate:"gt=0"`
	UserAgent string        `json:"user_agent"`
	Timeout   time.Duration `json:"timeout"`
	TimeZone  string        `json:"time_zone"`
	// Auth enables OAuth2 client credentials, for feeds behind an
	// authenticating proxy.
	Auth *AuthConfig `json:"auth,omitempty"`
}

// AuthConfig holds OAuth2 client credentials.
type AuthConfig struct {
	ClientID     string   `json:"client_id" validate:"required"`
	ClientSecret string   `json:"client_secret" validate:"required"`
	TokenURL     string   `json:"token_url" validate:"required,url"`
	Scopes       []string `json:"scopes"`
}

// Client fetches and parses the vehicle list.
type Client struct {
	cfg  Config
	http *http.Client
	loc  *time.Location
	log  logger.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithLogger replaces the logger.
func WithLogger(l logger.Logger) Option { return func(c *Client) { c.log = l } }

// NewClient validates cfg and returns a Client.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if _, err := url.Parse(cfg.BaseURL); err != nil || cfg.BaseURL == "" {
		return nil, fmt.Errorf("feed base url %q invalid", cfg.BaseURL)
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	loc := time.UTC
	if cfg.TimeZone != "" {
		l, err := time.LoadLocation(cfg.TimeZone)
		if err != nil {
			return nil, fmt.Errorf("feed time zone: %w", err)
		}
		loc = l
	}
	c := &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		loc: loc,
		log: logger.New("feed"),
	}
	for _, o := range opts {
		o(c)
	}
	if a := cfg.Auth; a != nil && a.ClientID != "" {
		c.http = withClientCredentials(c.http, *a)
	}
	return c, nil
}

// withClientCredentials returns a copy of h that authenticates every request
// with a cached client-credentials token.
func withClientCredentials(h *http.Client, a AuthConfig) *http.Client {
	cc := clientcredentials.Config{
		ClientID:     a.ClientID,
		ClientSecret: a.ClientSecret,
		TokenURL:     a.TokenURL,
		Scopes:       a.Scopes,
	}
	base := h.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	out := *h
	out.Transport = &oauth2.Transport{Source: cc.TokenSource(context.Background()), Base: base}
	return &out
}

// Location is the time zone of feed timestamps.
func (c *Client) Location() *time.Location { return c.loc }

// URL returns the getbuses query URL.
func (c *Client) URL() string {
	q := url.Values{}
	q.Set("lat", fmt.Sprint(c.cfg.Lat))
	q.Set("lon", fmt.Sprint(c.cfg.Lon))
	q.Set("radius", fmt.Sprint(c.cfg.RadiusM))
	return c.cfg.BaseURL + "/getbuses.php?" + q.Encode()
}

func (c *Client) get(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return resp, nil
}

// Fetch downloads the raw XML document.
func (c *Client) Fetch(ctx context.Context) ([]byte, error) {
	resp, err := c.get(ctx, c.URL())
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed status %d", resp.StatusCode)
	}
	return body, nil
}

// Parse decodes a document fetched by this client.
func (c *Client) Parse(data []byte) ([]model.VehicleReport, error) {
	return Parse(data, c.loc)
}

// Reachable reports whether the feed domain answers at all. Redirects and
// error statuses count as reachable.
func (c *Client) Reachable(ctx context.Context) bool {
	resp, err := c.get(ctx, c.cfg.BaseURL)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return true
}

// WaitForNetwork blocks until Reachable succeeds, probing with exponential
// backoff from initial up to maxDelay.
func (c *Client) WaitForNetwork(ctx context.Context, initial, maxDelay time.Duration) error {
	if c.Reachable(ctx) {
		return nil
	}
	if initial <= 0 {
		initial = time.Second
	}
	if maxDelay < initial {
		maxDelay = initial
	}
	c.log.Warnf("cannot connect to %s, waiting for network", c.cfg.BaseURL)
	delay := initial
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		if c.Reachable(ctx) {
			c.log.Infof("network connection to %s restored", c.cfg.BaseURL)
			return nil
		}
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}
