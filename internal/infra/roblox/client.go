package roblox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/bryanwahyu/leakwatch/internal/domain/assets"
)

const maxBodyBytes = 8 << 20

type Config struct {
	CatalogURL        string
	GamesURL          string
	BadgesURL         string
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
	MaxPages          int
	UserAgent         string
}

func (c Config) withDefaults() Config {
	if c.CatalogURL == "" {
		c.CatalogURL = "https://catalog.roblox.com"
	}
	if c.GamesURL == "" {
		c.GamesURL = "https://games.roblox.com"
	}
	if c.BadgesURL == "" {
		c.BadgesURL = "https://badges.roblox.com"
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 2
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 100
	}
	if c.UserAgent == "" {
		c.UserAgent = "leakwatch/1.0"
	}
	c.CatalogURL = strings.TrimRight(c.CatalogURL, "/")
	c.GamesURL = strings.TrimRight(c.GamesURL, "/")
	c.BadgesURL = strings.TrimRight(c.BadgesURL, "/")
	return c
}

// Client lists assets from the public Roblox web APIs. Every request waits on a
// shared limiter so scans stay within a polite request rate.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger

	// OnRequest, when set, observes every upstream call.
	OnRequest func(endpoint string, status int, took time.Duration)
}

func New(cfg Config, log zerolog.Logger) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		log:     log,
	}
}

// getJSON wraps every failure in assets.ErrSourceUnavailable.
func (c *Client) getJSON(ctx context.Context, endpoint, url string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %v", assets.ErrSourceUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", assets.ErrSourceUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(endpoint, 0, start)
		return fmt.Errorf("%w: %s: %v", assets.ErrSourceUnavailable, endpoint, err)
	}
	defer resp.Body.Close()
	c.observe(endpoint, resp.StatusCode, start)

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("%w: %s returned %d: %s", assets.ErrSourceUnavailable, endpoint, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", assets.ErrSourceUnavailable, endpoint, err)
	}
	return nil
}

func (c *Client) observe(endpoint string, status int, start time.Time) {
	took := time.Since(start)
	c.log.Debug().Str("endpoint", endpoint).Int("status", status).Dur("took", took).Msg("roblox request")
	if c.OnRequest != nil {
		c.OnRequest(endpoint, status, took)
	}
}

type page struct {
	NextPageCursor *string           `json:"nextPageCursor"`
	Data           []json.RawMessage `json:"data"`
}

// drain follows nextPageCursor until the listing is exhausted. A listing longer
// than MaxPages is treated as unavailable rather than returned partially.
func (c *Client) drain(ctx context.Context, endpoint string, pageURL func(cursor string) string) ([]json.RawMessage, error) {
	var out []json.RawMessage
	cursor := ""
	for i := 0; i < c.cfg.MaxPages; i++ {
		var p page
		if err := c.getJSON(ctx, endpoint, pageURL(cursor), &p); err != nil {
			return nil, err
		}
		out = append(out, p.Data...)
		if p.NextPageCursor == nil || *p.NextPageCursor == "" {
			return out, nil
		}
		if *p.NextPageCursor == cursor {
			return nil, fmt.Errorf("%w: %s repeated cursor %q", assets.ErrSourceUnavailable, endpoint, cursor)
		}
		cursor = *p.NextPageCursor
	}
	return nil, fmt.Errorf("%w: %s has more than %d pages", assets.ErrSourceUnavailable, endpoint, c.cfg.MaxPages)
}
