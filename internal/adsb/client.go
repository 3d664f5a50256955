package adsb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yegors/overhead/pkg/logger"
)

// Source types understood by the client
const (
	SourceLocal    = "local"
	SourceExternal = "external-adsbexchangelike"
)

// ClientConfig describes where to poll aircraft from
type ClientConfig struct {
	SourceType string
	// LocalURL points at a tar1090/readsb aircraft.json
	LocalURL string
	// ExternalURL is a format string taking latitude, longitude and radius (nm)
	ExternalURL string
	APIHost     string
	APIKey      string
	Latitude    float64
	Longitude   float64
	RadiusNM    float64
	Timeout     time.Duration
}

// Client is responsible for fetching ADS-B data from the source
type Client struct {
	httpClient *http.Client
	cfg        ClientConfig
	now        func() time.Time
	logger     *logger.Logger
}

// NewClient creates a new ADS-B client
func NewClient(cfg ClientConfig, log *logger.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		now:        time.Now,
		logger:     log.Named("adsb-cli"),
	}
}

// FetchData fetches one snapshot from the configured source
func (c *Client) FetchData(ctx context.Context) (*Snapshot, error) {
	switch c.cfg.SourceType {
	case SourceLocal:
		return c.fetch(ctx, c.cfg.LocalURL, nil)
	case SourceExternal:
		url := fmt.Sprintf(c.cfg.ExternalURL, c.cfg.Latitude, c.cfg.Longitude, c.cfg.RadiusNM)
		return c.fetch(ctx, url, map[string]string{
			"x-rapidapi-host": c.cfg.APIHost,
			"x-rapidapi-key":  c.cfg.APIKey,
		})
	default:
		return nil, fmt.Errorf("unknown source type: %s", c.cfg.SourceType)
	}
}

func (c *Client) fetch(ctx context.Context, url string, headers map[string]string) (*Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	c.logger.Debug("Fetching ADS-B data",
		logger.String("source", c.cfg.SourceType),
		logger.String("url", url))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var data Snapshot
	if err := json.Unmarshal(body, &data); err != nil {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		c.logger.Debug("Unparseable response body", logger.String("body", strings.TrimSpace(preview)))
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	// ADSBExchange-like APIs report "now" in milliseconds, or not at all
	switch {
	case data.Now <= 0:
		data.Now = float64(c.now().UnixMilli()) / 1000
	case data.Now > 1e11:
		data.Now /= 1000
	}

	c.logger.Debug("Fetched ADS-B data",
		logger.Int("aircraft_count", len(data.Targets())),
		logger.Int("message_count", data.Messages))

	return &data, nil
}
