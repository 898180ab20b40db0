package reviewapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cuongbtq/review-monitor/internal/domain"
)

const (
	// DefaultBaseURL is the RapidAPI Trustpilot endpoint root
	DefaultBaseURL = "https://trustpilot-company-and-reviews-data.p.rapidapi.com"
	// DefaultHost is sent as the x-rapidapi-host header
	DefaultHost = "trustpilot-company-and-reviews-data.p.rapidapi.com"
	// DefaultTimeout bounds a single provider call
	DefaultTimeout = 30 * time.Second

	searchPath  = "/company-search"
	reviewsPath = "/company-reviews"

	maxBodySize = 10 * 1024 * 1024
)

// Config holds provider connection configuration
type Config struct {
	BaseURL string
	Host    string
	APIKey  string
	Timeout time.Duration
}

// Client calls the review directory API
type Client struct {
	config *Config
	client *http.Client
	logger *slog.Logger
}

// NewClient creates a new provider client
func NewClient(config *Config, logger *slog.Logger) *Client {
	cfg := *config
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		config: &cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// FetchReviews returns the provider's current reviews for companyDomain.
// A returned error is a transport failure; malformed entries are skipped and logged.
func (c *Client) FetchReviews(ctx context.Context, companyDomain string) ([]domain.Review, error) {
	var envelope struct {
		Data struct {
			Reviews []json.RawMessage `json:"reviews"`
		} `json:"data"`
	}

	params := url.Values{"company_domain": {companyDomain}}
	if err := c.get(ctx, reviewsPath, params, &envelope); err != nil {
		return nil, fmt.Errorf("failed to fetch reviews for %s: %w", companyDomain, err)
	}

	reviews := make([]domain.Review, 0, len(envelope.Data.Reviews))
	for i, raw := range envelope.Data.Reviews {
		review, err := parseReview(raw, companyDomain)
		if err != nil {
			c.logger.Warn("Skipping malformed review",
				slog.String("domain", companyDomain),
				slog.Int("index", i),
				slog.String("error", err.Error()),
			)
			continue
		}
		reviews = append(reviews, review)
	}

	c.logger.Debug("Fetched reviews from provider",
		slog.String("domain", companyDomain),
		slog.Int("received", len(envelope.Data.Reviews)),
		slog.Int("parsed", len(reviews)),
	)

	return reviews, nil
}

// SearchCompanies returns the companies matching query
func (c *Client) SearchCompanies(ctx context.Context, query string) ([]domain.Company, error) {
	var envelope struct {
		Data struct {
			Companies []providerCompany `json:"companies"`
		} `json:"data"`
	}

	params := url.Values{"query": {query}}
	if err := c.get(ctx, searchPath, params, &envelope); err != nil {
		return nil, fmt.Errorf("failed to search companies: %w", err)
	}

	companies := make([]domain.Company, 0, len(envelope.Data.Companies))
	for _, pc := range envelope.Data.Companies {
		companies = append(companies, pc.toDomain())
	}

	return companies, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	endpoint := c.config.BaseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-rapidapi-host", c.config.Host)
	req.Header.Set("x-rapidapi-key", c.config.APIKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("Provider responded",
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
