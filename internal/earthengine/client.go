// Package earthengine is a minimal client for the Earth Engine REST API.
package earthengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// PublicCatalogProject hosts the public data catalog assets.
const PublicCatalogProject = "earthengine-public"

// Client handles communication with the Earth Engine REST API
type Client struct {
	baseURL      string
	project      string
	assetProject string
	httpClient   *http.Client
	breaker      *gobreaker.CircuitBreaker
	backoff      BackoffConfig
	logger       *slog.Logger
}

// NewClient creates a new Earth Engine API client. project is the Cloud
// project billed for requests; it may be empty for unauthenticated use.
func NewClient(baseURL, project string, timeout time.Duration) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		project:      project,
		assetProject: PublicCatalogProject,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		breaker: newBreaker("earthengine", 5, 30*time.Second),
		backoff: DefaultBackoff,
		logger:  slog.Default(),
	}
}

// WithLogger sets a custom logger for the client
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	c.logger = logger
	return c
}

// WithHTTPClient replaces the HTTP client, e.g. with an OAuth2 client.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	c.httpClient = httpClient
	return c
}

// WithBackoff sets the retry policy for transient failures.
func (c *Client) WithBackoff(backoff BackoffConfig) *Client {
	c.backoff = backoff
	return c
}

// WithBreaker configures the circuit breaker to open after failures
// consecutive failures and to probe again after openTimeout.
func (c *Client) WithBreaker(failures uint32, openTimeout time.Duration) *Client {
	c.breaker = newBreaker("earthengine", failures, openTimeout)
	return c
}

// WithAssetProject sets the project that owns the queried collections.
func (c *Client) WithAssetProject(project string) *Client {
	c.assetProject = project
	return c
}

// BreakerState reports the current circuit breaker state.
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// ListImages fetches one page of images from a collection.
func (c *Client) ListImages(ctx context.Context, params ListImagesParams) (*ListImagesResponse, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid listImages parameters: %w", err)
	}

	listURL, err := c.buildListImagesURL(params)
	if err != nil {
		return nil, fmt.Errorf("failed to build listImages URL: %w", err)
	}

	c.logger.DebugContext(ctx, "executing Earth Engine listImages",
		slog.String("url", listURL),
	)

	resp, err := doWithResilience(ctx, c.httpClient, c.backoff, c.breaker, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "overpass-proxy/1.0")
		if c.project != "" {
			req.Header.Set("X-Goog-User-Project", c.project)
		}
		return req, nil
	})
	if err != nil {
		level := slog.LevelError
		if errors.Is(err, context.Canceled) {
			level = slog.LevelDebug
		}
		c.logger.LogAttrs(ctx, level, "Earth Engine request failed",
			slog.String("error", err.Error()),
			slog.String("collection", params.Collection),
		)
		return nil, fmt.Errorf("earth engine listImages failed: %w", err)
	}
	defer resp.Body.Close()

	var result ListImagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.logger.ErrorContext(ctx, "failed to decode Earth Engine response",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to decode Earth Engine response: %w", err)
	}

	c.logger.DebugContext(ctx, "Earth Engine listImages completed",
		slog.String("collection", params.Collection),
		slog.Int("image_count", len(result.Images)),
		slog.Bool("has_next_page", result.NextPageToken != ""),
	)

	return &result, nil
}

// ListAllImages follows nextPageToken until the listing is exhausted or
// maxPages pages have been read.
func (c *Client) ListAllImages(ctx context.Context, params ListImagesParams, maxPages int) ([]Image, error) {
	if maxPages < 1 {
		maxPages = 1
	}

	var images []Image
	for page := 0; page < maxPages; page++ {
		result, err := c.ListImages(ctx, params)
		if err != nil {
			return nil, err
		}
		images = append(images, result.Images...)

		if result.NextPageToken == "" {
			return images, nil
		}
		params.PageToken = result.NextPageToken
	}

	c.logger.WarnContext(ctx, "Earth Engine listing truncated",
		slog.String("collection", params.Collection),
		slog.Int("max_pages", maxPages),
		slog.Int("image_count", len(images)),
	)
	return images, nil
}

// buildListImagesURL constructs the full listImages URL with query parameters
func (c *Client) buildListImagesURL(params ListImagesParams) (string, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}

	base.Path = strings.TrimRight(base.Path, "/") +
		fmt.Sprintf("/v1/projects/%s/assets/%s:listImages", c.assetProject, strings.Trim(params.Collection, "/"))

	query, err := params.ToQueryString()
	if err != nil {
		return "", err
	}
	base.RawQuery = query

	return base.String(), nil
}

// errorMessage extracts the message from a Google API error body.
func errorMessage(body []byte) string {
	var envelope ErrorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return strings.TrimSpace(string(body))
}
