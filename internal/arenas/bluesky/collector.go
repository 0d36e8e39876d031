// Package bluesky collects posts from the Bluesky public AT-proto API.
//
// Term collection uses app.bsky.feed.searchPosts, actor collection uses
// app.bsky.feed.getAuthorFeed. Both endpoints are public and need no
// credential on the free tier. Pagination is cursor-based; the collector
// keeps requesting pages until the platform stops returning a cursor or
// the context is cancelled.
package bluesky

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alterPublics/issue-obervatory-sub001/internal/arenas/ratelimit"
	"github.com/alterPublics/issue-obervatory-sub001/internal/core/domain"
	"github.com/alterPublics/issue-obervatory-sub001/internal/core/ports/driven"
	"github.com/alterPublics/issue-obervatory-sub001/internal/logger"
)

const (
	// PlatformID is the registry platform id.
	PlatformID = "bluesky"

	// DefaultBaseURL is the public AppView endpoint.
	DefaultBaseURL = "https://public.api.bsky.app"

	// DefaultTimeout is the per-request HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// pageLimit is the maximum page size the API accepts.
	pageLimit = 100
)

// Ensure Collector implements the interface.
var _ driven.Collector = (*Collector)(nil)

// Collector implements driven.Collector for Bluesky.
type Collector struct {
	baseURL    string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
}

// New creates a Bluesky collector. Config may override "base_url".
func New(config map[string]string) *Collector {
	baseURL := DefaultBaseURL
	if override := config["base_url"]; override != "" {
		baseURL = strings.TrimRight(override, "/")
	}
	return &Collector{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		// The AppView allows 3000 req / 5 min per IP; stay well below.
		limiter: ratelimit.New(ratelimit.Config{RequestsPerSecond: 5, BurstSize: 10}),
	}
}

// Platform returns the platform id.
func (c *Collector) Platform() string { return PlatformID }

// SupportsMode reports term and actor support.
func (c *Collector) SupportsMode(mode domain.CollectionMethod) bool {
	return mode == domain.MethodTerm || mode == domain.MethodActor
}

// CollectByTerms streams posts matching each term via searchPosts.
func (c *Collector) CollectByTerms(ctx context.Context, terms []domain.SearchTerm, dateRange domain.DateRange) (<-chan domain.RawItem, <-chan error) {
	items := make(chan domain.RawItem)
	errs := make(chan error, 1)

	go func() {
		defer close(items)
		defer close(errs)

		for _, term := range terms {
			if err := c.searchTerm(ctx, term, dateRange, items); err != nil {
				errs <- err
				return
			}
		}
	}()
	return items, errs
}

// CollectByActors streams each actor's feed via getAuthorFeed.
func (c *Collector) CollectByActors(ctx context.Context, actors []domain.ActorPresence, dateRange domain.DateRange) (<-chan domain.RawItem, <-chan error) {
	items := make(chan domain.RawItem)
	errs := make(chan error, 1)

	go func() {
		defer close(items)
		defer close(errs)

		for _, actor := range actors {
			if err := c.authorFeed(ctx, actor, dateRange, items); err != nil {
				errs <- err
				return
			}
		}
	}()
	return items, errs
}

// EstimateCost returns the expected page count. Bluesky is free, so the
// estimate only sizes the request volume.
func (c *Collector) EstimateCost(req driven.CollectRequest) int {
	if req.Method == domain.MethodActor {
		return len(req.Actors)
	}
	return len(req.Terms)
}

// HealthCheck probes the describeServer endpoint.
func (c *Collector) HealthCheck(ctx context.Context) driven.Health {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/xrpc/com.atproto.server.describeServer", nil)
	if err != nil {
		return driven.HealthDown
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return driven.HealthDown
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return driven.HealthOK
	case resp.StatusCode < 500:
		return driven.HealthDegraded
	default:
		return driven.HealthDown
	}
}

// Close releases resources.
func (c *Collector) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// searchTerm pages through searchPosts results for one term.
func (c *Collector) searchTerm(ctx context.Context, term domain.SearchTerm, dateRange domain.DateRange, items chan<- domain.RawItem) error {
	cursor := ""
	for {
		params := url.Values{}
		params.Set("q", term.Text)
		params.Set("limit", strconv.Itoa(pageLimit))
		if cursor != "" {
			params.Set("cursor", cursor)
		}
		if !dateRange.From.IsZero() {
			params.Set("since", dateRange.From.UTC().Format(time.RFC3339))
		}
		if !dateRange.To.IsZero() {
			params.Set("until", dateRange.To.UTC().Format(time.RFC3339))
		}

		var page searchPostsResponse
		if err := c.get(ctx, "/xrpc/app.bsky.feed.searchPosts", params, &page); err != nil {
			return err
		}

		for i := range page.Posts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case items <- page.Posts[i].toRawItem():
			}
		}

		if page.Cursor == "" || len(page.Posts) == 0 {
			return nil
		}
		cursor = page.Cursor
	}
}

// authorFeed pages through one actor's posts, filtering by date locally
// because getAuthorFeed has no date parameters.
func (c *Collector) authorFeed(ctx context.Context, actor domain.ActorPresence, dateRange domain.DateRange, items chan<- domain.RawItem) error {
	cursor := ""
	for {
		params := url.Values{}
		params.Set("actor", actor.Handle)
		params.Set("limit", strconv.Itoa(pageLimit))
		params.Set("filter", "posts_no_replies")
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		var page authorFeedResponse
		if err := c.get(ctx, "/xrpc/app.bsky.feed.getAuthorFeed", params, &page); err != nil {
			return err
		}

		for i := range page.Feed {
			post := page.Feed[i].Post
			if !dateRange.IsZero() && !dateRange.Contains(post.Record.CreatedAt) {
				// The feed is reverse-chronological: older than the
				// range means every following page is older too.
				if !dateRange.From.IsZero() && post.Record.CreatedAt.Before(dateRange.From) {
					return nil
				}
				continue
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case items <- post.toRawItem():
			}
		}

		if page.Cursor == "" || len(page.Feed) == 0 {
			return nil
		}
		cursor = page.Cursor
	}
}

// get performs one rate-limited API request and decodes the response.
func (c *Collector) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("bluesky: building request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("bluesky: %v: %w", err, domain.ErrTransient)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		var rateLimited *domain.RateLimitError
		if errors.As(err, &rateLimited) {
			// Feed the reactive side of the limiter so the next attempt
			// waits out the platform's backoff.
			c.limiter.RecordRateLimited(rateLimited.RetryAfter)
		}
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("bluesky: decoding response: %w", err)
	}
	return nil
}

// classifyStatus maps HTTP failures onto the domain error taxonomy.
func classifyStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("bluesky: HTTP %d: %w", resp.StatusCode, domain.ErrCredential)
	case resp.StatusCode == http.StatusTooManyRequests:
		return &domain.RateLimitError{
			Platform:   PlatformID,
			RetryAfter: retryAfterOf(resp),
		}
	case resp.StatusCode >= 500:
		return fmt.Errorf("bluesky: HTTP %d: %w", resp.StatusCode, domain.ErrTransient)
	default:
		return fmt.Errorf("bluesky: unexpected HTTP %d", resp.StatusCode)
	}
}

// retryAfterOf parses the Retry-After header, in seconds.
func retryAfterOf(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil {
		logger.Debug("bluesky: unparseable Retry-After %q", header)
		return 0
	}
	return time.Duration(seconds) * time.Second
}
