// Package youtube collects videos through the YouTube Data API v3.
//
// The API is keyed, not OAuth'd: the pooled credential holds an API key
// and every search request costs 100 quota units, so the collector keeps
// its request rate deliberately low and treats quota exhaustion as rate
// limiting rather than a credential failure.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	youtubeapi "google.golang.org/api/youtube/v3"

	"github.com/alterPublics/issue-obervatory-sub001/internal/arenas/ratelimit"
	"github.com/alterPublics/issue-obervatory-sub001/internal/core/domain"
	"github.com/alterPublics/issue-obervatory-sub001/internal/core/ports/driven"
)

const (
	// PlatformID is the registry platform id.
	PlatformID = "youtube"

	// pageSize is the maximum results per search page.
	pageSize = 50
)

// Ensure Collector implements the interface.
var _ driven.Collector = (*Collector)(nil)

// Collector implements driven.Collector for YouTube.
type Collector struct {
	service *youtubeapi.Service
	limiter *ratelimit.Limiter
}

// New creates a YouTube collector from a pooled API key credential.
// Config may override "endpoint" to target a different base URL.
func New(ctx context.Context, cred *domain.Credential, config map[string]string) (*Collector, error) {
	if cred == nil || cred.Secret == "" {
		return nil, fmt.Errorf("youtube: an API key credential is required: %w", domain.ErrCredential)
	}

	opts := []option.ClientOption{option.WithAPIKey(cred.Secret)}
	if endpoint := config["endpoint"]; endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	service, err := youtubeapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("youtube: creating service: %w", err)
	}

	return &Collector{
		service: service,
		// Each search costs 100 of the 10000 daily quota units.
		limiter: ratelimit.New(ratelimit.Config{RequestsPerSecond: 0.5, BurstSize: 3}),
	}, nil
}

// Platform returns the platform id.
func (c *Collector) Platform() string { return PlatformID }

// SupportsMode reports support for term and actor collection.
func (c *Collector) SupportsMode(mode domain.CollectionMethod) bool {
	return mode == domain.MethodTerm || mode == domain.MethodActor
}

// CollectByTerms streams videos matching each search term.
func (c *Collector) CollectByTerms(ctx context.Context, terms []domain.SearchTerm, dateRange domain.DateRange) (<-chan domain.RawItem, <-chan error) {
	items := make(chan domain.RawItem)
	errs := make(chan error, 1)

	go func() {
		defer close(items)
		defer close(errs)

		for _, term := range terms {
			search := func() *youtubeapi.SearchListCall {
				return c.searchCall(ctx, dateRange).Q(term.Text)
			}
			if err := c.collectPages(ctx, search, items); err != nil {
				errs <- err
				return
			}
		}
	}()
	return items, errs
}

// CollectByActors streams videos uploaded by each actor's channel. The
// actor handle must be a channel id (UC...).
func (c *Collector) CollectByActors(ctx context.Context, actors []domain.ActorPresence, dateRange domain.DateRange) (<-chan domain.RawItem, <-chan error) {
	items := make(chan domain.RawItem)
	errs := make(chan error, 1)

	go func() {
		defer close(items)
		defer close(errs)

		for _, actor := range actors {
			channelID := actor.Handle
			search := func() *youtubeapi.SearchListCall {
				return c.searchCall(ctx, dateRange).ChannelId(channelID)
			}
			if err := c.collectPages(ctx, search, items); err != nil {
				errs <- err
				return
			}
		}
	}()
	return items, errs
}

// EstimateCost returns the expected request volume.
func (c *Collector) EstimateCost(req driven.CollectRequest) int {
	if req.Method == domain.MethodActor {
		return len(req.Actors)
	}
	return len(req.Terms)
}

// HealthCheck probes the API with a minimal, cheap request.
func (c *Collector) HealthCheck(ctx context.Context) driven.Health {
	_, err := c.service.I18nRegions.List([]string{"snippet"}).Context(ctx).Do()
	if err == nil {
		return driven.HealthOK
	}
	if errors.Is(classify(err), domain.ErrCredential) {
		return driven.HealthDegraded
	}
	return driven.HealthDown
}

// Close releases resources. The generated client holds no connections of
// its own beyond the default transport.
func (c *Collector) Close() error { return nil }

// searchCall prepares a video search ordered newest first with the date
// range applied server-side.
func (c *Collector) searchCall(ctx context.Context, dateRange domain.DateRange) *youtubeapi.SearchListCall {
	call := c.service.Search.List([]string{"snippet"}).
		Context(ctx).
		Type("video").
		Order("date").
		MaxResults(pageSize)
	if !dateRange.From.IsZero() {
		call = call.PublishedAfter(dateRange.From.UTC().Format(time.RFC3339))
	}
	if !dateRange.To.IsZero() {
		call = call.PublishedBefore(dateRange.To.UTC().Format(time.RFC3339))
	}
	return call
}

// collectPages pages through one search, sending every result.
func (c *Collector) collectPages(ctx context.Context, search func() *youtubeapi.SearchListCall, items chan<- domain.RawItem) error {
	pageToken := ""
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		call := search()
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		page, err := call.Do()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			err = classify(err)
			var rateLimited *domain.RateLimitError
			if errors.As(err, &rateLimited) {
				c.limiter.RecordRateLimited(rateLimited.RetryAfter)
			}
			return err
		}

		for _, result := range page.Items {
			if result.Id == nil || result.Id.VideoId == "" || result.Snippet == nil {
				continue
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case items <- toRawItem(result):
			}
		}

		if page.NextPageToken == "" || len(page.Items) == 0 {
			return nil
		}
		pageToken = page.NextPageToken
	}
}

// toRawItem maps one search result onto the collector contract.
func toRawItem(result *youtubeapi.SearchResult) domain.RawItem {
	publishedAt, _ := time.Parse(time.RFC3339, result.Snippet.PublishedAt)
	return domain.RawItem{
		Platform:    PlatformID,
		ExternalID:  result.Id.VideoId,
		ContentType: "video",
		Title:       result.Snippet.Title,
		Body:        result.Snippet.Description,
		URL:         "https://www.youtube.com/watch?v=" + result.Id.VideoId,
		Author:      result.Snippet.ChannelTitle,
		PublishedAt: publishedAt.UTC(),
		Metadata: map[string]any{
			"channel_id":    result.Snippet.ChannelId,
			"channel_title": result.Snippet.ChannelTitle,
		},
	}
}

// classify maps googleapi errors onto the domain error taxonomy. A 403
// whose reason names quota or rate limiting counts as rate limiting;
// any other 401/403 means the key is bad or restricted.
func classify(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return fmt.Errorf("youtube: %v: %w", err, domain.ErrTransient)
	}

	switch {
	case gerr.Code == http.StatusTooManyRequests:
		return &domain.RateLimitError{Platform: PlatformID, RetryAfter: retryAfterOf(gerr)}
	case gerr.Code == http.StatusForbidden && isQuotaReason(gerr):
		return &domain.RateLimitError{Platform: PlatformID, RetryAfter: retryAfterOf(gerr)}
	case gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden:
		return fmt.Errorf("youtube: HTTP %d: %s: %w", gerr.Code, gerr.Message, domain.ErrCredential)
	case gerr.Code >= 500:
		return fmt.Errorf("youtube: HTTP %d: %w", gerr.Code, domain.ErrTransient)
	default:
		return fmt.Errorf("youtube: HTTP %d: %s", gerr.Code, gerr.Message)
	}
}

func isQuotaReason(gerr *googleapi.Error) bool {
	for _, item := range gerr.Errors {
		switch item.Reason {
		case "quotaExceeded", "dailyLimitExceeded", "rateLimitExceeded", "userRateLimitExceeded":
			return true
		}
	}
	return false
}

func retryAfterOf(gerr *googleapi.Error) time.Duration {
	if value := gerr.Header.Get("Retry-After"); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return 0
}
