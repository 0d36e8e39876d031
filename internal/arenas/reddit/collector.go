// Package reddit collects posts from the Reddit search API.
//
// Reddit requires an OAuth2 application even for read-only access: the
// collector exchanges the pooled credential ("client-id:client-secret")
// for an app-only token via the client-credentials flow and searches
// through the oauth.reddit.com endpoint. Term mode only; Reddit has no
// usable per-author firehose for research collection.
package reddit

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

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/alterPublics/issue-obervatory-sub001/internal/arenas/ratelimit"
	"github.com/alterPublics/issue-obervatory-sub001/internal/core/domain"
	"github.com/alterPublics/issue-obervatory-sub001/internal/core/ports/driven"
)

const (
	// PlatformID is the registry platform id.
	PlatformID = "reddit"

	// DefaultBaseURL is the authenticated API endpoint.
	DefaultBaseURL = "https://oauth.reddit.com"

	// DefaultTokenURL is the app-only token endpoint.
	DefaultTokenURL = "https://www.reddit.com/api/v1/access_token"

	// userAgent identifies the engine per Reddit's API rules.
	userAgent = "observatory/1.0 (social research collection)"

	// pageLimit is the maximum page size the API accepts.
	pageLimit = 100
)

// Ensure Collector implements the interface.
var _ driven.Collector = (*Collector)(nil)

// Collector implements driven.Collector for Reddit.
type Collector struct {
	baseURL    string
	subreddits string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
}

// New creates a Reddit collector from a pooled credential whose secret
// is "client-id:client-secret". Config may override "base_url" and
// "token_url" and restrict collection with "subreddits"
// (plus-separated, e.g. "denmark+copenhagen").
func New(ctx context.Context, cred *domain.Credential, config map[string]string) (*Collector, error) {
	if cred == nil {
		return nil, fmt.Errorf("reddit: an OAuth2 application credential is required: %w", domain.ErrCredential)
	}
	clientID, clientSecret, ok := strings.Cut(cred.Secret, ":")
	if !ok || clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("reddit: credential secret must be \"client-id:client-secret\": %w", domain.ErrCredential)
	}

	baseURL := DefaultBaseURL
	if override := config["base_url"]; override != "" {
		baseURL = strings.TrimRight(override, "/")
	}
	tokenURL := DefaultTokenURL
	if override := config["token_url"]; override != "" {
		tokenURL = override
	}

	conf := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
	}
	// The token client must carry the required User-Agent too.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{
		Transport: &userAgentTransport{inner: http.DefaultTransport},
		Timeout:   30 * time.Second,
	})

	return &Collector{
		baseURL:    baseURL,
		subreddits: config["subreddits"],
		httpClient: oauth2.NewClient(ctx, conf.TokenSource(ctx)),
		// Reddit allows 100 queries/min for OAuth clients.
		limiter: ratelimit.New(ratelimit.Config{RequestsPerSecond: 1, BurstSize: 5}),
	}, nil
}

// Platform returns the platform id.
func (c *Collector) Platform() string { return PlatformID }

// SupportsMode reports term-only support.
func (c *Collector) SupportsMode(mode domain.CollectionMethod) bool {
	return mode == domain.MethodTerm
}

// CollectByTerms streams posts matching each term, newest first,
// stopping once results fall below the date range.
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

// CollectByActors is not supported for Reddit.
func (c *Collector) CollectByActors(_ context.Context, _ []domain.ActorPresence, _ domain.DateRange) (<-chan domain.RawItem, <-chan error) {
	items := make(chan domain.RawItem)
	errs := make(chan error, 1)
	errs <- &domain.UnsupportedModeError{Platform: PlatformID, Mode: domain.MethodActor}
	close(items)
	close(errs)
	return items, errs
}

// EstimateCost returns the expected request volume.
func (c *Collector) EstimateCost(req driven.CollectRequest) int {
	return len(req.Terms)
}

// HealthCheck probes the search endpoint with a minimal query.
func (c *Collector) HealthCheck(ctx context.Context) driven.Health {
	params := url.Values{}
	params.Set("q", "test")
	params.Set("limit", "1")
	var page listingResponse
	if err := c.get(ctx, c.searchPath(), params, &page); err != nil {
		if errors.Is(err, domain.ErrCredential) {
			return driven.HealthDegraded
		}
		return driven.HealthDown
	}
	return driven.HealthOK
}

// Close releases resources.
func (c *Collector) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// searchPath optionally scopes the search to configured subreddits.
func (c *Collector) searchPath() string {
	if c.subreddits == "" {
		return "/search"
	}
	return "/r/" + c.subreddits + "/search"
}

// searchTerm pages through search results for one term. Reddit's search
// has no date parameters, so the range is applied locally with an early
// stop once sort=new passes below the lower bound.
func (c *Collector) searchTerm(ctx context.Context, term domain.SearchTerm, dateRange domain.DateRange, items chan<- domain.RawItem) error {
	after := ""
	for {
		params := url.Values{}
		params.Set("q", term.Text)
		params.Set("limit", strconv.Itoa(pageLimit))
		params.Set("sort", "new")
		params.Set("raw_json", "1")
		if c.subreddits != "" {
			params.Set("restrict_sr", "1")
		}
		if after != "" {
			params.Set("after", after)
		}

		var page listingResponse
		if err := c.get(ctx, c.searchPath(), params, &page); err != nil {
			return err
		}

		for i := range page.Data.Children {
			item := page.Data.Children[i].Data
			published := item.publishedAt()
			if !dateRange.From.IsZero() && published.Before(dateRange.From) {
				return nil // Sorted by new: everything further is older
			}
			if !dateRange.To.IsZero() && published.After(dateRange.To) {
				continue
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case items <- item.toRawItem():
			}
		}

		if page.Data.After == "" || len(page.Data.Children) == 0 {
			return nil
		}
		after = page.Data.After
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
		return fmt.Errorf("reddit: building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// A failed token exchange surfaces here as a RetrieveError.
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return fmt.Errorf("reddit: token exchange rejected: %w", domain.ErrCredential)
		}
		return fmt.Errorf("reddit: %v: %w", err, domain.ErrTransient)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		var rateLimited *domain.RateLimitError
		if errors.As(err, &rateLimited) {
			c.limiter.RecordRateLimited(rateLimited.RetryAfter)
		}
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("reddit: decoding response: %w", err)
	}
	return nil
}

// classifyStatus maps HTTP failures onto the domain error taxonomy.
func classifyStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("reddit: HTTP %d: %w", resp.StatusCode, domain.ErrCredential)
	case resp.StatusCode == http.StatusTooManyRequests:
		return &domain.RateLimitError{
			Platform:   PlatformID,
			RetryAfter: retryAfterOf(resp),
		}
	case resp.StatusCode >= 500:
		return fmt.Errorf("reddit: HTTP %d: %w", resp.StatusCode, domain.ErrTransient)
	default:
		return fmt.Errorf("reddit: unexpected HTTP %d", resp.StatusCode)
	}
}

// retryAfterOf parses Reddit's rate limit reset headers, in seconds.
func retryAfterOf(resp *http.Response) time.Duration {
	for _, header := range []string{"Retry-After", "X-Ratelimit-Reset"} {
		if value := resp.Header.Get(header); value != "" {
			if seconds, err := strconv.ParseFloat(value, 64); err == nil {
				return time.Duration(seconds * float64(time.Second))
			}
		}
	}
	return 0
}

// userAgentTransport stamps the required User-Agent on token requests.
type userAgentTransport struct {
	inner http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", userAgent)
	return t.inner.RoundTrip(req)
}
