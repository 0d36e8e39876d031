package youtube

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alterPublics/issue-obervatory-sub001/internal/core/domain"
	"github.com/alterPublics/issue-obervatory-sub001/internal/core/ports/driven"
)

func newTestCollector(t *testing.T, handler http.HandlerFunc) *Collector {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	collector, err := New(context.Background(), &domain.Credential{
		Platform: PlatformID,
		Tier:     domain.TierFree,
		Secret:   "test-api-key",
	}, map[string]string{"endpoint": server.URL})
	require.NoError(t, err)
	return collector
}

func searchResult(videoID, title string) map[string]any {
	return map[string]any{
		"id": map[string]any{"kind": "youtube#video", "videoId": videoID},
		"snippet": map[string]any{
			"title":        title,
			"description":  "description of " + videoID,
			"channelId":    "UCchannel",
			"channelTitle": "Some Channel",
			"publishedAt":  "2025-06-01T12:00:00Z",
		},
	}
}

func writeSearchPage(t *testing.T, w http.ResponseWriter, nextPageToken string, results ...map[string]any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
		"kind":          "youtube#searchListResponse",
		"nextPageToken": nextPageToken,
		"items":         results,
	}))
}

func writeAPIError(w http.ResponseWriter, code int, reason, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
			"errors":  []map[string]any{{"reason": reason, "message": message}},
		},
	})
}

// drain collects everything from a collector's channel pair.
func drain(t *testing.T, items <-chan domain.RawItem, errs <-chan error) ([]domain.RawItem, error) {
	t.Helper()
	var collected []domain.RawItem
	for items != nil || errs != nil {
		select {
		case item, ok := <-items:
			if !ok {
				items = nil
				continue
			}
			collected = append(collected, item)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				return collected, err
			}
		case <-time.After(5 * time.Second):
			t.Fatal("collector stalled")
		}
	}
	return collected, nil
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(context.Background(), nil, nil)
	require.ErrorIs(t, err, domain.ErrCredential)

	_, err = New(context.Background(), &domain.Credential{Secret: ""}, nil)
	require.ErrorIs(t, err, domain.ErrCredential)
}

func TestCollectByTerms_PagesThroughToken(t *testing.T) {
	var pageTokens []string
	collector := newTestCollector(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/youtube/v3/search", r.URL.Path)
		require.Equal(t, "klima", r.URL.Query().Get("q"))
		require.Equal(t, "video", r.URL.Query().Get("type"))
		require.Equal(t, "date", r.URL.Query().Get("order"))
		pageTokens = append(pageTokens, r.URL.Query().Get("pageToken"))

		switch r.URL.Query().Get("pageToken") {
		case "":
			writeSearchPage(t, w, "page-2",
				searchResult("vid-1", "first video"),
				searchResult("vid-2", "second video"))
		case "page-2":
			writeSearchPage(t, w, "", searchResult("vid-3", "third video"))
		}
	})

	items, errs := collector.CollectByTerms(context.Background(),
		[]domain.SearchTerm{{Text: "klima"}}, domain.DateRange{})
	collected, err := drain(t, items, errs)
	require.NoError(t, err)

	require.Len(t, collected, 3)
	assert.Equal(t, []string{"", "page-2"}, pageTokens)

	first := collected[0]
	assert.Equal(t, PlatformID, first.Platform)
	assert.Equal(t, "vid-1", first.ExternalID)
	assert.Equal(t, "video", first.ContentType)
	assert.Equal(t, "first video", first.Title)
	assert.Equal(t, "description of vid-1", first.Body)
	assert.Equal(t, "https://www.youtube.com/watch?v=vid-1", first.URL)
	assert.Equal(t, "Some Channel", first.Author)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), first.PublishedAt)
	assert.Equal(t, "UCchannel", first.Metadata["channel_id"])
}

func TestCollectByTerms_SendsDateRange(t *testing.T) {
	var after, before string
	collector := newTestCollector(t, func(w http.ResponseWriter, r *http.Request) {
		after = r.URL.Query().Get("publishedAfter")
		before = r.URL.Query().Get("publishedBefore")
		writeSearchPage(t, w, "")
	})

	items, errs := collector.CollectByTerms(context.Background(),
		[]domain.SearchTerm{{Text: "klima"}},
		domain.DateRange{
			From: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
			To:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		})
	_, err := drain(t, items, errs)
	require.NoError(t, err)

	assert.Equal(t, "2025-05-01T00:00:00Z", after)
	assert.Equal(t, "2025-06-01T00:00:00Z", before)
}

func TestCollectByActors_SearchesByChannel(t *testing.T) {
	var channelID string
	collector := newTestCollector(t, func(w http.ResponseWriter, r *http.Request) {
		channelID = r.URL.Query().Get("channelId")
		writeSearchPage(t, w, "", searchResult("vid-9", "channel upload"))
	})

	items, errs := collector.CollectByActors(context.Background(),
		[]domain.ActorPresence{{ActorID: "dr-nyheder", Platform: PlatformID, Handle: "UCdrNyheder"}},
		domain.DateRange{})
	collected, err := drain(t, items, errs)
	require.NoError(t, err)

	require.Len(t, collected, 1)
	assert.Equal(t, "UCdrNyheder", channelID)
	assert.Equal(t, "vid-9", collected[0].ExternalID)
}

func TestCollect_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		code   int
		reason string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "quota exhaustion is rate limiting",
			code:   http.StatusForbidden,
			reason: "quotaExceeded",
			check: func(t *testing.T, err error) {
				var rateLimited *domain.RateLimitError
				require.ErrorAs(t, err, &rateLimited)
			},
		},
		{
			name:   "key restriction is a credential failure",
			code:   http.StatusForbidden,
			reason: "forbidden",
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, domain.ErrCredential)
			},
		},
		{
			name:   "invalid key is a credential failure",
			code:   http.StatusUnauthorized,
			reason: "authError",
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, domain.ErrCredential)
			},
		},
		{
			name:   "429 is rate limiting",
			code:   http.StatusTooManyRequests,
			reason: "rateLimitExceeded",
			check: func(t *testing.T, err error) {
				var rateLimited *domain.RateLimitError
				require.ErrorAs(t, err, &rateLimited)
			},
		},
		{
			name:   "server error is transient",
			code:   http.StatusServiceUnavailable,
			reason: "backendError",
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, domain.ErrTransient)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			collector := newTestCollector(t, func(w http.ResponseWriter, r *http.Request) {
				writeAPIError(w, tt.code, tt.reason, "simulated failure")
			})

			items, errs := collector.CollectByTerms(context.Background(),
				[]domain.SearchTerm{{Text: "klima"}}, domain.DateRange{})
			_, err := drain(t, items, errs)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestCollect_SkipsMalformedResults(t *testing.T) {
	collector := newTestCollector(t, func(w http.ResponseWriter, r *http.Request) {
		writeSearchPage(t, w, "",
			map[string]any{"id": map[string]any{"kind": "youtube#channel", "channelId": "UCx"}},
			searchResult("vid-1", "real video"))
	})

	items, errs := collector.CollectByTerms(context.Background(),
		[]domain.SearchTerm{{Text: "klima"}}, domain.DateRange{})
	collected, err := drain(t, items, errs)
	require.NoError(t, err)

	require.Len(t, collected, 1)
	assert.Equal(t, "vid-1", collected[0].ExternalID)
}

func TestSupportsMode(t *testing.T) {
	collector := newTestCollector(t, func(w http.ResponseWriter, r *http.Request) {})
	assert.True(t, collector.SupportsMode(domain.MethodTerm))
	assert.True(t, collector.SupportsMode(domain.MethodActor))
}

func TestHealthCheck(t *testing.T) {
	healthy := newTestCollector(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/youtube/v3/i18nRegions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"kind":"youtube#i18nRegionListResponse","items":[]}`))
	})
	assert.Equal(t, driven.HealthOK, healthy.HealthCheck(context.Background()))

	revoked := newTestCollector(t, func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, http.StatusUnauthorized, "authError", "bad key")
	})
	assert.Equal(t, driven.HealthDegraded, revoked.HealthCheck(context.Background()))
}

func TestEstimateCost(t *testing.T) {
	collector := newTestCollector(t, func(w http.ResponseWriter, r *http.Request) {})
	assert.Equal(t, 2, collector.EstimateCost(driven.CollectRequest{
		Method: domain.MethodTerm,
		Terms:  []domain.SearchTerm{{Text: "a"}, {Text: "b"}},
	}))
	assert.Equal(t, 1, collector.EstimateCost(driven.CollectRequest{
		Method: domain.MethodActor,
		Actors: []domain.ActorPresence{{Handle: "UCx"}},
	}))
}
