package reddit

import (
	"time"

	"github.com/alterPublics/issue-obervatory-sub001/internal/core/domain"
)

// listingResponse is Reddit's listing envelope for search results.
type listingResponse struct {
	Data struct {
		After    string  `json:"after"`
		Children []child `json:"children"`
	} `json:"data"`
}

type child struct {
	Kind string `json:"kind"`
	Data link   `json:"data"`
}

// link is a t3 (submission) payload, trimmed to the fields we keep.
type link struct {
	Name        string  `json:"name"` // Fullname, e.g. "t3_abc123"
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Author      string  `json:"author"`
	Subreddit   string  `json:"subreddit"`
	Permalink   string  `json:"permalink"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
	Over18      bool    `json:"over_18"`
}

func (l link) publishedAt() time.Time {
	return time.Unix(int64(l.CreatedUTC), 0).UTC()
}

func (l link) toRawItem() domain.RawItem {
	return domain.RawItem{
		Platform:    PlatformID,
		ExternalID:  l.Name,
		ContentType: "post",
		Title:       l.Title,
		Body:        l.Selftext,
		URL:         "https://www.reddit.com" + l.Permalink,
		Author:      l.Author,
		PublishedAt: l.publishedAt(),
		Metadata: map[string]any{
			"subreddit":    l.Subreddit,
			"score":        l.Score,
			"num_comments": l.NumComments,
			"over_18":      l.Over18,
		},
	}
}
