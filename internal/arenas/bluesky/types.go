package bluesky

import (
	"strings"
	"time"

	"github.com/alterPublics/issue-obervatory-sub001/internal/core/domain"
)

// searchPostsResponse is the app.bsky.feed.searchPosts payload.
type searchPostsResponse struct {
	Cursor string `json:"cursor"`
	Posts  []post `json:"posts"`
}

// authorFeedResponse is the app.bsky.feed.getAuthorFeed payload.
type authorFeedResponse struct {
	Cursor string     `json:"cursor"`
	Feed   []feedItem `json:"feed"`
}

type feedItem struct {
	Post post `json:"post"`
}

// post is the subset of app.bsky.feed.defs#postView the collector maps.
type post struct {
	URI    string `json:"uri"`
	CID    string `json:"cid"`
	Author struct {
		DID         string `json:"did"`
		Handle      string `json:"handle"`
		DisplayName string `json:"displayName"`
	} `json:"author"`
	Record struct {
		Text      string    `json:"text"`
		CreatedAt time.Time `json:"createdAt"`
		Langs     []string  `json:"langs"`
	} `json:"record"`
	LikeCount   int `json:"likeCount"`
	RepostCount int `json:"repostCount"`
	ReplyCount  int `json:"replyCount"`
}

// toRawItem maps a post onto the collector item shape.
func (p *post) toRawItem() domain.RawItem {
	lang := ""
	if len(p.Record.Langs) > 0 {
		lang = p.Record.Langs[0]
	}
	return domain.RawItem{
		Platform:    PlatformID,
		ExternalID:  p.URI,
		ContentType: "post",
		Body:        p.Record.Text,
		URL:         postURL(p.Author.Handle, p.URI),
		Author:      p.Author.Handle,
		PublishedAt: p.Record.CreatedAt,
		Language:    lang,
		Metadata: map[string]any{
			"cid":          p.CID,
			"did":          p.Author.DID,
			"display_name": p.Author.DisplayName,
			"like_count":   p.LikeCount,
			"repost_count": p.RepostCount,
			"reply_count":  p.ReplyCount,
		},
	}
}

// postURL builds the web link for a post from its AT URI
// (at://did/app.bsky.feed.post/rkey).
func postURL(handle, uri string) string {
	idx := strings.LastIndex(uri, "/")
	if idx < 0 {
		return uri
	}
	return "https://bsky.app/profile/" + handle + "/post/" + uri[idx+1:]
}
