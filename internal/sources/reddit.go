package sources

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/chr1sbest/pipegate/internal/config"
	"github.com/chr1sbest/pipegate/internal/model"
)

const RedditSourceName = "reddit"

// Reddit reads a subreddit's hot listing without authentication.
type Reddit struct {
	cfg    config.RedditConfig
	client *http.Client
}

func NewReddit(cfg config.RedditConfig, client *http.Client) *Reddit {
	return &Reddit{cfg: cfg, client: httpClient(client, cfg.GetTimeout())}
}

func (r *Reddit) Name() string { return RedditSourceName }

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	URL         string  `json:"url"`
	Permalink   string  `json:"permalink"`
	Author      string  `json:"author"`
	NumComments int     `json:"num_comments"`
	Score       int     `json:"score"`
	CreatedUTC  float64 `json:"created_utc"`
}

func (p redditPost) item(base string) model.RawItem {
	item := model.RawItem{
		ObjectID:    p.ID,
		Source:      RedditSourceName,
		Title:       p.Title,
		Text:        p.Selftext,
		URL:         p.URL,
		Author:      p.Author,
		Points:      p.Score,
		NumComments: p.NumComments,
	}
	if p.Permalink != "" {
		item.StoryURL = base + p.Permalink
	}
	if p.CreatedUTC > 0 {
		item.CreatedAt = time.Unix(int64(p.CreatedUTC), 0).UTC().Format(time.RFC3339)
	}
	return item
}

func (r *Reddit) Fetch(ctx context.Context) ([]model.RawItem, error) {
	const op = "fetch reddit"
	base := strings.TrimRight(r.cfg.BaseURL, "/")
	rawURL := fmt.Sprintf("%s/r/%s/hot.json?limit=%d", base, r.cfg.Subreddit, r.cfg.Limit)

	header := http.Header{}
	header.Set("User-Agent", r.cfg.UserAgent)

	var listing redditListing
	if err := getJSON(ctx, r.client, op, rawURL, header, &listing); err != nil {
		return nil, err
	}
	items := make([]model.RawItem, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		items = append(items, child.Data.item(base))
	}
	return items, nil
}
