package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/gear-detector/backend/internal/gear"
)

const (
	redditBaseURL = "https://www.reddit.com"
	redditLimit   = 25
)

var redditSubreddits = []string{"Guitar", "guitarpedals", "GuitarAmps", "WeAreTheMusicMakers"}

// Reddit queries the public search JSON across guitar subreddits. Requests share a limiter
// because the unauthenticated endpoint throttles aggressively.
type Reddit struct {
	baseURL string
	limiter *rate.Limiter
	http    *fetcher
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data struct {
				Title     string `json:"title"`
				Selftext  string `json:"selftext"`
				Subreddit string `json:"subreddit"`
				Permalink string `json:"permalink"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func NewReddit(limiter *rate.Limiter, cfg HTTPConfig) *Reddit {
	base := cfg.BaseURL
	if base == "" {
		base = redditBaseURL
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Limit(1), 2)
	}
	return &Reddit{
		baseURL: strings.TrimRight(base, "/"),
		limiter: limiter,
		http:    newFetcher(gear.SourceReddit, cfg),
	}
}

func (r *Reddit) Source() gear.SourceID {
	return gear.SourceReddit
}

func (r *Reddit) Fetch(ctx context.Context, q gear.Query) ([]gear.EvidenceItem, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fail(gear.SourceReddit, ErrTimeout, err)
	}

	params := url.Values{}
	params.Set("q", fmt.Sprintf(`"%s" "%s" gear`, q.Artist, q.Song))
	params.Set("restrict_sr", "on")
	params.Set("sort", "relevance")
	params.Set("limit", fmt.Sprintf("%d", redditLimit))

	endpoint := fmt.Sprintf("%s/r/%s/search.json?%s", r.baseURL, strings.Join(redditSubreddits, "+"), params.Encode())
	body, err := r.http.get(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var listing redditListing
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fail(gear.SourceReddit, ErrUpstream, fmt.Errorf("failed to parse response: %w", err))
	}

	docs := make([]string, 0, len(listing.Data.Children))
	for _, c := range listing.Data.Children {
		docs = append(docs, c.Data.Title+". "+c.Data.Selftext)
	}
	return mergeDocuments(gear.SourceReddit, docs, rawReddit, 75), nil
}
