package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/gear-detector/backend/internal/gear"
	"github.com/gear-detector/backend/pkg/logger"
)

const (
	youtubeBaseURL    = "https://www.googleapis.com"
	youtubeMaxResults = 5
)

// YouTube searches rig-rundown and tone videos through the Data API v3 and mines titles and
// descriptions for gear mentions.
type YouTube struct {
	baseURL string
	apiKey  string
	http    *fetcher
}

type youtubeSearchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			Description  string `json:"description"`
			ChannelTitle string `json:"channelTitle"`
		} `json:"snippet"`
	} `json:"items"`
}

func NewYouTube(apiKey string, cfg HTTPConfig) *YouTube {
	base := cfg.BaseURL
	if base == "" {
		base = youtubeBaseURL
	}
	return &YouTube{
		baseURL: strings.TrimRight(base, "/"),
		apiKey:  apiKey,
		http:    newFetcher(gear.SourceYouTube, cfg),
	}
}

func (y *YouTube) Source() gear.SourceID {
	return gear.SourceYouTube
}

func (y *YouTube) Fetch(ctx context.Context, q gear.Query) ([]gear.EvidenceItem, error) {
	if y.apiKey == "" {
		return nil, fail(gear.SourceYouTube, ErrNotConfigured, nil)
	}

	searches := []string{
		fmt.Sprintf("%s rig rundown", q.Artist),
		fmt.Sprintf("%s %s guitar tone", q.Artist, q.Song),
	}

	var docs []string
	seen := make(map[string]bool)
	var lastErr error
	for _, s := range searches {
		resp, err := y.search(ctx, s)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			logger.Warn("YouTube search failed", zap.String("query", s), zap.Error(err))
			lastErr = err
			continue
		}
		for _, item := range resp.Items {
			if item.ID.VideoID == "" || seen[item.ID.VideoID] {
				continue
			}
			seen[item.ID.VideoID] = true
			docs = append(docs, item.Snippet.Title+". "+item.Snippet.Description)
		}
	}

	if len(docs) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return mergeDocuments(gear.SourceYouTube, docs, rawYouTube, 90), nil
}

func (y *YouTube) search(ctx context.Context, query string) (*youtubeSearchResponse, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("q", query)
	params.Set("type", "video")
	params.Set("order", "relevance")
	params.Set("maxResults", fmt.Sprintf("%d", youtubeMaxResults))
	params.Set("key", y.apiKey)

	body, err := y.http.get(ctx, y.baseURL+"/youtube/v3/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var resp youtubeSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fail(gear.SourceYouTube, ErrUpstream, fmt.Errorf("failed to parse response: %w", err))
	}
	return &resp, nil
}
