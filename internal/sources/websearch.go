package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/gear-detector/backend/internal/gear"
	"github.com/gear-detector/backend/pkg/logger"
)

const (
	serpAPIBaseURL    = "https://serpapi.com"
	webMaxResults     = 10
	webScrapePages    = 3
	webMaxPageContent = 5000
)

// WebSearch runs Google searches through SerpAPI aimed at gear forums, then scrapes the
// top pages. Snippets stand in for pages that cannot be fetched.
type WebSearch struct {
	baseURL string
	apiKey  string
	http    *fetcher
}

type SearchResult struct {
	Title   string
	URL     string
	Snippet string
	Content string
}

func NewWebSearch(serpAPIKey string, cfg HTTPConfig) *WebSearch {
	base := cfg.BaseURL
	if base == "" {
		base = serpAPIBaseURL
	}
	return &WebSearch{
		baseURL: strings.TrimRight(base, "/"),
		apiKey:  serpAPIKey,
		http:    newFetcher(gear.SourceWebSearch, cfg),
	}
}

func (w *WebSearch) Source() gear.SourceID {
	return gear.SourceWebSearch
}

func (w *WebSearch) Fetch(ctx context.Context, q gear.Query) ([]gear.EvidenceItem, error) {
	if w.apiKey == "" {
		return nil, fail(gear.SourceWebSearch, ErrNotConfigured, nil)
	}

	query := fmt.Sprintf(`"%s" "%s" guitar gear site:gearspace.com OR site:thegearpage.net`, q.Artist, q.Song)
	results, err := w.Search(ctx, query, webMaxResults)
	if err != nil {
		return nil, err
	}

	docs := make([]string, 0, len(results))
	for _, r := range results {
		docs = append(docs, r.Title+". "+r.Content)
	}
	return mergeDocuments(gear.SourceWebSearch, docs, rawWebSearch, 75), nil
}

func (w *WebSearch) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	logger.Debug("Performing web search", zap.String("query", query))

	params := url.Values{}
	params.Add("q", query)
	params.Add("api_key", w.apiKey)
	params.Add("engine", "google")
	params.Add("num", fmt.Sprintf("%d", maxResults))

	body, err := w.http.get(ctx, w.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var searchResp struct {
		OrganicResults []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic_results"`
	}
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return nil, fail(gear.SourceWebSearch, ErrUpstream, fmt.Errorf("failed to parse response: %w", err))
	}

	results := make([]SearchResult, 0, len(searchResp.OrganicResults))
	for i, r := range searchResp.OrganicResults {
		if i >= maxResults {
			break
		}
		content := r.Snippet
		if i < webScrapePages && r.Link != "" {
			page, err := w.scrapeContent(ctx, r.Link)
			if err != nil {
				if ctx.Err() != nil {
					break
				}
				logger.Debug("Failed to scrape content", zap.String("url", r.Link), zap.Error(err))
			} else if page != "" {
				content = r.Snippet + " " + page
			}
		}
		results = append(results, SearchResult{
			Title:   r.Title,
			URL:     r.Link,
			Snippet: r.Snippet,
			Content: content,
		})
	}

	logger.Debug("Web search completed", zap.Int("results", len(results)))
	return results, nil
}

func (w *WebSearch) scrapeContent(ctx context.Context, pageURL string) (string, error) {
	body, err := w.http.do(ctx, pageURL, nil)
	if err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, nav, footer, header").Remove()
	text := strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	if len(text) > webMaxPageContent {
		text = text[:webMaxPageContent]
	}
	return text, nil
}
