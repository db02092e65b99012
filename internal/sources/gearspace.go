package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/gear-detector/backend/internal/gear"
)

const (
	gearspaceBaseURL  = "https://gearspace.com/board"
	gearspaceMaxPosts = 20
)

// Gearspace scans forum search results for gear mentions; each post counts as one document.
type Gearspace struct {
	baseURL string
	http    *fetcher
}

func NewGearspace(cfg HTTPConfig) *Gearspace {
	base := cfg.BaseURL
	if base == "" {
		base = gearspaceBaseURL
	}
	return &Gearspace{
		baseURL: strings.TrimRight(base, "/"),
		http:    newFetcher(gear.SourceGearspace, cfg),
	}
}

func (g *Gearspace) Source() gear.SourceID {
	return gear.SourceGearspace
}

func (g *Gearspace) Fetch(ctx context.Context, q gear.Query) ([]gear.EvidenceItem, error) {
	params := url.Values{}
	params.Set("query", fmt.Sprintf("%s %s gear", q.Artist, q.Song))
	params.Set("do", "process")

	body, err := g.http.get(ctx, g.baseURL+"/search.php?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fail(gear.SourceGearspace, ErrUpstream, fmt.Errorf("failed to parse HTML: %w", err))
	}

	posts := doc.Find("div.post")
	if posts.Length() == 0 {
		posts = doc.Find("div.thread")
	}
	if posts.Length() == 0 {
		posts = doc.Find("li.result")
	}

	var texts []string
	posts.EachWithBreak(func(i int, s *goquery.Selection) bool {
		if t := strings.TrimSpace(s.Text()); t != "" {
			texts = append(texts, t)
		}
		return len(texts) < gearspaceMaxPosts
	})

	return mergeDocuments(gear.SourceGearspace, texts, rawGearspace, 80), nil
}
