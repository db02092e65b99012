package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/time/rate"
)

const (
	musicBrainzBaseURL = "https://musicbrainz.org"
	wikipediaBaseURL   = "https://en.wikipedia.org"
	userAgent          = "GearDetector/1.0 (contact@geardetector.com)"
	maxGenres          = 3
)

var titleCase = cases.Title(language.English)

// MusicBrainz looks up genre tags and the active span of an artist. The public API allows
// one request per second per client, which the limiter enforces across queries.
type MusicBrainz struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

func NewMusicBrainz(baseURL string, client *http.Client, limiter *rate.Limiter) *MusicBrainz {
	if baseURL == "" {
		baseURL = musicBrainzBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Every(time.Second), 1)
	}
	return &MusicBrainz{baseURL: strings.TrimRight(baseURL, "/"), client: client, limiter: limiter}
}

func (m *MusicBrainz) Name() string {
	return "musicbrainz"
}

func (m *MusicBrainz) Fetch(ctx context.Context, artist string) (*Metadata, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("query", artist)
	params.Set("fmt", "json")
	params.Set("limit", "1")

	var resp struct {
		Artists []struct {
			Name string `json:"name"`
			Tags []struct {
				Name  string `json:"name"`
				Count int    `json:"count"`
			} `json:"tags"`
			LifeSpan struct {
				Begin string `json:"begin"`
				End   string `json:"end"`
			} `json:"life-span"`
		} `json:"artists"`
	}
	if err := getJSON(ctx, m.client, m.baseURL+"/ws/2/artist/?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	if len(resp.Artists) == 0 {
		return nil, nil
	}

	a := resp.Artists[0]
	tags := a.Tags
	sort.SliceStable(tags, func(i, j int) bool { return tags[i].Count > tags[j].Count })

	md := &Metadata{}
	for _, t := range tags {
		if len(md.Genres) == maxGenres {
			break
		}
		if name := strings.TrimSpace(t.Name); name != "" {
			md.Genres = append(md.Genres, titleCase.String(name))
		}
	}
	if len(a.LifeSpan.Begin) >= 4 {
		if y, err := strconv.Atoi(a.LifeSpan.Begin[:4]); err == nil {
			md.BeginYear = y
		}
		end := "present"
		if len(a.LifeSpan.End) >= 4 {
			end = a.LifeSpan.End[:4]
		}
		md.ActiveYears = a.LifeSpan.Begin[:4] + "-" + end
	}
	return md, nil
}

var wikiGenreKeywords = []struct {
	genre    string
	keywords []string
}{
	{"Blues", []string{"blues", "blues rock", "rhythm and blues"}},
	{"Metal", []string{"heavy metal", "thrash metal", "metal"}},
	{"Jazz", []string{"jazz", "fusion", "bebop"}},
	{"Country", []string{"country"}},
	{"Funk", []string{"funk"}},
	{"Soul", []string{"soul", "r&b"}},
	{"Rock", []string{"rock"}},
	{"Pop", []string{"pop"}},
}

// Wikipedia reads the page summary and picks genre keywords out of its opening text.
type Wikipedia struct {
	baseURL string
	client  *http.Client
}

func NewWikipedia(baseURL string, client *http.Client) *Wikipedia {
	if baseURL == "" {
		baseURL = wikipediaBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Wikipedia{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (w *Wikipedia) Name() string {
	return "wikipedia"
}

func (w *Wikipedia) Fetch(ctx context.Context, artist string) (*Metadata, error) {
	title := url.PathEscape(strings.ReplaceAll(strings.TrimSpace(artist), " ", "_"))

	var resp struct {
		Extract string `json:"extract"`
	}
	if err := getJSON(ctx, w.client, w.baseURL+"/api/rest_v1/page/summary/"+title, &resp); err != nil {
		return nil, err
	}
	if resp.Extract == "" {
		return nil, nil
	}

	lower := strings.ToLower(resp.Extract)
	md := &Metadata{Notes: firstSentence(resp.Extract)}
	for _, g := range wikiGenreKeywords {
		for _, kw := range g.keywords {
			if strings.Contains(lower, kw) {
				md.Genres = append(md.Genres, g.genre)
				break
			}
		}
		if len(md.Genres) == maxGenres {
			break
		}
	}
	return md, nil
}

func firstSentence(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, ". "); i > 0 {
		s = s[:i+1]
	}
	if len(s) > 500 {
		s = s[:500]
	}
	return s
}

var errNotFound = errors.New("not found")

func getJSON(ctx context.Context, client *http.Client, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
