package sources

import (
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/gear-detector/backend/internal/gear"
	"github.com/gear-detector/backend/pkg/config"
)

// Order is the registration order of the providers. Evidence is concatenated in this order.
var Order = []gear.SourceID{
	gear.SourceEquipboard,
	gear.SourceYouTube,
	gear.SourceGearspace,
	gear.SourceReddit,
	gear.SourceWebSearch,
	gear.SourceGraph,
	gear.SourceLLM,
}

type Dependencies struct {
	LLM     GearExtractor
	History GearHistory
	Client  *http.Client
}

// Build constructs the adapter list for the configured mode. The returned slice is never
// modified afterwards.
func Build(cfg config.SourcesConfig, deps Dependencies) ([]Adapter, error) {
	enabled := make(map[gear.SourceID]bool)
	for _, s := range cfg.Enabled {
		enabled[gear.SourceID(s)] = true
	}
	for s := range enabled {
		if !known(s) {
			return nil, fmt.Errorf("unknown source %q", s)
		}
	}
	include := func(s gear.SourceID) bool {
		return len(enabled) == 0 || enabled[s]
	}

	switch cfg.Mode {
	case "fixture":
		set, err := LoadFixtures(cfg.FixturesPath)
		if err != nil {
			return nil, err
		}
		var out []Adapter
		for _, s := range Order {
			if include(s) {
				out = append(out, set.Adapter(s))
			}
		}
		return out, nil
	case "live", "":
	default:
		return nil, fmt.Errorf("unknown sources mode %q", cfg.Mode)
	}

	client := deps.Client
	if client == nil {
		client = &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second}
	}
	httpCfg := func(baseURL string) HTTPConfig {
		return HTTPConfig{BaseURL: baseURL, UserAgent: cfg.UserAgent, Client: client}
	}

	var out []Adapter
	for _, s := range Order {
		if !include(s) {
			continue
		}
		switch s {
		case gear.SourceEquipboard:
			out = append(out, NewEquipboard(httpCfg("")))
		case gear.SourceYouTube:
			out = append(out, NewYouTube(cfg.YouTubeAPIKey, httpCfg("")))
		case gear.SourceGearspace:
			out = append(out, NewGearspace(httpCfg("")))
		case gear.SourceReddit:
			out = append(out, NewReddit(rate.NewLimiter(rate.Limit(1), 2), httpCfg(cfg.RedditBaseURL)))
		case gear.SourceWebSearch:
			out = append(out, NewWebSearch(cfg.SerpAPIKey, httpCfg("")))
		case gear.SourceGraph:
			out = append(out, NewGraph(deps.History))
		case gear.SourceLLM:
			out = append(out, NewLLM(deps.LLM))
		}
	}
	return out, nil
}

func known(s gear.SourceID) bool {
	for _, o := range Order {
		if o == s {
			return true
		}
	}
	return false
}
