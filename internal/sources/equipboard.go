package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/gear-detector/backend/internal/gear"
	"github.com/gear-detector/backend/pkg/logger"
	"github.com/gear-detector/backend/pkg/utils"
)

const equipboardBaseURL = "https://equipboard.com"

// Equipboard reads an artist's curated gear profile. Profiles are per artist, so every
// item applies to the whole catalogue rather than the specific song.
type Equipboard struct {
	baseURL string
	http    *fetcher
}

func NewEquipboard(cfg HTTPConfig) *Equipboard {
	base := cfg.BaseURL
	if base == "" {
		base = equipboardBaseURL
	}
	return &Equipboard{
		baseURL: strings.TrimRight(base, "/"),
		http:    newFetcher(gear.SourceEquipboard, cfg),
	}
}

func (e *Equipboard) Source() gear.SourceID {
	return gear.SourceEquipboard
}

func (e *Equipboard) Fetch(ctx context.Context, q gear.Query) ([]gear.EvidenceItem, error) {
	slug := utils.Slugify(q.Artist)
	if slug == "" {
		return nil, fail(gear.SourceEquipboard, ErrNoData, fmt.Errorf("no profile slug for artist %q", q.Artist))
	}

	body, err := e.http.get(ctx, fmt.Sprintf("%s/pros/%s", e.baseURL, url.PathEscape(slug)), nil)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fail(gear.SourceEquipboard, ErrUpstream, fmt.Errorf("failed to parse HTML: %w", err))
	}

	items := parseEquipboardProfile(doc)
	logger.Debug("Equipboard profile parsed",
		zap.String("artist", q.Artist),
		zap.Int("items", len(items)),
	)
	return items, nil
}

func parseEquipboardProfile(doc *goquery.Document) []gear.EvidenceItem {
	cards := doc.Find("div.gear-item")
	if cards.Length() == 0 {
		cards = doc.Find("div.product-card")
	}
	if cards.Length() == 0 {
		cards = doc.Find("a.gear-link")
	}

	var items []gear.EvidenceItem
	seen := make(map[string]bool)
	cards.Each(func(_ int, s *goquery.Selection) {
		if len(items) >= maxItemsPerSource {
			return
		}
		name := strings.TrimSpace(s.Find("h3, h4, a.gear-name, .product-name").First().Text())
		if name == "" {
			return
		}
		category := strings.ToLower(strings.TrimSpace(s.Find("span.category, .product-category").First().Text()))
		note := strings.TrimSpace(s.Find(".gear-note, .product-description").First().Text())

		brand, model, _ := gear.SplitBrand(name)
		if brand == "" {
			brand, model = name, ""
		}
		kind := equipboardCategory(category, brand, model)
		claim := gear.Canonicalize(kind, gear.Claim{Make: brand, Model: model, Note: note})
		if kind == gear.CategoryPedal && claim.EffectType == "" {
			claim.EffectType = gear.EffectFor(claim.Make, claim.Model, category+" "+note)
		}

		key := string(kind) + "|" + gear.MatchKey(claim.Name())
		if seen[key] {
			return
		}
		seen[key] = true

		support := name
		if note != "" {
			support += ": " + note
		}
		items = append(items, gear.EvidenceItem{
			Source:         gear.SourceEquipboard,
			Kind:           kind,
			Claim:          claim,
			RawConfidence:  rawEquipboard,
			SupportingText: truncate(support, maxSupportingText),
		})
	})
	return items
}

func equipboardCategory(label, brand, model string) gear.Category {
	switch {
	case strings.Contains(label, "amp"):
		return gear.CategoryAmp
	case strings.Contains(label, "pedal"), strings.Contains(label, "effect"), strings.Contains(label, "stompbox"):
		return gear.CategoryPedal
	case strings.Contains(label, "guitar"):
		return gear.CategoryGuitar
	}
	return gear.Classify(brand, model)
}
