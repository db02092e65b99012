package sources

import (
	"context"
	"fmt"

	"github.com/gear-detector/backend/internal/gear"
)

const graphHistoryLimit = 15

type GearHistory interface {
	ArtistGear(ctx context.Context, artist, excludeSong string, limit int) ([]gear.Usage, error)
}

// Graph turns the artist's gear history from earlier searches into evidence. Gear seen on
// more songs carries more weight.
type Graph struct {
	history GearHistory
}

func NewGraph(history GearHistory) *Graph {
	return &Graph{history: history}
}

func (g *Graph) Source() gear.SourceID {
	return gear.SourceGraph
}

func (g *Graph) Fetch(ctx context.Context, q gear.Query) ([]gear.EvidenceItem, error) {
	if g.history == nil {
		return nil, fail(gear.SourceGraph, ErrNotConfigured, nil)
	}

	usages, err := g.history.ArtistGear(ctx, q.Artist, q.Song, graphHistoryLimit)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fail(gear.SourceGraph, ErrTimeout, err)
		}
		return nil, fail(gear.SourceGraph, ErrUpstream, err)
	}

	items := make([]gear.EvidenceItem, 0, len(usages))
	for _, u := range usages {
		if !u.Kind.Valid() || (u.Make == "" && u.Model == "") {
			continue
		}
		raw := u.Confidence - 10 + 5*min(u.Songs, 4)
		raw = max(40, min(raw, 75))
		items = append(items, gear.EvidenceItem{
			Source: gear.SourceGraph,
			Kind:   u.Kind,
			Claim: gear.Claim{
				Make:       u.Make,
				Model:      u.Model,
				EffectType: u.EffectType,
			},
			RawConfidence:  raw,
			SupportingText: fmt.Sprintf("Used by %s on %d other recorded song(s)", q.Artist, u.Songs),
		})
	}
	return items, nil
}
