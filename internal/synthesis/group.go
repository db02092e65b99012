package synthesis

import (
	"math"
	"sort"

	"github.com/gear-detector/backend/internal/gear"
)

// group collects every evidence item that names the same piece of gear.
type group struct {
	kind     gear.Category
	claim    gear.Claim
	effect   string
	first    int
	best     map[gear.SourceID]float64
	notes    []string
	settings []map[string]int

	sources    []gear.SourceID
	weight     float64
	strength   float64
	confidence int
	tier       gear.Tier
}

func groupKey(kind gear.Category, c gear.Claim, effect string) string {
	return string(kind) + "|" + gear.MatchKey(c.Make) + "|" + gear.MatchKey(c.Model) + "|" + effect
}

// buildGroups canonicalizes and groups items, keeping groups in order of first appearance.
func buildGroups(items []gear.EvidenceItem) []*group {
	var groups []*group
	index := make(map[string]*group)

	for pos, it := range items {
		claim := gear.Canonicalize(it.Kind, it.Claim)
		effect := ""
		if it.Kind == gear.CategoryPedal {
			effect = claim.EffectType
			if effect == "" {
				effect = gear.EffectFor(claim.Make, claim.Model, claim.Note)
			}
		}

		key := groupKey(it.Kind, claim, effect)
		g, ok := index[key]
		if !ok {
			g = &group{
				kind:   it.Kind,
				claim:  gear.Claim{Make: claim.Make, Model: claim.Model},
				effect: effect,
				first:  pos,
				best:   make(map[gear.SourceID]float64),
			}
			index[key] = g
			groups = append(groups, g)
		}

		if g.claim.Year == nil && claim.Year != nil {
			y := *claim.Year
			g.claim.Year = &y
		}
		if claim.Note != "" {
			g.notes = append(g.notes, claim.Note)
		}
		if len(claim.Settings) > 0 {
			g.settings = append(g.settings, claim.Settings)
		}

		c := float64(max(0, min(it.RawConfidence, 100))) / 100 * weight(it.Source)
		if prev, seen := g.best[it.Source]; !seen || c > prev {
			g.best[it.Source] = c
		}
	}

	for _, g := range groups {
		g.score()
	}
	return groups
}

func (g *group) specificity() float64 {
	switch {
	case g.claim.Model != "" && g.claim.Year != nil:
		return 1.0
	case g.claim.Model != "":
		return 0.95
	}
	return 0.80
}

// score derives strength, combined weight, tier and confidence from per-source contributions.
func (g *group) score() {
	g.sources = g.sources[:0]
	for s := range g.best {
		g.sources = append(g.sources, s)
	}
	sortSources(g.sources)

	miss := 1.0
	g.weight = 0
	for _, s := range g.sources {
		c := g.best[s]
		miss *= 1 - c
		g.weight += c
	}
	g.strength = (1 - miss) * g.specificity()

	switch {
	case len(g.sources) >= 2 && g.strength >= 0.75:
		g.tier = gear.TierConfirmed
		g.confidence = 90 + round(10*g.strength)
	case g.strength >= 0.50:
		g.tier = gear.TierLikely
		g.confidence = 70 + round(19*g.strength)
	default:
		g.tier = gear.TierInferred
		g.confidence = 50 + round(19*g.strength)
	}
	g.confidence = clampConfidence(g.confidence)
}

// lead is the highest-priority contributing source.
func (g *group) lead() gear.SourceID {
	return g.sources[0]
}

func (g *group) item() gear.GearItem {
	it := gear.GearItem{
		Make:       g.claim.Make,
		Model:      g.claim.Model,
		Type:       g.effect,
		Confidence: g.confidence,
		Tier:       g.tier,
		Sources:    append([]gear.SourceID(nil), g.sources...),
	}
	if g.claim.Year != nil {
		y := *g.claim.Year
		it.Year = &y
	}
	if len(g.notes) > 0 {
		it.Notes = g.notes[0]
	}
	return it
}

func sortSources(ids []gear.SourceID) {
	sort.Slice(ids, func(i, j int) bool {
		if ri, rj := rank(ids[i]), rank(ids[j]); ri != rj {
			return ri < rj
		}
		return ids[i] < ids[j]
	})
}

// outranks orders groups competing for one slot: combined weight, then source priority,
// then earliest evidence position.
func outranks(a, b *group) bool {
	if a.weight != b.weight {
		return a.weight > b.weight
	}
	if ra, rb := rank(a.lead()), rank(b.lead()); ra != rb {
		return ra < rb
	}
	return a.first < b.first
}

func round(v float64) int {
	return int(math.Round(v))
}

func clampConfidence(v int) int {
	return max(0, min(v, 100))
}

func tierFor(confidence int) gear.Tier {
	switch {
	case confidence >= 90:
		return gear.TierConfirmed
	case confidence >= 70:
		return gear.TierLikely
	}
	return gear.TierInferred
}
