package synthesis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gear-detector/backend/internal/gear"
)

const alternativeFloor = 50

// slot is a set of groups of which only one can be the gear actually used.
type slot struct {
	kind   gear.Category
	effect string
	groups []*group
}

// resolved is the outcome of one slot: the winner first, then retained alternatives.
type resolved struct {
	kind      gear.Category
	effect    string
	winner    *group
	items     []gear.GearItem
	conflicts []gear.Conflict
}

// slots partitions groups: one slot each for guitars and amps, one per pedal effect type,
// and a private slot for every pedal whose effect is unknown and every piece of other gear.
// Strings, picks and cables are used together, so other gear never conflicts.
func slots(groups []*group) []*slot {
	var out []*slot
	index := make(map[string]*slot)
	for _, g := range groups {
		if g.kind == gear.CategoryOther || (g.kind == gear.CategoryPedal && g.effect == gear.EffectOther) {
			out = append(out, &slot{kind: g.kind, effect: g.effect, groups: []*group{g}})
			continue
		}
		key := string(g.kind)
		if g.kind == gear.CategoryPedal {
			key += "|" + g.effect
		}
		s, ok := index[key]
		if !ok {
			s = &slot{kind: g.kind, effect: g.effect}
			index[key] = s
			out = append(out, s)
		}
		s.groups = append(s.groups, g)
	}
	return out
}

// resolve ranks the slot's groups and keeps the winner. Each loser's confidence is scaled by
// its share of the combined weight, and the alternative floor applies to that scaled value.
func (s *slot) resolve() resolved {
	ranked := append([]*group(nil), s.groups...)
	sort.SliceStable(ranked, func(i, j int) bool { return outranks(ranked[i], ranked[j]) })

	win := ranked[0]
	r := resolved{kind: s.kind, effect: s.effect, winner: win, items: []gear.GearItem{win.item()}}

	var alts []gear.GearItem
	for _, alt := range ranked[1:] {
		scaled := 0
		if total := alt.weight + win.weight; total > 0 {
			scaled = clampConfidence(round(float64(alt.confidence) * 2 * alt.weight / total))
		}

		resolution := fmt.Sprintf("Chose %s (%s) over %s (%s) on combined source weight",
			win.claim.Name(), joinSources(win.sources), alt.claim.Name(), joinSources(alt.sources))
		if scaled >= alternativeFloor {
			it := alt.item()
			it.Confidence = scaled
			it.Tier = tierFor(scaled)
			if it.Notes == "" {
				it.Notes = "Alternative to " + win.claim.Name()
			} else {
				it.Notes += "; alternative to " + win.claim.Name()
			}
			alts = append(alts, it)
			resolution += fmt.Sprintf("; kept as alternative at %d", scaled)
		} else {
			resolution += fmt.Sprintf("; dropped at %d", scaled)
		}
		r.conflicts = append(r.conflicts, gear.Conflict{
			Gear:       win.claim.Name() + " vs " + alt.claim.Name(),
			Resolution: resolution,
		})
	}

	sort.SliceStable(alts, func(i, j int) bool { return alts[i].Confidence > alts[j].Confidence })
	r.items = append(r.items, alts...)
	return r
}

func joinSources(ids []gear.SourceID) string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = string(id)
	}
	return strings.Join(names, ", ")
}
