package synthesis

import (
	"sort"

	"github.com/gear-detector/backend/internal/gear"
)

// orderPedals sorts pedal slots by canonical effect order, keeping first-seen order
// among slots of the same effect.
func orderPedals(pedals []resolved) []resolved {
	out := append([]resolved(nil), pedals...)
	sort.SliceStable(out, func(i, j int) bool {
		return gear.EffectRank(out[i].effect) < gear.EffectRank(out[j].effect)
	})
	return out
}

// signalChain runs guitar, then one pedal per slot, then amp. Alternatives never appear.
func signalChain(r *gear.GearResult, pedals []resolved) []gear.ChainEntry {
	var stages []gear.ChainEntry
	add := func(kind gear.Category, item gear.GearItem) {
		stages = append(stages, gear.ChainEntry{Position: len(stages) + 1, Type: kind, Item: item.Name()})
	}

	add(gear.CategoryGuitar, r.Guitars[0])
	if len(pedals) == 0 {
		for _, p := range r.Pedals {
			add(gear.CategoryPedal, p)
		}
	}
	for _, p := range pedals {
		add(gear.CategoryPedal, p.items[0])
	}
	add(gear.CategoryAmp, r.Amps[0])
	return stages
}
