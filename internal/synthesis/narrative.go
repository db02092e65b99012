package synthesis

import (
	"fmt"
	"strings"

	"github.com/gear-detector/backend/internal/gear"
)

// overallScore is the mean item confidence weighted by combined source weight, with
// inferred items at a fixed low weight.
func overallScore(r *gear.GearResult, groups []*group) int {
	weights := make(map[string]float64, len(groups))
	for _, g := range groups {
		weights[groupKey(g.kind, g.claim, g.effect)] = g.weight
	}

	lists := []struct {
		kind  gear.Category
		items []gear.GearItem
	}{
		{gear.CategoryGuitar, r.Guitars},
		{gear.CategoryAmp, r.Amps},
		{gear.CategoryPedal, r.Pedals},
		{gear.CategoryOther, r.Other},
	}

	var sum, total float64
	var plain, count int
	backed := false
	for _, l := range lists {
		for _, it := range l.items {
			w := inferenceScoreWeight
			if !isInferred(it) {
				backed = true
				w = weights[groupKey(l.kind, gear.Claim{Make: it.Make, Model: it.Model}, it.Type)]
			}
			sum += float64(it.Confidence) * w
			total += w
			plain += it.Confidence
			count++
		}
	}

	score := 0
	switch {
	case total > 0:
		score = round(sum / total)
	case count > 0:
		score = round(float64(plain) / float64(count))
	}
	if !backed {
		score = min(score, unbackedScoreCap)
	}
	return clampConfidence(score)
}

func isInferred(it gear.GearItem) bool {
	return len(it.Sources) == 1 && it.Sources[0] == gear.SourceInference
}

// narrative summarizes the query, artist context, source coverage and primary rig.
func narrative(set *gear.EvidenceSet, r *gear.GearResult, prof profile) string {
	var b strings.Builder

	if set.Query.Artist != "" {
		b.WriteString(set.Query.String())
		b.WriteString(". ")
	}

	if ac := set.Context; ac != nil {
		var parts []string
		if ac.Genre != "" {
			parts = append(parts, ac.Genre+" artist")
		}
		if ac.Era != "" {
			parts = append(parts, "associated with the "+ac.Era)
		}
		if ac.ActiveYears != "" {
			parts = append(parts, "active "+ac.ActiveYears)
		}
		if len(parts) > 0 {
			b.WriteString(capitalize(strings.Join(parts, ", ")))
			b.WriteString(". ")
		}
	}

	fmt.Fprintf(&b, "%d of %d sources returned evidence. ", r.SourcesSucceeded, r.SourcesConsulted)

	var pedals []string
	for _, e := range r.SignalChain {
		if e.Type == gear.CategoryPedal {
			pedals = append(pedals, e.Item)
		}
	}
	fmt.Fprintf(&b, "Primary rig: %s into the %s", r.Guitars[0].Name(), r.Amps[0].Name())
	if len(pedals) > 0 {
		fmt.Fprintf(&b, " through %s", strings.Join(pedals, ", "))
	}
	b.WriteString(".")

	inferredLists := 0
	for _, l := range [][]gear.GearItem{r.Guitars, r.Amps, r.Pedals} {
		if isInferred(l[0]) {
			inferredLists++
		}
	}
	if inferredLists > 0 {
		fmt.Fprintf(&b, " %d of 3 categories were inferred from %s context.", inferredLists, inferenceBasis(set.Context, prof))
	}

	switch n := len(r.Conflicts); n {
	case 0:
	case 1:
		b.WriteString(" 1 conflicting claim was resolved.")
	default:
		fmt.Fprintf(&b, " %d conflicting claims were resolved.", n)
	}
	return b.String()
}

func inferenceBasis(ac *gear.ArtistContext, prof profile) string {
	switch {
	case ac != nil && len(ac.KnownGear) > 0:
		return "artist"
	case prof.name != generic.name:
		return prof.name + " genre"
	}
	return "general"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
