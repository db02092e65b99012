package synthesis

import (
	"fmt"

	"github.com/gear-detector/backend/internal/gear"
)

// fill returns items unchanged when non-empty. Otherwise it infers one entry from the
// artist's signature gear, the genre profile, or the generic rig, in that order.
func fill(items []gear.GearItem, kind gear.Category, ac *gear.ArtistContext, prof profile) []gear.GearItem {
	if len(items) > 0 {
		return items
	}

	if ac != nil {
		for _, kg := range ac.KnownGear {
			if kg.Kind != kind {
				continue
			}
			notes := "Inferred from " + ac.Artist + "'s signature gear"
			if kg.Note != "" {
				notes += ": " + kg.Note
			}
			return []gear.GearItem{inferred(kg, signatureConfidence, notes)}
		}
	}

	conf := genericConfidence
	notes := "Inferred from a typical rig; no source reported this category"
	if prof.name != generic.name {
		conf = profileConfidence
		notes = fmt.Sprintf("Inferred from a typical %s rig", prof.name)
	}
	return []gear.GearItem{inferred(prof.fallback(kind), conf, notes)}
}

func inferred(kg gear.KnownGear, confidence int, notes string) gear.GearItem {
	it := gear.GearItem{
		Make:       kg.Make,
		Model:      kg.Model,
		Notes:      notes,
		Confidence: confidence,
		Tier:       gear.TierInferred,
		Sources:    []gear.SourceID{gear.SourceInference},
	}
	if kg.Kind == gear.CategoryPedal {
		it.Type = gear.EffectFor(kg.Make, kg.Model, kg.Note)
	}
	return it
}

// ampSettings averages the knob positions reported for the winning amp and takes any
// knob no source mentioned from the genre profile.
func ampSettings(winner *group, amp gear.GearItem, prof profile) gear.AmpSettings {
	out := gear.AmpSettings{}
	fromEvidence := 0

	for _, name := range gear.Knobs {
		sum, n := 0, 0
		if winner != nil {
			for _, s := range winner.settings {
				if v, ok := s[name]; ok && v >= 1 && v <= 10 {
					sum += v
					n++
				}
			}
		}
		dst := out.Knob(name)
		if n > 0 {
			*dst = max(1, min(round(float64(sum)/float64(n)), 10))
			fromEvidence++
			continue
		}
		*dst = *prof.settings.Knob(name)
	}

	switch {
	case fromEvidence == len(gear.Knobs):
		out.Origin = gear.SettingsFromEvidence
		out.Notes = fmt.Sprintf("Averaged from %s for the %s", reports(len(winner.settings)), amp.Name())
	case fromEvidence > 0:
		out.Origin = gear.SettingsMixed
		out.Notes = fmt.Sprintf("%d of %d knobs from %s for the %s; the rest are typical %s settings",
			fromEvidence, len(gear.Knobs), reports(len(winner.settings)), amp.Name(), prof.name)
	default:
		out.Origin = gear.SettingsInferred
		out.Notes = fmt.Sprintf("Typical %s settings for the %s; no source reported knob positions", prof.name, amp.Name())
	}
	return out
}

func reports(n int) string {
	if n == 1 {
		return "1 source report"
	}
	return fmt.Sprintf("%d source reports", n)
}
