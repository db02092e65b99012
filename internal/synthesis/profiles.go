package synthesis

import (
	"strings"

	"github.com/gear-detector/backend/internal/gear"
)

// profile is the typical rig of a genre, used when evidence leaves a category empty.
type profile struct {
	name     string
	keywords []string
	guitar   gear.KnownGear
	amp      gear.KnownGear
	pedal    gear.KnownGear
	settings gear.AmpSettings
}

func knob(gain, bass, middle, treble, presence, reverb int) gear.AmpSettings {
	return gear.AmpSettings{Gain: gain, Bass: bass, Middle: middle, Treble: treble, Presence: presence, Reverb: reverb}
}

// profiles are matched in order, so specific genres precede the catch-all rock entry.
var profiles = []profile{
	{
		name:     "blues",
		keywords: []string{"blues"},
		guitar:   gear.KnownGear{Kind: gear.CategoryGuitar, Make: "Fender", Model: "Stratocaster"},
		amp:      gear.KnownGear{Kind: gear.CategoryAmp, Make: "Fender", Model: "Deluxe Reverb"},
		pedal:    gear.KnownGear{Kind: gear.CategoryPedal, Make: "Ibanez", Model: "TS808 Tube Screamer"},
		settings: knob(4, 6, 6, 6, 5, 3),
	},
	{
		name:     "metal",
		keywords: []string{"metal", "metalcore", "thrash"},
		guitar:   gear.KnownGear{Kind: gear.CategoryGuitar, Make: "Gibson", Model: "Explorer"},
		amp:      gear.KnownGear{Kind: gear.CategoryAmp, Make: "Mesa Boogie", Model: "Dual Rectifier"},
		pedal:    gear.KnownGear{Kind: gear.CategoryPedal, Make: "Ibanez", Model: "TS9 Tube Screamer"},
		settings: knob(8, 7, 4, 7, 7, 1),
	},
	{
		name:     "grunge",
		keywords: []string{"grunge"},
		guitar:   gear.KnownGear{Kind: gear.CategoryGuitar, Make: "Fender", Model: "Mustang"},
		amp:      gear.KnownGear{Kind: gear.CategoryAmp, Make: "Mesa Boogie", Model: "Mark IV"},
		pedal:    gear.KnownGear{Kind: gear.CategoryPedal, Make: "Boss", Model: "DS-1"},
		settings: knob(7, 7, 5, 6, 6, 2),
	},
	{
		name:     "punk",
		keywords: []string{"punk", "hardcore"},
		guitar:   gear.KnownGear{Kind: gear.CategoryGuitar, Make: "Gibson", Model: "Les Paul"},
		amp:      gear.KnownGear{Kind: gear.CategoryAmp, Make: "Marshall", Model: "JCM800"},
		pedal:    gear.KnownGear{Kind: gear.CategoryPedal, Make: "ProCo", Model: "RAT"},
		settings: knob(7, 6, 6, 7, 6, 1),
	},
	{
		name:     "progressive",
		keywords: []string{"progressive", "prog", "psychedelic"},
		guitar:   gear.KnownGear{Kind: gear.CategoryGuitar, Make: "Fender", Model: "Stratocaster"},
		amp:      gear.KnownGear{Kind: gear.CategoryAmp, Make: "Hiwatt", Model: "DR103"},
		pedal:    gear.KnownGear{Kind: gear.CategoryPedal, Make: "Electro-Harmonix", Model: "Big Muff"},
		settings: knob(5, 5, 6, 6, 5, 4),
	},
	{
		name:     "alternative",
		keywords: []string{"alternative", "indie", "shoegaze"},
		guitar:   gear.KnownGear{Kind: gear.CategoryGuitar, Make: "Fender", Model: "Jazzmaster"},
		amp:      gear.KnownGear{Kind: gear.CategoryAmp, Make: "Vox", Model: "AC30"},
		pedal:    gear.KnownGear{Kind: gear.CategoryPedal, Make: "Boss", Model: "DD-3"},
		settings: knob(5, 5, 6, 7, 6, 3),
	},
	{
		name:     "jazz",
		keywords: []string{"jazz", "fusion"},
		guitar:   gear.KnownGear{Kind: gear.CategoryGuitar, Make: "Gibson", Model: "ES-335"},
		amp:      gear.KnownGear{Kind: gear.CategoryAmp, Make: "Roland", Model: "JC-120 Jazz Chorus"},
		pedal:    gear.KnownGear{Kind: gear.CategoryPedal, Make: "Electro-Harmonix", Model: "Memory Man"},
		settings: knob(2, 6, 6, 4, 4, 3),
	},
	{
		name:     "country",
		keywords: []string{"country", "americana", "bluegrass"},
		guitar:   gear.KnownGear{Kind: gear.CategoryGuitar, Make: "Fender", Model: "Telecaster"},
		amp:      gear.KnownGear{Kind: gear.CategoryAmp, Make: "Fender", Model: "Twin Reverb"},
		pedal:    gear.KnownGear{Kind: gear.CategoryPedal, Make: "MXR", Model: "Dyna Comp"},
		settings: knob(3, 5, 5, 7, 6, 4),
	},
	{
		name:     "rock",
		keywords: []string{"rock"},
		guitar:   gear.KnownGear{Kind: gear.CategoryGuitar, Make: "Gibson", Model: "Les Paul"},
		amp:      gear.KnownGear{Kind: gear.CategoryAmp, Make: "Marshall", Model: "Plexi"},
		pedal:    gear.KnownGear{Kind: gear.CategoryPedal, Make: "Ibanez", Model: "TS808 Tube Screamer"},
		settings: knob(7, 6, 6, 7, 6, 2),
	},
}

// generic is the genre-neutral fallback rig.
var generic = profile{
	name:     "general",
	guitar:   gear.KnownGear{Kind: gear.CategoryGuitar, Make: "Fender", Model: "Stratocaster"},
	amp:      gear.KnownGear{Kind: gear.CategoryAmp, Make: "Fender", Model: "Deluxe Reverb"},
	pedal:    gear.KnownGear{Kind: gear.CategoryPedal, Make: "Ibanez", Model: "TS808 Tube Screamer"},
	settings: knob(5, 5, 5, 5, 5, 3),
}

// profileFor returns the genre profile for ac and whether one matched.
func profileFor(ac *gear.ArtistContext) (profile, bool) {
	if ac == nil || ac.Genre == "" {
		return generic, false
	}
	key := " " + gear.MatchKey(ac.Genre) + " "
	for _, p := range profiles {
		for _, kw := range p.keywords {
			if strings.Contains(key, " "+kw+" ") {
				return p, true
			}
		}
	}
	return generic, false
}

func (p profile) fallback(kind gear.Category) gear.KnownGear {
	switch kind {
	case gear.CategoryGuitar:
		return p.guitar
	case gear.CategoryAmp:
		return p.amp
	}
	return p.pedal
}
