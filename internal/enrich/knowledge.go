package enrich

import (
	"strings"

	"github.com/gear-detector/backend/internal/gear"
	"github.com/gear-detector/backend/pkg/utils"
)

type artistProfile struct {
	Genre     string
	BeginYear int
	Notes     string
	Gear      []gear.KnownGear
}

func known(kind gear.Category, make, model, note string) gear.KnownGear {
	return gear.KnownGear{Kind: kind, Make: make, Model: model, Note: note}
}

// signatureArtists is the built-in knowledge base of well-documented rigs.
var signatureArtists = map[string]artistProfile{
	"john mayer": {"Blues Rock", 1998, "Strat-centric blues player with boutique amps", []gear.KnownGear{
		known(gear.CategoryGuitar, "Fender", "Stratocaster", "Multiple vintages, especially 1964"),
		known(gear.CategoryGuitar, "PRS", "Super Eagle", "Custom shop model"),
		known(gear.CategoryAmp, "Dumble", "Overdrive Special", "Primary amp"),
		known(gear.CategoryAmp, "Two-Rock", "Custom Reverb", "Touring amp"),
		known(gear.CategoryPedal, "Ibanez", "TS808 Tube Screamer", "Signature overdrive"),
	}},
	"eddie van halen": {"Hard Rock", 1972, "", []gear.KnownGear{
		known(gear.CategoryGuitar, "EVH", "Frankenstein", "Iconic striped guitar"),
		known(gear.CategoryAmp, "Marshall", "Plexi", "Modified"),
		known(gear.CategoryAmp, "Peavey", "5150", "Signature amp"),
	}},
	"eric clapton": {"Blues Rock", 1963, "", []gear.KnownGear{
		known(gear.CategoryGuitar, "Fender", "Stratocaster", "Blackie and Brownie"),
		known(gear.CategoryAmp, "Fender", "Twin Reverb", ""),
		known(gear.CategoryAmp, "Marshall", "JTM45", ""),
	}},
	"jimi hendrix": {"Blues Rock", 1963, "", []gear.KnownGear{
		known(gear.CategoryGuitar, "Fender", "Stratocaster", "Left-handed"),
		known(gear.CategoryAmp, "Marshall", "Super Lead", ""),
		known(gear.CategoryPedal, "Dallas Arbiter", "Fuzz Face", ""),
	}},
	"david gilmour": {"Progressive Rock", 1965, "", []gear.KnownGear{
		known(gear.CategoryGuitar, "Fender", "Stratocaster", "Black Strat"),
		known(gear.CategoryAmp, "Hiwatt", "DR103", ""),
		known(gear.CategoryPedal, "Electro-Harmonix", "Big Muff", ""),
	}},
	"slash": {"Hard Rock", 1985, "", []gear.KnownGear{
		known(gear.CategoryGuitar, "Gibson", "Les Paul", "Gold Top"),
		known(gear.CategoryAmp, "Marshall", "JCM800", ""),
		known(gear.CategoryAmp, "Marshall", "Silver Jubilee", ""),
	}},
	"stevie ray vaughan": {"Blues Rock", 1970, "", []gear.KnownGear{
		known(gear.CategoryGuitar, "Fender", "Stratocaster", "Number One"),
		known(gear.CategoryAmp, "Fender", "Vibroverb", ""),
		known(gear.CategoryPedal, "Ibanez", "TS808 Tube Screamer", ""),
	}},
	"kurt cobain": {"Grunge", 1987, "", []gear.KnownGear{
		known(gear.CategoryGuitar, "Fender", "Jaguar", ""),
		known(gear.CategoryGuitar, "Fender", "Mustang", ""),
		known(gear.CategoryPedal, "Boss", "DS-1", ""),
	}},
	"tom morello": {"Alternative Rock", 1991, "", []gear.KnownGear{
		known(gear.CategoryGuitar, "Fender", "Stratocaster", "Arm The Homeless"),
		known(gear.CategoryAmp, "Marshall", "JCM800", ""),
		known(gear.CategoryPedal, "DigiTech", "Whammy", ""),
	}},
}

var genreArtists = []struct {
	genre   string
	artists []string
}{
	{"Blues Rock", []string{"john mayer", "eric clapton", "stevie ray vaughan", "bb king", "gary clark"}},
	{"Metal", []string{"metallica", "slayer", "iron maiden", "megadeth", "pantera"}},
	{"Hard Rock", []string{"led zeppelin", "ac/dc", "guns n' roses", "van halen", "aerosmith"}},
	{"Grunge", []string{"nirvana", "pearl jam", "soundgarden", "alice in chains"}},
	{"Progressive Rock", []string{"pink floyd", "rush", "yes", "dream theater"}},
	{"Punk", []string{"ramones", "sex pistols", "green day", "the clash"}},
	{"Alternative Rock", []string{"radiohead", "foo fighters", "red hot chili peppers", "weezer"}},
	{"Jazz", []string{"pat metheny", "john scofield", "wes montgomery", "george benson"}},
}

// KnowledgeBase answers from the built-in tables only and never touches the network.
type KnowledgeBase struct{}

func (KnowledgeBase) Name() string {
	return "knowledge_base"
}

func (KnowledgeBase) Lookup(artist string) (*Metadata, bool) {
	name := utils.NormalizeText(artist)
	if name == "" {
		return nil, false
	}

	if p, ok := signatureArtists[name]; ok {
		return &Metadata{
			Genres:    []string{p.Genre},
			BeginYear: p.BeginYear,
			Notes:     p.Notes,
			KnownGear: append([]gear.KnownGear(nil), p.Gear...),
		}, true
	}

	for _, g := range genreArtists {
		for _, a := range g.artists {
			if a == name || strings.Contains(" "+name+" ", " "+a+" ") {
				return &Metadata{Genres: []string{g.genre}}, true
			}
		}
	}
	return nil, false
}
