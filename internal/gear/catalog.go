package gear

import (
	"sort"
	"strings"
	"unicode"
)

// Pedal effect types in signal-chain order.
const (
	EffectCompressor = "compressor"
	EffectWah        = "wah"
	EffectOverdrive  = "overdrive"
	EffectDistortion = "distortion"
	EffectFuzz       = "fuzz"
	EffectModulation = "modulation"
	EffectPitch      = "pitch"
	EffectDelay      = "delay"
	EffectReverb     = "reverb"
	EffectOther      = "other"
)

var EffectOrder = []string{
	EffectCompressor, EffectWah, EffectOverdrive, EffectDistortion, EffectFuzz,
	EffectModulation, EffectPitch, EffectDelay, EffectReverb, EffectOther,
}

func EffectRank(effect string) int {
	for i, e := range EffectOrder {
		if e == effect {
			return i
		}
	}
	return len(EffectOrder) - 1
}

type CatalogEntry struct {
	Kind    Category
	Make    string
	Model   string
	Effect  string
	Aliases []string
}

func (e CatalogEntry) Name() string {
	return e.Make + " " + e.Model
}

var catalog = []CatalogEntry{
	{CategoryGuitar, "Fender", "Stratocaster", "", []string{"stratocaster", "strat"}},
	{CategoryGuitar, "Fender", "Telecaster", "", []string{"telecaster"}},
	{CategoryGuitar, "Fender", "Jaguar", "", []string{"fender jaguar"}},
	{CategoryGuitar, "Fender", "Mustang", "", []string{"fender mustang"}},
	{CategoryGuitar, "Fender", "Jazzmaster", "", []string{"jazzmaster"}},
	{CategoryGuitar, "Gibson", "Les Paul", "", []string{"les paul"}},
	{CategoryGuitar, "Gibson", "SG", "", []string{"gibson sg"}},
	{CategoryGuitar, "Gibson", "ES-335", "", []string{"es-335", "es 335"}},
	{CategoryGuitar, "Gibson", "Explorer", "", []string{"gibson explorer"}},
	{CategoryGuitar, "Gibson", "Flying V", "", []string{"flying v"}},
	{CategoryGuitar, "PRS", "Super Eagle", "", []string{"super eagle"}},
	{CategoryGuitar, "PRS", "Silver Sky", "", []string{"silver sky"}},
	{CategoryGuitar, "PRS", "Custom 24", "", []string{"custom 24"}},
	{CategoryGuitar, "Gretsch", "White Falcon", "", []string{"white falcon"}},
	{CategoryGuitar, "Rickenbacker", "360", "", []string{"rickenbacker 360"}},
	{CategoryGuitar, "EVH", "Frankenstein", "", []string{"frankenstrat", "frankenstein"}},

	{CategoryAmp, "Fender", "Twin Reverb", "", []string{"twin reverb"}},
	{CategoryAmp, "Fender", "Deluxe Reverb", "", []string{"deluxe reverb"}},
	{CategoryAmp, "Fender", "Bassman", "", []string{"bassman"}},
	{CategoryAmp, "Fender", "Vibroverb", "", []string{"vibroverb"}},
	{CategoryAmp, "Fender", "Princeton Reverb", "", []string{"princeton reverb", "princeton"}},
	{CategoryAmp, "Vox", "AC30", "", []string{"ac30", "ac-30", "ac 30"}},
	{CategoryAmp, "Marshall", "JCM800", "", []string{"jcm800", "jcm 800"}},
	{CategoryAmp, "Marshall", "Plexi", "", []string{"plexi"}},
	{CategoryAmp, "Marshall", "JTM45", "", []string{"jtm45", "jtm 45"}},
	{CategoryAmp, "Marshall", "Super Lead", "", []string{"super lead"}},
	{CategoryAmp, "Marshall", "Silver Jubilee", "", []string{"silver jubilee"}},
	{CategoryAmp, "Mesa Boogie", "Dual Rectifier", "", []string{"dual rectifier", "rectifier"}},
	{CategoryAmp, "Mesa Boogie", "Mark IV", "", []string{"mark iv"}},
	{CategoryAmp, "Dumble", "Overdrive Special", "", []string{"overdrive special", "dumble"}},
	{CategoryAmp, "Two-Rock", "Custom Reverb", "", []string{"two-rock", "two rock"}},
	{CategoryAmp, "Hiwatt", "DR103", "", []string{"dr103", "dr 103"}},
	{CategoryAmp, "Orange", "Rockerverb", "", []string{"rockerverb"}},
	{CategoryAmp, "Peavey", "5150", "", []string{"5150"}},
	{CategoryAmp, "Friedman", "BE-100", "", []string{"be-100", "be 100"}},
	{CategoryAmp, "Soldano", "SLO-100", "", []string{"slo-100", "slo 100"}},
	{CategoryAmp, "Roland", "JC-120 Jazz Chorus", "", []string{"jc-120", "jazz chorus"}},

	{CategoryPedal, "Ibanez", "TS808 Tube Screamer", EffectOverdrive, []string{"ts808", "ts-808", "tube screamer"}},
	{CategoryPedal, "Ibanez", "TS9 Tube Screamer", EffectOverdrive, []string{"ts9", "ts-9"}},
	{CategoryPedal, "Klon", "Centaur", EffectOverdrive, []string{"klon", "centaur"}},
	{CategoryPedal, "Analogman", "King of Tone", EffectOverdrive, []string{"king of tone"}},
	{CategoryPedal, "Paul Cochrane", "Timmy", EffectOverdrive, []string{"timmy"}},
	{CategoryPedal, "Xotic", "EP Booster", EffectOverdrive, []string{"ep booster"}},
	{CategoryPedal, "Boss", "BD-2 Blues Driver", EffectOverdrive, []string{"bd-2", "blues driver"}},
	{CategoryPedal, "Fulltone", "OCD", EffectOverdrive, []string{"ocd"}},
	{CategoryPedal, "Boss", "DS-1", EffectDistortion, []string{"ds-1", "ds1"}},
	{CategoryPedal, "ProCo", "RAT", EffectDistortion, []string{"proco rat", "pro co rat", "rat distortion", "rat pedal"}},
	{CategoryPedal, "Electro-Harmonix", "Big Muff", EffectFuzz, []string{"big muff"}},
	{CategoryPedal, "Dallas Arbiter", "Fuzz Face", EffectFuzz, []string{"fuzz face"}},
	{CategoryPedal, "Dunlop", "Cry Baby", EffectWah, []string{"cry baby", "crybaby"}},
	{CategoryPedal, "MXR", "Dyna Comp", EffectCompressor, []string{"dyna comp", "dynacomp"}},
	{CategoryPedal, "Keeley", "Compressor", EffectCompressor, []string{"keeley compressor"}},
	{CategoryPedal, "MXR", "Phase 90", EffectModulation, []string{"phase 90"}},
	{CategoryPedal, "Boss", "CE-2 Chorus", EffectModulation, []string{"ce-2"}},
	{CategoryPedal, "Shin-ei", "Uni-Vibe", EffectModulation, []string{"uni-vibe", "univibe"}},
	{CategoryPedal, "DigiTech", "Whammy", EffectPitch, []string{"whammy"}},
	{CategoryPedal, "TC Electronic", "Flashback", EffectDelay, []string{"flashback"}},
	{CategoryPedal, "Boss", "DD-3", EffectDelay, []string{"dd-3"}},
	{CategoryPedal, "Boss", "DM-2", EffectDelay, []string{"dm-2"}},
	{CategoryPedal, "Electro-Harmonix", "Memory Man", EffectDelay, []string{"memory man"}},
	{CategoryPedal, "Strymon", "Timeline", EffectDelay, []string{"strymon timeline"}},
	{CategoryPedal, "Strymon", "BigSky", EffectReverb, []string{"bigsky", "big sky"}},
	{CategoryPedal, "Boss", "RV-6", EffectReverb, []string{"rv-6"}},
}

type brand struct {
	Name string
	Kind Category
}

// brands maps a normalized brand to its display name and the category it mostly makes.
var brands = map[string]brand{
	"fender":             {"Fender", CategoryGuitar},
	"gibson":             {"Gibson", CategoryGuitar},
	"prs":                {"PRS", CategoryGuitar},
	"ibanez":             {"Ibanez", CategoryGuitar},
	"esp":                {"ESP", CategoryGuitar},
	"gretsch":            {"Gretsch", CategoryGuitar},
	"rickenbacker":       {"Rickenbacker", CategoryGuitar},
	"music man":          {"Music Man", CategoryGuitar},
	"evh":                {"EVH", CategoryGuitar},
	"marshall":           {"Marshall", CategoryAmp},
	"vox":                {"Vox", CategoryAmp},
	"orange":             {"Orange", CategoryAmp},
	"mesa boogie":        {"Mesa Boogie", CategoryAmp},
	"mesa":               {"Mesa Boogie", CategoryAmp},
	"peavey":             {"Peavey", CategoryAmp},
	"friedman":           {"Friedman", CategoryAmp},
	"diezel":             {"Diezel", CategoryAmp},
	"soldano":            {"Soldano", CategoryAmp},
	"bogner":             {"Bogner", CategoryAmp},
	"dumble":             {"Dumble", CategoryAmp},
	"two-rock":           {"Two-Rock", CategoryAmp},
	"hiwatt":             {"Hiwatt", CategoryAmp},
	"roland":             {"Roland", CategoryAmp},
	"boss":               {"Boss", CategoryPedal},
	"mxr":                {"MXR", CategoryPedal},
	"electro-harmonix":   {"Electro-Harmonix", CategoryPedal},
	"ehx":                {"Electro-Harmonix", CategoryPedal},
	"strymon":            {"Strymon", CategoryPedal},
	"walrus audio":       {"Walrus Audio", CategoryPedal},
	"earthquaker":        {"EarthQuaker Devices", CategoryPedal},
	"jhs":                {"JHS", CategoryPedal},
	"fulltone":           {"Fulltone", CategoryPedal},
	"way huge":           {"Way Huge", CategoryPedal},
	"klon":               {"Klon", CategoryPedal},
	"dunlop":             {"Dunlop", CategoryPedal},
	"tc electronic":      {"TC Electronic", CategoryPedal},
	"keeley":             {"Keeley", CategoryPedal},
	"digitech":           {"DigiTech", CategoryPedal},
	"analogman":          {"Analogman", CategoryPedal},
	"xotic":              {"Xotic", CategoryPedal},
	"proco":              {"ProCo", CategoryPedal},
	"dallas arbiter":     {"Dallas Arbiter", CategoryPedal},
	"electro harmonix":   {"Electro-Harmonix", CategoryPedal},
	"paul cochrane":      {"Paul Cochrane", CategoryPedal},
	"shin-ei":            {"Shin-ei", CategoryPedal},
	"universal audio":    {"Universal Audio", CategoryOther},
	"kemper":             {"Kemper", CategoryOther},
	"fractal audio":      {"Fractal Audio", CategoryOther},
	"line 6":             {"Line 6", CategoryOther},
	"neural dsp":         {"Neural DSP", CategoryOther},
	"ernie ball":         {"Ernie Ball", CategoryOther},
	"d'addario":          {"D'Addario", CategoryOther},
	"daddario":           {"D'Addario", CategoryOther},
	"shure":              {"Shure", CategoryOther},
	"sennheiser":         {"Sennheiser", CategoryOther},
	"fender custom shop": {"Fender", CategoryGuitar},
}

// brandNames holds the brand keys longest first so multi-word brands win over prefixes.
var brandNames = func() []string {
	names := make([]string, 0, len(brands))
	for k := range brands {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	return names
}()

var effectKeywords = []struct {
	keyword string
	effect  string
}{
	{"compressor", EffectCompressor},
	{"comp", EffectCompressor},
	{"wah", EffectWah},
	{"overdrive", EffectOverdrive},
	{"screamer", EffectOverdrive},
	{"drive", EffectOverdrive},
	{"boost", EffectOverdrive},
	{"booster", EffectOverdrive},
	{"distortion", EffectDistortion},
	{"fuzz", EffectFuzz},
	{"muff", EffectFuzz},
	{"chorus", EffectModulation},
	{"phaser", EffectModulation},
	{"phase", EffectModulation},
	{"flanger", EffectModulation},
	{"vibe", EffectModulation},
	{"tremolo", EffectModulation},
	{"octave", EffectPitch},
	{"pitch", EffectPitch},
	{"whammy", EffectPitch},
	{"delay", EffectDelay},
	{"echo", EffectDelay},
	{"reverb", EffectReverb},
}

var fenderAmpWords = []string{"reverb", "twin", "deluxe", "bassman", "champ", "princeton", "vibrolux", "amp", "hot rod"}

// MatchKey lowercases s and reduces it to letter, digit and hyphen words separated by single spaces.
func MatchKey(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(mapped), " ")
}

func containsPhrase(haystack, phrase string) bool {
	return strings.Contains(" "+haystack+" ", " "+phrase+" ")
}

// LookupName resolves a free-form gear name ("Ibanez Tube Screamer") to a catalog entry.
func LookupName(name string) (CatalogEntry, bool) {
	key := MatchKey(name)
	if key == "" {
		return CatalogEntry{}, false
	}
	for _, e := range catalog {
		if key == MatchKey(e.Name()) {
			return e, true
		}
	}
	for _, e := range catalog {
		for _, alias := range e.Aliases {
			if containsPhrase(key, alias) {
				return e, true
			}
		}
	}
	return CatalogEntry{}, false
}

// Mention is one catalog entry found in free text, with its byte offset in the match key.
type Mention struct {
	Entry  CatalogEntry
	Offset int
}

// FindMentions returns catalog entries mentioned in text ordered by first occurrence.
// Each entry is reported once.
func FindMentions(text string) []Mention {
	key := " " + MatchKey(text) + " "
	var out []Mention
	for _, e := range catalog {
		best := -1
		for _, alias := range e.Aliases {
			if idx := strings.Index(key, " "+alias+" "); idx >= 0 && (best < 0 || idx < best) {
				best = idx
			}
		}
		if best >= 0 {
			out = append(out, Mention{Entry: e, Offset: best})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	return out
}

// SplitBrand separates a leading known brand from a gear name: "Marshall JCM900" -> ("Marshall", "JCM900").
func SplitBrand(name string) (string, string, bool) {
	key := MatchKey(name)
	for _, b := range brandNames {
		if key == b || strings.HasPrefix(key, b+" ") {
			words := len(strings.Fields(b))
			fields := strings.Fields(strings.TrimSpace(name))
			if len(fields) < words {
				return brands[b].Name, "", true
			}
			return brands[b].Name, strings.Join(fields[words:], " "), true
		}
	}
	return "", name, false
}

// Classify guesses the category of a make/model pair.
func Classify(make, model string) Category {
	if e, ok := LookupName(make + " " + model); ok {
		return e.Kind
	}
	modelKey := MatchKey(model)
	if b, ok := brands[MatchKey(make)]; ok {
		if b.Name == "Fender" {
			for _, w := range fenderAmpWords {
				if containsPhrase(modelKey, w) {
					return CategoryAmp
				}
			}
		}
		return b.Kind
	}
	switch {
	case containsPhrase(modelKey, "amp") || containsPhrase(modelKey, "amplifier") || containsPhrase(modelKey, "head"):
		return CategoryAmp
	case containsPhrase(modelKey, "pedal") || EffectFor(make, model, "") != EffectOther:
		return CategoryPedal
	case containsPhrase(modelKey, "guitar"):
		return CategoryGuitar
	}
	return CategoryOther
}

// EffectFor returns the pedal effect type for a make/model, consulting the note as a fallback.
func EffectFor(make, model, note string) string {
	if e, ok := LookupName(make + " " + model); ok && e.Effect != "" {
		return e.Effect
	}
	for _, text := range []string{model, note} {
		key := MatchKey(text)
		for _, kw := range effectKeywords {
			if containsPhrase(key, kw.keyword) {
				return kw.effect
			}
		}
	}
	return EffectOther
}

// Canonicalize maps a claim onto its catalog spelling so that differently worded claims
// about the same product group together. Year, note and settings are preserved.
func Canonicalize(kind Category, c Claim) Claim {
	e, ok := LookupName(c.Name())
	if !ok || e.Kind != kind {
		if name, _, found := SplitBrand(c.Make); found {
			c.Make = name
		}
		return c
	}
	c.Make = e.Make
	c.Model = e.Model
	if c.EffectType == "" {
		c.EffectType = e.Effect
	}
	return c
}
