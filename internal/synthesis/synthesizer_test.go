package synthesis

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gear-detector/backend/internal/gear"
)

func ev(source gear.SourceID, kind gear.Category, brand, model string, raw int) gear.EvidenceItem {
	return gear.EvidenceItem{Source: source, Kind: kind, Claim: gear.Claim{Make: brand, Model: model}, RawConfidence: raw}
}

func evidence(items ...gear.EvidenceItem) *gear.EvidenceSet {
	set := &gear.EvidenceSet{
		Query:  gear.Query{Artist: "John Mayer", Song: "Gravity", Year: gear.IntPtr(2006)},
		Items:  items,
		Status: map[gear.SourceID]gear.SourceStatus{},
	}
	seen := map[gear.SourceID]bool{}
	for _, it := range items {
		if !seen[it.Source] {
			seen[it.Source] = true
			set.Status[it.Source] = gear.StatusSucceeded
			set.Reports = append(set.Reports, gear.SourceReport{Source: it.Source, Status: gear.StatusSucceeded})
		}
	}
	return set
}

func synthesize(t *testing.T, set *gear.EvidenceSet) *gear.GearResult {
	t.Helper()
	r, err := New().Synthesize(set)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	return r
}

func allItems(r *gear.GearResult) []gear.GearItem {
	var out []gear.GearItem
	for _, l := range [][]gear.GearItem{r.Guitars, r.Amps, r.Pedals, r.Other} {
		out = append(out, l...)
	}
	return out
}

func TestEmptyEvidenceIsComplete(t *testing.T) {
	for name, set := range map[string]*gear.EvidenceSet{
		"nil":   nil,
		"empty": evidence(),
	} {
		t.Run(name, func(t *testing.T) {
			r := synthesize(t, set)
			if len(r.Guitars) != 1 || len(r.Amps) != 1 || len(r.Pedals) != 1 {
				t.Fatalf("lists = %d/%d/%d", len(r.Guitars), len(r.Amps), len(r.Pedals))
			}
			for _, it := range allItems(r) {
				if it.Tier != gear.TierInferred || it.Confidence != genericConfidence {
					t.Errorf("item %s = %d %s", it.Name(), it.Confidence, it.Tier)
				}
				if diff := cmp.Diff([]gear.SourceID{gear.SourceInference}, it.Sources); diff != "" {
					t.Errorf("sources (-want +got):\n%s", diff)
				}
			}
			if r.AmpSettings.Origin != gear.SettingsInferred {
				t.Errorf("settings origin = %s", r.AmpSettings.Origin)
			}
			if r.ConfidenceScore > unbackedScoreCap {
				t.Errorf("score = %d", r.ConfidenceScore)
			}
			if len(r.SignalChain) != 3 || r.Context == "" {
				t.Errorf("chain = %+v, context = %q", r.SignalChain, r.Context)
			}
		})
	}
}

func TestCorroboratedGuitarIsConfirmed(t *testing.T) {
	set := evidence(
		ev(gear.SourceYouTube, gear.CategoryGuitar, "Fender", "Strat", 80),
		ev(gear.SourceEquipboard, gear.CategoryGuitar, "Fender", "Stratocaster", 85),
	)
	r := synthesize(t, set)

	g := r.Guitars[0]
	if g.Name() != "Fender Stratocaster" {
		t.Fatalf("guitar = %q", g.Name())
	}
	if g.Confidence < 90 || g.Tier != gear.TierConfirmed {
		t.Errorf("confidence = %d tier = %s", g.Confidence, g.Tier)
	}
	if diff := cmp.Diff([]gear.SourceID{gear.SourceEquipboard, gear.SourceYouTube}, g.Sources); diff != "" {
		t.Errorf("sources (-want +got):\n%s", diff)
	}
	if len(r.Conflicts) != 0 {
		t.Errorf("conflicts = %+v", r.Conflicts)
	}
}

func TestSingleSourceCannotConfirm(t *testing.T) {
	r := synthesize(t, evidence(
		ev(gear.SourceEquipboard, gear.CategoryGuitar, "Fender", "Stratocaster", 100),
		ev(gear.SourceEquipboard, gear.CategoryGuitar, "Fender", "Strat", 100),
	))
	if r.Guitars[0].Tier == gear.TierConfirmed {
		t.Errorf("one source reached %s at %d", r.Guitars[0].Tier, r.Guitars[0].Confidence)
	}
}

func TestConflictDropsWeakAlternative(t *testing.T) {
	r := synthesize(t, evidence(
		ev(gear.SourceYouTube, gear.CategoryAmp, "Fender", "Twin Reverb", 80),
		ev(gear.SourceWebSearch, gear.CategoryAmp, "Vox", "AC30", 60),
	))

	if r.Amps[0].Name() != "Fender Twin Reverb" {
		t.Fatalf("top amp = %q", r.Amps[0].Name())
	}
	if len(r.Amps) != 1 {
		t.Errorf("amps = %+v", r.Amps)
	}
	if len(r.Conflicts) != 1 {
		t.Fatalf("conflicts = %+v", r.Conflicts)
	}
	if c := r.Conflicts[0]; c.Gear != "Fender Twin Reverb vs Vox AC30" || !strings.Contains(c.Resolution, "dropped at 40") {
		t.Errorf("conflict = %+v", c)
	}
}

func TestAlternativeFloorAppliesToScaledConfidence(t *testing.T) {
	// the AC30 scores 56 on its own but only 37 after scaling by its weight share
	r := synthesize(t, evidence(
		ev(gear.SourceEquipboard, gear.CategoryAmp, "Fender", "Twin Reverb", 80),
		ev(gear.SourceReddit, gear.CategoryAmp, "Vox", "AC30", 60),
	))

	if len(r.Amps) != 1 || r.Amps[0].Name() != "Fender Twin Reverb" {
		t.Errorf("amps = %+v", r.Amps)
	}
	if len(r.Conflicts) != 1 || !strings.HasSuffix(r.Conflicts[0].Resolution, "dropped at 37") {
		t.Errorf("conflicts = %+v", r.Conflicts)
	}
}

func TestConflictKeepsStrongAlternative(t *testing.T) {
	r := synthesize(t, evidence(
		ev(gear.SourceYouTube, gear.CategoryAmp, "Fender", "Twin Reverb", 80),
		ev(gear.SourceGearspace, gear.CategoryAmp, "Vox", "AC30", 90),
	))

	if len(r.Amps) != 2 || r.Amps[0].Name() != "Fender Twin Reverb" {
		t.Fatalf("amps = %+v", r.Amps)
	}
	alt := r.Amps[1]
	if alt.Confidence < alternativeFloor || alt.Confidence >= 82 {
		t.Errorf("alternative confidence = %d", alt.Confidence)
	}
	if alt.Notes != "Alternative to Fender Twin Reverb" {
		t.Errorf("alternative notes = %q", alt.Notes)
	}
	if r.SignalChain[len(r.SignalChain)-1].Item != "Fender Twin Reverb" {
		t.Errorf("chain = %+v", r.SignalChain)
	}
}

func TestConflictTieBreaksOnPriority(t *testing.T) {
	r := synthesize(t, evidence(
		ev(gear.SourceWebSearch, gear.CategoryGuitar, "Gibson", "Les Paul", 60),
		ev(gear.SourceReddit, gear.CategoryGuitar, "Fender", "Telecaster", 60),
	))
	if r.Guitars[0].Name() != "Fender Telecaster" {
		t.Errorf("winner = %q; reddit outranks websearch", r.Guitars[0].Name())
	}
}

func TestPedalsOfDifferentEffectsDoNotConflict(t *testing.T) {
	r := synthesize(t, evidence(
		ev(gear.SourceEquipboard, gear.CategoryGuitar, "PRS", "Silver Sky", 85),
		ev(gear.SourceEquipboard, gear.CategoryPedal, "Boss", "DD-3", 85),
		ev(gear.SourceEquipboard, gear.CategoryPedal, "Klon", "Centaur", 85),
		ev(gear.SourceEquipboard, gear.CategoryPedal, "Acme", "Gizmo", 85),
		ev(gear.SourceGearspace, gear.CategoryPedal, "MXR", "Dyna Comp", 70),
		ev(gear.SourceGearspace, gear.CategoryPedal, "Widget", "Box", 70),
		ev(gear.SourceEquipboard, gear.CategoryAmp, "Dumble", "Overdrive Special", 85),
	))

	if len(r.Conflicts) != 0 {
		t.Errorf("conflicts = %+v", r.Conflicts)
	}

	var chain []string
	for i, e := range r.SignalChain {
		if e.Position != i+1 {
			t.Errorf("position %d at index %d", e.Position, i)
		}
		chain = append(chain, e.Item)
	}
	want := []string{
		"PRS Silver Sky",
		"MXR Dyna Comp",
		"Klon Centaur",
		"Boss DD-3",
		"Acme Gizmo",
		"Widget Box",
		"Dumble Overdrive Special",
	}
	if diff := cmp.Diff(want, chain); diff != "" {
		t.Errorf("signal chain (-want +got):\n%s", diff)
	}
	if r.Pedals[0].Type != gear.EffectCompressor {
		t.Errorf("first pedal type = %q", r.Pedals[0].Type)
	}
}

func TestOtherGearDoesNotConflict(t *testing.T) {
	r := synthesize(t, evidence(
		ev(gear.SourceYouTube, gear.CategoryOther, "Ernie Ball", "Slinky", 80),
		ev(gear.SourceEquipboard, gear.CategoryOther, "Dunlop", "Jazz III", 85),
	))

	if len(r.Conflicts) != 0 {
		t.Errorf("conflicts = %+v", r.Conflicts)
	}
	var names []string
	for _, it := range r.Other {
		names = append(names, it.Name())
		if strings.Contains(strings.ToLower(it.Notes), "alternative") {
			t.Errorf("%s marked as alternative: %q", it.Name(), it.Notes)
		}
	}
	if diff := cmp.Diff([]string{"Dunlop Jazz III", "Ernie Ball Slinky"}, names); diff != "" {
		t.Errorf("other gear (-want +got):\n%s", diff)
	}
}

func TestAmpSettingsFromEvidence(t *testing.T) {
	a := ev(gear.SourceYouTube, gear.CategoryAmp, "Two-Rock", "Custom Reverb", 80)
	a.Claim.Settings = map[string]int{"gain": 4, "bass": 6}
	b := ev(gear.SourceGearspace, gear.CategoryAmp, "Two Rock", "", 70)
	b.Claim.Settings = map[string]int{"gain": 5, "treble": 7, "volume": 9}
	loser := ev(gear.SourceReddit, gear.CategoryAmp, "Marshall", "JCM800", 40)
	loser.Claim.Settings = map[string]int{"gain": 10, "middle": 10, "presence": 10, "reverb": 10}

	r := synthesize(t, evidence(a, b, loser))
	if r.Amps[0].Name() != "Two-Rock Custom Reverb" {
		t.Fatalf("amp = %q", r.Amps[0].Name())
	}

	got := r.AmpSettings
	got.Notes = ""
	want := gear.AmpSettings{Gain: 5, Bass: 6, Middle: 5, Treble: 7, Presence: 5, Reverb: 3, Origin: gear.SettingsMixed}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("settings (-want +got):\n%s", diff)
	}
	if !strings.Contains(r.AmpSettings.Notes, "3 of 6 knobs") {
		t.Errorf("notes = %q", r.AmpSettings.Notes)
	}
}

func TestInferenceFromArtistContext(t *testing.T) {
	set := evidence()
	set.Context = &gear.ArtistContext{
		Artist: "John Mayer",
		Genre:  "Blues Rock",
		KnownGear: []gear.KnownGear{
			{Kind: gear.CategoryGuitar, Make: "Fender", Model: "Stratocaster", Note: "1964"},
			{Kind: gear.CategoryAmp, Make: "Dumble", Model: "Overdrive Special"},
		},
	}
	r := synthesize(t, set)

	if g := r.Guitars[0]; g.Name() != "Fender Stratocaster" || g.Confidence != signatureConfidence {
		t.Errorf("guitar = %+v", g)
	}
	if a := r.Amps[0]; a.Name() != "Dumble Overdrive Special" || a.Confidence != signatureConfidence {
		t.Errorf("amp = %+v", a)
	}
	// no signature pedal, so the blues profile fills in
	if p := r.Pedals[0]; p.Name() != "Ibanez TS808 Tube Screamer" || p.Confidence != profileConfidence || p.Type != gear.EffectOverdrive {
		t.Errorf("pedal = %+v", p)
	}
	if r.ConfidenceScore > unbackedScoreCap {
		t.Errorf("score = %d", r.ConfidenceScore)
	}
	for _, it := range allItems(r) {
		if it.Tier != gear.TierInferred {
			t.Errorf("%s tier = %s", it.Name(), it.Tier)
		}
	}
}

func TestInferenceFromGenreProfile(t *testing.T) {
	set := evidence(ev(gear.SourceEquipboard, gear.CategoryGuitar, "Fender", "Jaguar", 85))
	set.Context = &gear.ArtistContext{Artist: "Nirvana", Genre: "Grunge"}
	r := synthesize(t, set)

	if r.Guitars[0].Name() != "Fender Jaguar" || r.Guitars[0].Tier == gear.TierInferred {
		t.Errorf("guitar = %+v", r.Guitars[0])
	}
	if a := r.Amps[0]; a.Name() != "Mesa Boogie Mark IV" || a.Confidence != profileConfidence {
		t.Errorf("amp = %+v", a)
	}
	if r.AmpSettings.Gain != 7 || r.AmpSettings.Origin != gear.SettingsInferred {
		t.Errorf("settings = %+v", r.AmpSettings)
	}
}

func TestConfidenceBounds(t *testing.T) {
	r := synthesize(t, evidence(
		ev(gear.SourceEquipboard, gear.CategoryGuitar, "Gibson", "Les Paul", 250),
		ev(gear.SourceYouTube, gear.CategoryGuitar, "Gibson", "Les Paul", 100),
		ev(gear.SourceLLM, gear.CategoryAmp, "Marshall", "", -40),
		ev("forum", gear.CategoryOther, "Ernie Ball", "Slinky", 0),
	))
	for _, it := range allItems(r) {
		if it.Confidence < 0 || it.Confidence > 100 {
			t.Errorf("%s confidence = %d", it.Name(), it.Confidence)
		}
	}
	if r.ConfidenceScore < 0 || r.ConfidenceScore > 100 {
		t.Errorf("score = %d", r.ConfidenceScore)
	}
	// clamped raw values still leave room below 100 without a year
	if g := r.Guitars[0]; g.Confidence != 99 || g.Tier != gear.TierConfirmed {
		t.Errorf("maxed guitar = %d %s", g.Confidence, g.Tier)
	}
}

func TestDeterministic(t *testing.T) {
	build := func() *gear.EvidenceSet {
		amp := ev(gear.SourceGearspace, gear.CategoryAmp, "Fender", "Deluxe Reverb", 70)
		amp.Claim.Settings = map[string]int{"gain": 3, "reverb": 4}
		set := evidence(
			ev(gear.SourceReddit, gear.CategoryGuitar, "Gibson", "ES-335", 60),
			ev(gear.SourceWebSearch, gear.CategoryGuitar, "Fender", "Telecaster", 60),
			ev(gear.SourceGraph, gear.CategoryGuitar, "Fender", "Telecaster", 50),
			amp,
			ev(gear.SourceLLM, gear.CategoryAmp, "Vox", "AC30", 55),
			ev(gear.SourceYouTube, gear.CategoryPedal, "Ibanez", "Tube Screamer", 80),
			ev(gear.SourceReddit, gear.CategoryPedal, "Klon", "Centaur", 60),
			ev(gear.SourceEquipboard, gear.CategoryOther, "Ernie Ball", "Slinky", 85),
		)
		set.Context = &gear.ArtistContext{Artist: "John Mayer", Genre: "Blues Rock", Era: "2000s boutique era"}
		return set
	}

	first := synthesize(t, build())
	for range 20 {
		if diff := cmp.Diff(first, synthesize(t, build())); diff != "" {
			t.Fatalf("results differ (-first +again):\n%s", diff)
		}
	}
}

func TestSourceCounts(t *testing.T) {
	set := evidence(ev(gear.SourceEquipboard, gear.CategoryGuitar, "Fender", "Stratocaster", 85))
	set.Reports = append(set.Reports,
		gear.SourceReport{Source: gear.SourceReddit, Status: gear.StatusTimedOut},
		gear.SourceReport{Source: gear.SourceYouTube, Status: gear.StatusSkipped},
	)
	r := synthesize(t, set)
	if r.SourcesConsulted != 3 || r.SourcesSucceeded != 1 {
		t.Errorf("consulted = %d succeeded = %d", r.SourcesConsulted, r.SourcesSucceeded)
	}
	if !strings.Contains(r.Context, "1 of 3 sources returned evidence") {
		t.Errorf("context = %q", r.Context)
	}
}
