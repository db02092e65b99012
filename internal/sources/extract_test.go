package sources

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gear-detector/backend/internal/gear"
)

func TestExtractEvidence(t *testing.T) {
	text := "He played his 1963 Stratocaster through a Twin Reverb with gain on 4 and treble at 7. " +
		"A Klon Centaur pushed the front end, and a Marshall JCM900 sat in the corner."

	items := ExtractEvidence(gear.SourceGearspace, text, 70)

	type summary struct {
		Kind   gear.Category
		Name   string
		Effect string
	}
	var got []summary
	for _, it := range items {
		got = append(got, summary{it.Kind, it.Claim.Name(), it.Claim.EffectType})
		if it.Source != gear.SourceGearspace || it.RawConfidence != 70 {
			t.Errorf("item %s has source %s raw %d", it.Claim.Name(), it.Source, it.RawConfidence)
		}
		if it.SupportingText == "" {
			t.Errorf("item %s has no supporting text", it.Claim.Name())
		}
	}
	want := []summary{
		{gear.CategoryGuitar, "Fender Stratocaster", ""},
		{gear.CategoryAmp, "Fender Twin Reverb", ""},
		{gear.CategoryPedal, "Klon Centaur", gear.EffectOverdrive},
		{gear.CategoryAmp, "Marshall JCM900", ""},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ExtractEvidence (-want +got):\n%s", diff)
	}

	if items[0].Claim.Year == nil || *items[0].Claim.Year != 1963 {
		t.Errorf("strat year = %v, want 1963", items[0].Claim.Year)
	}
	if diff := cmp.Diff(map[string]int{"gain": 4, "treble": 7}, items[1].Claim.Settings); diff != "" {
		t.Errorf("amp settings (-want +got):\n%s", diff)
	}
}

func TestExtractSettingsIgnoresOutOfRange(t *testing.T) {
	got := ExtractSettings("Bass at 12, mids around 5, presence: 0, Treble 8")
	want := map[string]int{"middle": 5, "treble": 8}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ExtractSettings (-want +got):\n%s", diff)
	}
	if ExtractSettings("no knobs here") != nil {
		t.Error("expected nil settings")
	}
}

func TestMergeDocumentsRanksRepeatedMentions(t *testing.T) {
	docs := []string{
		"Using a Les Paul and a Big Muff.",
		"That Big Muff is everywhere on the record.",
		"Big Muff into a Plexi.",
	}
	items := mergeDocuments(gear.SourceReddit, docs, 60, 75)
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}
	if items[0].Claim.Model != "Big Muff" {
		t.Errorf("top item = %s, want Big Muff", items[0].Claim.Name())
	}
	if items[0].RawConfidence != 70 {
		t.Errorf("Big Muff raw = %d, want 70", items[0].RawConfidence)
	}
	if items[1].Claim.Model != "Les Paul" || items[1].RawConfidence != 60 {
		t.Errorf("second item = %s raw %d", items[1].Claim.Name(), items[1].RawConfidence)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("  short   text ", 50); got != "short text" {
		t.Errorf("truncate = %q", got)
	}
	long := "one two three four five six seven eight nine ten"
	got := truncate(long, 20)
	if len(got) > 23 || got[len(got)-3:] != "..." {
		t.Errorf("truncate(long) = %q", got)
	}
}
