package sources

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gear-detector/backend/internal/gear"
	"github.com/gear-detector/backend/pkg/utils"
)

// FixtureSet is a deterministic stand-in for the live providers, loaded from YAML:
//
//	fixtures:
//	  - artist: John Mayer
//	    song: Gravity
//	    evidence:
//	      equipboard:
//	        - {kind: guitar, make: Fender, model: Stratocaster, raw: 85}
//	    failures:
//	      reddit: rate_limited
//	    delays:
//	      youtube: 50ms
//
// An entry without a song applies to every song by the artist.
type FixtureSet struct {
	entries []fixtureEntry
}

type fixtureFile struct {
	Fixtures []fixtureEntry `yaml:"fixtures"`
}

type fixtureEntry struct {
	Artist   string                   `yaml:"artist"`
	Song     string                   `yaml:"song"`
	Evidence map[string][]fixtureItem `yaml:"evidence"`
	Failures map[string]string        `yaml:"failures"`
	Delays   map[string]time.Duration `yaml:"delays"`
}

type fixtureItem struct {
	Kind       string         `yaml:"kind"`
	Make       string         `yaml:"make"`
	Model      string         `yaml:"model"`
	Year       *int           `yaml:"year"`
	Note       string         `yaml:"note"`
	EffectType string         `yaml:"effect_type"`
	Settings   map[string]int `yaml:"settings"`
	Raw        int            `yaml:"raw"`
	Text       string         `yaml:"text"`
}

func LoadFixtures(path string) (*FixtureSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures: %w", err)
	}
	return ParseFixtures(data)
}

func ParseFixtures(data []byte) (*FixtureSet, error) {
	var f fixtureFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixtures: %w", err)
	}
	for i, e := range f.Fixtures {
		if utils.NormalizeText(e.Artist) == "" {
			return nil, fmt.Errorf("fixture %d: artist is required", i)
		}
		for source, kind := range e.Failures {
			if _, ok := fixtureFailures[kind]; !ok {
				return nil, fmt.Errorf("fixture %d: unknown failure %q for %s", i, kind, source)
			}
		}
		for source, items := range e.Evidence {
			for j, it := range items {
				if !gear.Category(it.Kind).Valid() {
					return nil, fmt.Errorf("fixture %d: %s item %d has invalid kind %q", i, source, j, it.Kind)
				}
			}
		}
	}
	return &FixtureSet{entries: f.Fixtures}, nil
}

var fixtureFailures = map[string]error{
	"timeout":        ErrTimeout,
	"rate_limited":   ErrRateLimited,
	"upstream_error": ErrUpstream,
	"no_data":        ErrNoData,
	"not_configured": ErrNotConfigured,
	"panic":          nil,
}

// Adapter returns the stand-in for one provider.
func (s *FixtureSet) Adapter(source gear.SourceID) *Fixture {
	return &Fixture{source: source, set: s}
}

func (s *FixtureSet) match(q gear.Query) *fixtureEntry {
	artist := utils.NormalizeText(q.Artist)
	song := utils.NormalizeText(q.Song)
	var fallback *fixtureEntry
	for i := range s.entries {
		e := &s.entries[i]
		if utils.NormalizeText(e.Artist) != artist {
			continue
		}
		entrySong := utils.NormalizeText(e.Song)
		if entrySong == song {
			return e
		}
		if entrySong == "" && fallback == nil {
			fallback = e
		}
	}
	return fallback
}

type Fixture struct {
	source gear.SourceID
	set    *FixtureSet
}

func (f *Fixture) Source() gear.SourceID {
	return f.source
}

func (f *Fixture) Fetch(ctx context.Context, q gear.Query) ([]gear.EvidenceItem, error) {
	e := f.set.match(q)
	if e == nil {
		return nil, nil
	}

	if d := e.Delays[string(f.source)]; d > 0 {
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fail(f.source, ErrTimeout, ctx.Err())
		case <-timer.C:
		}
	}

	if kind, ok := e.Failures[string(f.source)]; ok {
		if kind == "panic" {
			panic(fmt.Sprintf("fixture %s: simulated adapter crash", f.source))
		}
		return nil, fail(f.source, fixtureFailures[kind], nil)
	}

	raw := e.Evidence[string(f.source)]
	items := make([]gear.EvidenceItem, 0, len(raw))
	for _, it := range raw {
		kind := gear.Category(it.Kind)
		claim := gear.Canonicalize(kind, gear.Claim{
			Make:       it.Make,
			Model:      it.Model,
			Year:       it.Year,
			Note:       it.Note,
			EffectType: it.EffectType,
			Settings:   validSettings(it.Settings),
		})
		if kind == gear.CategoryPedal && claim.EffectType == "" {
			claim.EffectType = gear.EffectFor(claim.Make, claim.Model, claim.Note)
		}
		text := it.Text
		if text == "" {
			text = claim.Name()
		}
		items = append(items, gear.EvidenceItem{
			Source:         f.source,
			Kind:           kind,
			Claim:          claim,
			RawConfidence:  max(0, min(it.Raw, 100)),
			SupportingText: text,
		})
	}
	return items, nil
}
