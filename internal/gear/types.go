// Package gear holds the data model shared by the aggregation, synthesis and cache layers.
package gear

import (
	"time"
)

type SourceID string

const (
	SourceEquipboard SourceID = "equipboard"
	SourceYouTube    SourceID = "youtube"
	SourceGearspace  SourceID = "gearspace"
	SourceReddit     SourceID = "reddit"
	SourceWebSearch  SourceID = "websearch"
	SourceGraph      SourceID = "graph"
	SourceLLM        SourceID = "llm"

	// SourceInference tags items filled in from artist context or genre defaults.
	SourceInference SourceID = "inference"
)

type Category string

const (
	CategoryGuitar Category = "guitar"
	CategoryAmp    Category = "amp"
	CategoryPedal  Category = "pedal"
	CategoryOther  Category = "other"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryGuitar, CategoryAmp, CategoryPedal, CategoryOther:
		return true
	}
	return false
}

// Claim is the structured gear descriptor carried by an evidence item.
type Claim struct {
	Make  string `json:"make"`
	Model string `json:"model,omitempty"`
	Year  *int   `json:"year,omitempty"`
	Note  string `json:"note,omitempty"`
	// EffectType is the pedal role (overdrive, delay, ...) when the source states it.
	EffectType string `json:"effect_type,omitempty"`
	// Settings holds amp knob positions on a 1-10 scale keyed by knob name.
	Settings map[string]int `json:"settings,omitempty"`
}

func (c Claim) Name() string {
	if c.Model == "" {
		return c.Make
	}
	if c.Make == "" {
		return c.Model
	}
	return c.Make + " " + c.Model
}

type EvidenceItem struct {
	Source         SourceID `json:"source"`
	Kind           Category `json:"kind"`
	Claim          Claim    `json:"claim"`
	RawConfidence  int      `json:"raw_confidence"`
	SupportingText string   `json:"supporting_text,omitempty"`
}

type SourceStatus string

const (
	StatusSucceeded SourceStatus = "succeeded"
	StatusTimedOut  SourceStatus = "timed_out"
	StatusFailed    SourceStatus = "failed"
	StatusSkipped   SourceStatus = "skipped"
)

// SourceReport is the per-leg outcome of one aggregation run.
type SourceReport struct {
	Source  SourceID      `json:"source"`
	Status  SourceStatus  `json:"status"`
	Items   int           `json:"items"`
	Error   string        `json:"error,omitempty"`
	Elapsed time.Duration `json:"elapsed_ns"`
}

// EvidenceSet is assembled once per query execution after every fan-out leg has joined.
// It is not modified after being handed to the synthesizer.
type EvidenceSet struct {
	Query   Query                     `json:"query"`
	Items   []EvidenceItem            `json:"items"`
	Status  map[SourceID]SourceStatus `json:"status"`
	Reports []SourceReport            `json:"reports"`
	Context *ArtistContext            `json:"context,omitempty"`
}

func (s *EvidenceSet) Succeeded() int {
	n := 0
	for _, r := range s.Reports {
		if r.Status == StatusSucceeded {
			n++
		}
	}
	return n
}

type KnownGear struct {
	Kind  Category `json:"kind"`
	Make  string   `json:"make"`
	Model string   `json:"model"`
	Note  string   `json:"note,omitempty"`
}

type ArtistContext struct {
	Artist      string      `json:"artist"`
	Genre       string      `json:"genre,omitempty"`
	Era         string      `json:"era,omitempty"`
	ActiveYears string      `json:"active_years,omitempty"`
	Notes       string      `json:"notes,omitempty"`
	KnownGear   []KnownGear `json:"known_gear,omitempty"`
}

type Tier string

const (
	TierConfirmed Tier = "confirmed"
	TierLikely    Tier = "likely"
	TierInferred  Tier = "inferred"
)

type GearItem struct {
	Make       string     `json:"make"`
	Model      string     `json:"model"`
	Year       *int       `json:"year,omitempty"`
	Type       string     `json:"type,omitempty"`
	Notes      string     `json:"notes"`
	Confidence int        `json:"confidence"`
	Tier       Tier       `json:"tier"`
	Sources    []SourceID `json:"sources"`
}

func (g GearItem) Name() string {
	return Claim{Make: g.Make, Model: g.Model}.Name()
}

type ChainEntry struct {
	Position int      `json:"position"`
	Type     Category `json:"type"`
	Item     string   `json:"item"`
}

const (
	SettingsFromEvidence = "evidence"
	SettingsMixed        = "mixed"
	SettingsInferred     = "inferred"
)

// AmpSettings knobs use a 1-10 scale; zero means unset and never leaves the synthesizer.
type AmpSettings struct {
	Gain     int    `json:"gain"`
	Bass     int    `json:"bass"`
	Middle   int    `json:"middle"`
	Treble   int    `json:"treble"`
	Presence int    `json:"presence"`
	Reverb   int    `json:"reverb"`
	Notes    string `json:"notes"`
	Origin   string `json:"origin"`
}

// Knobs lists the knob names in display order.
var Knobs = []string{"gain", "bass", "middle", "treble", "presence", "reverb"}

func (a *AmpSettings) Knob(name string) *int {
	switch name {
	case "gain":
		return &a.Gain
	case "bass":
		return &a.Bass
	case "middle":
		return &a.Middle
	case "treble":
		return &a.Treble
	case "presence":
		return &a.Presence
	case "reverb":
		return &a.Reverb
	}
	return nil
}

type Conflict struct {
	Gear       string `json:"gear"`
	Resolution string `json:"resolution"`
}

type GearResult struct {
	Guitars          []GearItem   `json:"guitars"`
	Amps             []GearItem   `json:"amps"`
	Pedals           []GearItem   `json:"pedals"`
	Other            []GearItem   `json:"other"`
	SignalChain      []ChainEntry `json:"signal_chain"`
	AmpSettings      AmpSettings  `json:"amp_settings"`
	Conflicts        []Conflict   `json:"conflicts"`
	Context          string       `json:"context"`
	ConfidenceScore  int          `json:"confidence_score"`
	SourcesConsulted int          `json:"sources_consulted"`
	SourcesSucceeded int          `json:"sources_succeeded"`
}

// Clone returns a deep copy so cached values cannot be mutated through a returned pointer.
func (r *GearResult) Clone() *GearResult {
	if r == nil {
		return nil
	}
	out := *r
	out.Guitars = cloneItems(r.Guitars)
	out.Amps = cloneItems(r.Amps)
	out.Pedals = cloneItems(r.Pedals)
	out.Other = cloneItems(r.Other)
	if r.SignalChain != nil {
		out.SignalChain = append(make([]ChainEntry, 0, len(r.SignalChain)), r.SignalChain...)
	}
	if r.Conflicts != nil {
		out.Conflicts = append(make([]Conflict, 0, len(r.Conflicts)), r.Conflicts...)
	}
	return &out
}

func cloneItems(items []GearItem) []GearItem {
	if items == nil {
		return nil
	}
	out := make([]GearItem, len(items))
	for i, it := range items {
		out[i] = it
		if it.Year != nil {
			y := *it.Year
			out[i].Year = &y
		}
		if it.Sources != nil {
			out[i].Sources = append(make([]SourceID, 0, len(it.Sources)), it.Sources...)
		}
	}
	return out
}

// Usage is gear an artist was previously recorded with, aggregated over songs.
type Usage struct {
	Kind       Category `json:"kind"`
	Make       string   `json:"make"`
	Model      string   `json:"model"`
	EffectType string   `json:"effect_type,omitempty"`
	Songs      int      `json:"songs"`
	Confidence int      `json:"confidence"`
}
