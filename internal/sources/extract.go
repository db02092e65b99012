package sources

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jdkato/prose/v2"

	"github.com/gear-detector/backend/internal/gear"
)

const maxSupportingText = 300

var (
	// brandModelRe catches "<known brand> <Model>" pairs the catalog does not list, e.g. "Marshall JCM900".
	brandModelRe = regexp.MustCompile(`\b(?i:(fender|gibson|prs|ibanez|esp|gretsch|marshall|vox|orange|mesa boogie|mesa|peavey|friedman|soldano|bogner|boss|mxr|electro-harmonix|ehx|strymon|fulltone|keeley|digitech|dunlop|jhs|walrus audio))\s+([A-Z0-9][\w\-]*(?:\s+[A-Z0-9][\w\-]*)?)`)

	knobRe = regexp.MustCompile(`(?i)\b(gain|drive|bass|low|mids?|middle|treble|high|presence|reverb)\b\s*(?:on|at|set to|around|:|=)?\s*(\d{1,2})\b`)

	yearRe = regexp.MustCompile(`^(19[5-9]\d|20[0-2]\d)$`)
)

var stopModels = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "is": true, "in": true,
	"on": true, "i": true, "a": true, "amp": true, "amps": true, "guitar": true,
	"guitars": true, "pedal": true, "pedals": true,
}

var knobAliases = map[string]string{
	"gain":     "gain",
	"drive":    "gain",
	"bass":     "bass",
	"low":      "bass",
	"mid":      "middle",
	"mids":     "middle",
	"middle":   "middle",
	"treble":   "treble",
	"high":     "treble",
	"presence": "presence",
	"reverb":   "reverb",
}

// Sentences splits text with prose's segmenter, falling back to the whole text.
func Sentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return []string{text}
	}
	var out []string
	for _, s := range doc.Sentences() {
		if t := strings.TrimSpace(s.Text); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return []string{text}
	}
	return out
}

// ExtractEvidence finds gear mentions in free text and turns each distinct one into an
// evidence item with the given raw confidence. Items keep first-mention order.
func ExtractEvidence(source gear.SourceID, text string, raw int) []gear.EvidenceItem {
	var items []gear.EvidenceItem
	seen := make(map[string]bool)

	add := func(kind gear.Category, claim gear.Claim, sentence string) {
		key := string(kind) + "|" + gear.MatchKey(claim.Name())
		if seen[key] {
			return
		}
		seen[key] = true
		items = append(items, gear.EvidenceItem{
			Source:         source,
			Kind:           kind,
			Claim:          claim,
			RawConfidence:  raw,
			SupportingText: truncate(sentence, maxSupportingText),
		})
	}

	for _, sentence := range Sentences(text) {
		for _, m := range gear.FindMentions(sentence) {
			claim := gear.Claim{
				Make:       m.Entry.Make,
				Model:      m.Entry.Model,
				EffectType: m.Entry.Effect,
				Year:       yearBefore(sentence, m.Offset),
			}
			add(m.Entry.Kind, claim, sentence)
		}
		for _, match := range brandModelRe.FindAllStringSubmatch(sentence, -1) {
			brand, _, ok := gear.SplitBrand(match[1])
			if !ok {
				continue
			}
			model := strings.TrimSpace(match[2])
			if stopModels[strings.ToLower(strings.Fields(model)[0])] {
				continue
			}
			if _, known := gear.LookupName(brand + " " + model); known {
				continue
			}
			kind := gear.Classify(brand, model)
			claim := gear.Claim{Make: brand, Model: model}
			if kind == gear.CategoryPedal {
				claim.EffectType = gear.EffectFor(brand, model, sentence)
			}
			add(kind, claim, sentence)
		}
	}

	if settings := ExtractSettings(text); len(settings) > 0 {
		for i := range items {
			if items[i].Kind == gear.CategoryAmp {
				items[i].Claim.Settings = settings
				break
			}
		}
	}

	if len(items) > maxItemsPerSource {
		items = items[:maxItemsPerSource]
	}
	return items
}

// ExtractSettings reads "gain on 6" style knob mentions; values outside 1-10 are ignored.
func ExtractSettings(text string) map[string]int {
	out := make(map[string]int)
	for _, m := range knobRe.FindAllStringSubmatch(text, -1) {
		knob := knobAliases[strings.ToLower(m[1])]
		v, err := strconv.Atoi(m[2])
		if err != nil || v < 1 || v > 10 {
			continue
		}
		if _, dup := out[knob]; !dup {
			out[knob] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// yearBefore returns a model year written directly before a mention ("1963 Stratocaster").
func yearBefore(sentence string, offset int) *int {
	key := " " + gear.MatchKey(sentence) + " "
	if offset <= 0 || offset > len(key) {
		return nil
	}
	words := strings.Fields(key[:offset])
	if len(words) == 0 {
		return nil
	}
	last := words[len(words)-1]
	if !yearRe.MatchString(last) {
		return nil
	}
	y, _ := strconv.Atoi(last)
	return &y
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	if i := strings.LastIndexByte(cut, ' '); i > n/2 {
		cut = cut[:i]
	}
	return cut + "..."
}

// rankByMentions orders items by how many documents mentioned them, keeping first-seen
// order among equals, and lifts raw confidence slightly for repeated mentions.
func rankByMentions(items []gear.EvidenceItem, counts map[string]int, cap int) []gear.EvidenceItem {
	sort.SliceStable(items, func(i, j int) bool {
		return counts[mentionKey(items[i])] > counts[mentionKey(items[j])]
	})
	for i := range items {
		n := counts[mentionKey(items[i])]
		if n > 1 {
			items[i].RawConfidence = min(items[i].RawConfidence+5*(n-1), cap)
		}
	}
	if len(items) > maxItemsPerSource {
		items = items[:maxItemsPerSource]
	}
	return items
}

func mentionKey(it gear.EvidenceItem) string {
	return string(it.Kind) + "|" + gear.MatchKey(it.Claim.Name())
}

// mergeDocuments extracts evidence from several documents, counting the documents that
// mention each item.
func mergeDocuments(source gear.SourceID, docs []string, raw, cap int) []gear.EvidenceItem {
	var merged []gear.EvidenceItem
	counts := make(map[string]int)
	for _, doc := range docs {
		for _, it := range ExtractEvidence(source, doc, raw) {
			key := mentionKey(it)
			if counts[key] == 0 {
				merged = append(merged, it)
			}
			counts[key]++
		}
	}
	return rankByMentions(merged, counts, cap)
}
