package sources

import (
	"context"
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/gear-detector/backend/internal/gear"
	"github.com/gear-detector/backend/internal/llm"
)

const llmMaxRaw = 70

type GearExtractor interface {
	ExtractGear(ctx context.Context, q gear.Query) ([]llm.GearClaim, error)
}

// LLM asks a language model for recording-specific gear. Its raw confidence is capped so a
// model answer alone never outranks a curated source.
type LLM struct {
	extractor GearExtractor
}

func NewLLM(extractor GearExtractor) *LLM {
	return &LLM{extractor: extractor}
}

func (l *LLM) Source() gear.SourceID {
	return gear.SourceLLM
}

func (l *LLM) Fetch(ctx context.Context, q gear.Query) ([]gear.EvidenceItem, error) {
	if l.extractor == nil {
		return nil, fail(gear.SourceLLM, ErrNotConfigured, nil)
	}

	claims, err := l.extractor.ExtractGear(ctx, q)
	if err != nil {
		return nil, llmFailure(ctx, err)
	}

	items := make([]gear.EvidenceItem, 0, len(claims))
	for _, c := range claims {
		kind := gear.Category(c.Category)
		if !kind.Valid() {
			kind = gear.Classify(c.Make, c.Model)
		}
		claim := gear.Canonicalize(kind, gear.Claim{
			Make:       c.Make,
			Model:      c.Model,
			Year:       c.Year,
			Note:       c.Note,
			EffectType: c.EffectType,
			Settings:   validSettings(c.Settings),
		})
		if kind == gear.CategoryPedal && claim.EffectType == "" {
			claim.EffectType = gear.EffectFor(claim.Make, claim.Model, claim.Note)
		}

		raw := c.Confidence
		if raw == 0 {
			raw = rawLLM
		}
		items = append(items, gear.EvidenceItem{
			Source:         gear.SourceLLM,
			Kind:           kind,
			Claim:          claim,
			RawConfidence:  min(raw, llmMaxRaw),
			SupportingText: c.Note,
		})
		if len(items) == maxItemsPerSource {
			break
		}
	}
	return items, nil
}

func validSettings(in map[string]int) map[string]int {
	var out map[string]int
	for _, knob := range gear.Knobs {
		if v, ok := in[knob]; ok && v >= 1 && v <= 10 {
			if out == nil {
				out = make(map[string]int)
			}
			out[knob] = v
		}
	}
	return out
}

func llmFailure(ctx context.Context, err error) error {
	if Skippable(err) {
		return err
	}
	if ctx.Err() != nil {
		return fail(gear.SourceLLM, ErrTimeout, err)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return &Failure{Source: gear.SourceLLM, Kind: ErrRateLimited, Status: apiErr.HTTPStatusCode, Err: err}
		case apiErr.HTTPStatusCode != 0:
			return &Failure{Source: gear.SourceLLM, Kind: ErrUpstream, Status: apiErr.HTTPStatusCode, Err: err}
		}
	}
	return fail(gear.SourceLLM, ErrUpstream, err)
}
