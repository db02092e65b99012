// Package synthesis turns an evidence set into a complete, scored gear result. It is pure:
// identical evidence sets always produce identical results.
package synthesis

import (
	"sort"

	"go.uber.org/zap"

	"github.com/gear-detector/backend/internal/gear"
	"github.com/gear-detector/backend/pkg/logger"
)

const (
	signatureConfidence = 65
	profileConfidence   = 60
	genericConfidence   = 50

	// inferenceScoreWeight is the weight of a gap-filled item in the overall score.
	inferenceScoreWeight = 0.25
	// unbackedScoreCap bounds the overall score of a result with no evidence-backed item.
	unbackedScoreCap = 69
)

type Synthesizer struct {
	logger *zap.Logger
}

func New() *Synthesizer {
	return &Synthesizer{logger: logger.Named("synthesis")}
}

// Synthesize builds the gear result for set. A nil set is treated as empty. The only error
// is ErrIncompleteResult, which signals a defect rather than bad input.
func (s *Synthesizer) Synthesize(set *gear.EvidenceSet) (*gear.GearResult, error) {
	if set == nil {
		set = &gear.EvidenceSet{}
	}

	groups := buildGroups(set.Items)
	result := &gear.GearResult{
		Guitars:          []gear.GearItem{},
		Amps:             []gear.GearItem{},
		Pedals:           []gear.GearItem{},
		Other:            []gear.GearItem{},
		Conflicts:        []gear.Conflict{},
		SourcesConsulted: len(set.Reports),
		SourcesSucceeded: set.Succeeded(),
	}

	var (
		ampWinner *group
		pedals    []resolved
	)
	for _, sl := range slots(groups) {
		r := sl.resolve()
		result.Conflicts = append(result.Conflicts, r.conflicts...)
		switch r.kind {
		case gear.CategoryGuitar:
			result.Guitars = append(result.Guitars, r.items...)
		case gear.CategoryAmp:
			ampWinner = r.winner
			result.Amps = append(result.Amps, r.items...)
		case gear.CategoryPedal:
			pedals = append(pedals, r)
		default:
			result.Other = append(result.Other, r.items...)
		}
	}
	sort.SliceStable(result.Other, func(i, j int) bool { return result.Other[i].Confidence > result.Other[j].Confidence })
	pedals = orderPedals(pedals)
	for _, r := range pedals {
		result.Pedals = append(result.Pedals, r.items...)
	}

	prof, _ := profileFor(set.Context)
	result.Guitars = fill(result.Guitars, gear.CategoryGuitar, set.Context, prof)
	result.Amps = fill(result.Amps, gear.CategoryAmp, set.Context, prof)
	result.Pedals = fill(result.Pedals, gear.CategoryPedal, set.Context, prof)

	result.AmpSettings = ampSettings(ampWinner, result.Amps[0], prof)
	result.SignalChain = signalChain(result, pedals)
	result.ConfidenceScore = overallScore(result, groups)
	result.Context = narrative(set, result, prof)

	if err := result.Validate(); err != nil {
		s.logger.Error("Synthesized result is incomplete", zap.String("query", set.Query.String()), zap.Error(err))
		return nil, err
	}

	s.logger.Debug("Synthesis completed",
		zap.String("query", set.Query.String()),
		zap.Int("groups", len(groups)),
		zap.Int("conflicts", len(result.Conflicts)),
		zap.Int("confidence", result.ConfidenceScore),
	)
	return result, nil
}
