package gear

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuery is returned for inbound queries that can never produce a result.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrIncompleteResult marks a synthesized result that violates the completeness
	// post-condition. It is an internal defect and is never returned partially filled.
	ErrIncompleteResult = errors.New("incomplete gear result")
)

type gearList struct {
	name  string
	items []GearItem
}

// Validate checks the structural completeness of a synthesized result.
func (r *GearResult) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil result", ErrIncompleteResult)
	}

	lists := []gearList{
		{"guitars", r.Guitars},
		{"amps", r.Amps},
		{"pedals", r.Pedals},
	}
	for _, l := range lists {
		if len(l.items) == 0 {
			return fmt.Errorf("%w: %s is empty", ErrIncompleteResult, l.name)
		}
	}
	for _, l := range append(lists, gearList{"other", r.Other}) {
		for i, it := range l.items {
			if it.Make == "" && it.Model == "" {
				return fmt.Errorf("%w: %s[%d] has no make or model", ErrIncompleteResult, l.name, i)
			}
			if it.Confidence < 0 || it.Confidence > 100 {
				return fmt.Errorf("%w: %s[%d] confidence %d out of range", ErrIncompleteResult, l.name, i, it.Confidence)
			}
			if it.Tier == "" || len(it.Sources) == 0 {
				return fmt.Errorf("%w: %s[%d] missing tier or sources", ErrIncompleteResult, l.name, i)
			}
		}
	}

	if len(r.SignalChain) < 2 {
		return fmt.Errorf("%w: signal chain has %d entries", ErrIncompleteResult, len(r.SignalChain))
	}
	for i, e := range r.SignalChain {
		if e.Position != i+1 || e.Item == "" {
			return fmt.Errorf("%w: signal chain entry %d malformed", ErrIncompleteResult, i)
		}
	}

	for _, knob := range Knobs {
		v := *r.AmpSettings.Knob(knob)
		if v < 1 || v > 10 {
			return fmt.Errorf("%w: amp setting %s = %d", ErrIncompleteResult, knob, v)
		}
	}
	if r.AmpSettings.Notes == "" || r.AmpSettings.Origin == "" {
		return fmt.Errorf("%w: amp settings notes or origin missing", ErrIncompleteResult)
	}

	if r.Context == "" {
		return fmt.Errorf("%w: context narrative missing", ErrIncompleteResult)
	}
	if r.ConfidenceScore < 0 || r.ConfidenceScore > 100 {
		return fmt.Errorf("%w: confidence score %d out of range", ErrIncompleteResult, r.ConfidenceScore)
	}
	return nil
}
