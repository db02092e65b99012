package synthesis

import (
	"github.com/gear-detector/backend/internal/gear"
)

// reliability lists sources highest priority first with their evidence weight.
var reliability = []struct {
	source gear.SourceID
	weight float64
}{
	{gear.SourceEquipboard, 0.90},
	{gear.SourceYouTube, 0.80},
	{gear.SourceGearspace, 0.70},
	{gear.SourceReddit, 0.60},
	{gear.SourceWebSearch, 0.60},
	{gear.SourceGraph, 0.55},
	{gear.SourceLLM, 0.50},
}

const unknownWeight = 0.50

func weight(source gear.SourceID) float64 {
	for _, r := range reliability {
		if r.source == source {
			return r.weight
		}
	}
	return unknownWeight
}

// rank is the priority position of source; lower is preferred and unknown sources sort last.
func rank(source gear.SourceID) int {
	for i, r := range reliability {
		if r.source == source {
			return i
		}
	}
	return len(reliability)
}
