// Package sources holds the evidence adapters, one per data provider. Every adapter
// converts a query into evidence items or returns a *Failure; none of them panics or
// blocks past the deadline carried by its context.
package sources

import (
	"context"

	"github.com/gear-detector/backend/internal/gear"
)

type Adapter interface {
	Source() gear.SourceID
	Fetch(ctx context.Context, q gear.Query) ([]gear.EvidenceItem, error)
}

// Base raw confidence per provider, before mention-specific adjustments.
const (
	rawEquipboard = 85
	rawYouTube    = 80
	rawGearspace  = 70
	rawReddit     = 60
	rawWebSearch  = 60
	rawLLM        = 55
)

const maxItemsPerSource = 20
