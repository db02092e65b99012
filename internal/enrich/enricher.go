// Package enrich builds artist-level context (genre, era, career span, signature gear)
// that the synthesizer uses for inference. Absence is a normal outcome.
package enrich

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gear-detector/backend/internal/gear"
	"github.com/gear-detector/backend/pkg/config"
	"github.com/gear-detector/backend/pkg/logger"
)

type Metadata struct {
	Genres      []string
	BeginYear   int
	ActiveYears string
	Notes       string
	KnownGear   []gear.KnownGear
}

// Provider is a remote metadata lookup. A nil result with a nil error means "not found".
type Provider interface {
	Name() string
	Fetch(ctx context.Context, artist string) (*Metadata, error)
}

type Enricher struct {
	kb        KnowledgeBase
	providers []Provider
}

func New(providers ...Provider) *Enricher {
	return &Enricher{providers: providers}
}

// NewFromConfig returns the static enricher, or one that also queries MusicBrainz and
// Wikipedia in network mode.
func NewFromConfig(cfg config.EnricherConfig, client *http.Client) *Enricher {
	if cfg.Mode != "network" {
		return New()
	}
	return New(
		NewMusicBrainz("", client, nil),
		NewWikipedia("", client),
	)
}

func (e *Enricher) Enrich(ctx context.Context, artist string) (*gear.ArtistContext, error) {
	results := make([]*Metadata, len(e.providers))

	var g errgroup.Group
	for i, p := range e.providers {
		g.Go(func() error {
			md, err := p.Fetch(ctx, artist)
			if err != nil {
				logger.Debug("Enrichment provider failed",
					zap.String("provider", p.Name()),
					zap.String("artist", artist),
					zap.Error(err),
				)
				return nil
			}
			results[i] = md
			return nil
		})
	}
	_ = g.Wait()

	var merged []*Metadata
	if md, ok := e.kb.Lookup(artist); ok {
		merged = append(merged, md)
	}
	for _, md := range results {
		if md != nil {
			merged = append(merged, md)
		}
	}
	if len(merged) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, nil
	}

	ac := &gear.ArtistContext{Artist: artist}
	begin := 0
	for _, md := range merged {
		if ac.Genre == "" && len(md.Genres) > 0 {
			ac.Genre = md.Genres[0]
		}
		if begin == 0 && md.BeginYear > 0 {
			begin = md.BeginYear
		}
		if ac.ActiveYears == "" && md.ActiveYears != "" {
			ac.ActiveYears = md.ActiveYears
		}
		if ac.Notes == "" && md.Notes != "" {
			ac.Notes = md.Notes
		}
		if len(ac.KnownGear) == 0 && len(md.KnownGear) > 0 {
			ac.KnownGear = md.KnownGear
		}
	}
	if begin > 0 {
		ac.Era = gear.EraFor(begin).Label
		if ac.ActiveYears == "" {
			ac.ActiveYears = strconv.Itoa(begin) + "-present"
		}
	}

	logger.Debug("Artist context resolved",
		zap.String("artist", artist),
		zap.String("genre", ac.Genre),
		zap.Int("known_gear", len(ac.KnownGear)),
	)
	return ac, nil
}
