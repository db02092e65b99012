// Package aggregator fans a query out to every source adapter and the context enricher,
// each under its own deadline, and joins whatever comes back into one EvidenceSet.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gear-detector/backend/internal/gear"
	"github.com/gear-detector/backend/internal/metrics"
	"github.com/gear-detector/backend/internal/sources"
	"github.com/gear-detector/backend/pkg/logger"
)

const (
	DefaultSourceTimeout   = 30 * time.Second
	DefaultEnricherTimeout = 20 * time.Second
)

type Enricher interface {
	Enrich(ctx context.Context, artist string) (*gear.ArtistContext, error)
}

type Config struct {
	SourceTimeout   time.Duration
	Timeouts        map[gear.SourceID]time.Duration
	EnricherTimeout time.Duration
}

func (c Config) timeoutFor(source gear.SourceID) time.Duration {
	if d, ok := c.Timeouts[source]; ok && d > 0 {
		return d
	}
	if c.SourceTimeout > 0 {
		return c.SourceTimeout
	}
	return DefaultSourceTimeout
}

type Aggregator struct {
	adapters []sources.Adapter
	enricher Enricher
	cfg      Config
	logger   *zap.Logger
}

// New copies the adapter list; later changes to the caller's slice do not affect it.
// enricher may be nil.
func New(adapters []sources.Adapter, enricher Enricher, cfg Config) *Aggregator {
	if cfg.EnricherTimeout <= 0 {
		cfg.EnricherTimeout = DefaultEnricherTimeout
	}
	return &Aggregator{
		adapters: append([]sources.Adapter(nil), adapters...),
		enricher: enricher,
		cfg:      cfg,
		logger:   logger.Named("aggregator"),
	}
}

func (a *Aggregator) Sources() []gear.SourceID {
	ids := make([]gear.SourceID, len(a.adapters))
	for i, ad := range a.adapters {
		ids[i] = ad.Source()
	}
	return ids
}

type leg struct {
	items  []gear.EvidenceItem
	report gear.SourceReport
}

// Aggregate never fails: every adapter outcome is folded into the returned set, which is
// empty when all sources fail.
func (a *Aggregator) Aggregate(ctx context.Context, q gear.Query) *gear.EvidenceSet {
	start := time.Now()
	legs := make([]leg, len(a.adapters))
	var artist *gear.ArtistContext

	var g errgroup.Group
	for i, ad := range a.adapters {
		g.Go(func() error {
			legs[i] = a.runSource(ctx, ad, q)
			return nil
		})
	}
	if a.enricher != nil {
		g.Go(func() error {
			artist = a.runEnricher(ctx, q.Artist)
			return nil
		})
	}
	_ = g.Wait()

	set := &gear.EvidenceSet{
		Query:   q,
		Status:  make(map[gear.SourceID]gear.SourceStatus, len(legs)),
		Reports: make([]gear.SourceReport, 0, len(legs)),
		Context: artist,
	}
	for _, l := range legs {
		set.Items = append(set.Items, l.items...)
		set.Status[l.report.Source] = l.report.Status
		set.Reports = append(set.Reports, l.report)
	}

	metrics.AggregationDuration.Observe(time.Since(start).Seconds())
	a.logger.Info("Aggregation completed",
		zap.String("query", q.String()),
		zap.Int("items", len(set.Items)),
		zap.Int("sources", len(legs)),
		zap.Int("succeeded", set.Succeeded()),
		zap.Bool("context", artist != nil),
		zap.Duration("elapsed", time.Since(start)),
	)
	return set
}

func (a *Aggregator) runSource(ctx context.Context, ad sources.Adapter, q gear.Query) leg {
	source := ad.Source()
	start := time.Now()

	items, outcome, err := call(ctx, a.cfg.timeoutFor(source), func(ctx context.Context) ([]gear.EvidenceItem, error) {
		return ad.Fetch(ctx, q)
	})

	report := gear.SourceReport{Source: source, Elapsed: time.Since(start)}
	switch {
	case outcome == outcomeTimedOut || (err != nil && errors.Is(err, sources.ErrTimeout)):
		report.Status = gear.StatusTimedOut
	case outcome == outcomeCanceled || (err != nil && sources.Skippable(err)):
		report.Status = gear.StatusSkipped
	case err != nil:
		report.Status = gear.StatusFailed
	default:
		report.Status = gear.StatusSucceeded
	}
	if err != nil {
		report.Error = err.Error()
	} else if outcome == outcomeTimedOut {
		report.Error = fmt.Sprintf("no response within %s", a.cfg.timeoutFor(source))
	}

	var kept []gear.EvidenceItem
	if report.Status == gear.StatusSucceeded {
		kept = sanitize(source, items)
		report.Items = len(kept)
	}

	metrics.SourceOutcomes.WithLabelValues(string(source), string(report.Status)).Inc()
	metrics.SourceDuration.WithLabelValues(string(source)).Observe(report.Elapsed.Seconds())
	if report.Status == gear.StatusSucceeded {
		metrics.SourceItems.WithLabelValues(string(source)).Observe(float64(report.Items))
	}

	fields := []zap.Field{
		zap.String("source", string(source)),
		zap.String("status", string(report.Status)),
		zap.Int("items", report.Items),
		zap.Duration("elapsed", report.Elapsed),
	}
	if report.Status == gear.StatusSucceeded || report.Status == gear.StatusSkipped {
		a.logger.Debug("Source finished", append(fields, zap.String("error", report.Error))...)
	} else {
		a.logger.Warn("Source did not contribute", append(fields, zap.String("kind", sources.Kind(err)), zap.String("error", report.Error))...)
	}
	return leg{items: kept, report: report}
}

func (a *Aggregator) runEnricher(ctx context.Context, artist string) *gear.ArtistContext {
	ac, outcome, err := call(ctx, a.cfg.EnricherTimeout, func(ctx context.Context) (*gear.ArtistContext, error) {
		return a.enricher.Enrich(ctx, artist)
	})

	status := "found"
	switch {
	case outcome == outcomeTimedOut:
		status = "timed_out"
	case err != nil:
		status = "failed"
	case ac == nil:
		status = "absent"
	}
	metrics.EnrichmentTotal.WithLabelValues(status).Inc()

	if status != "found" {
		a.logger.Debug("Artist context unavailable", zap.String("artist", artist), zap.String("status", status), zap.Error(err))
		return nil
	}
	return ac
}

// sanitize stamps items with the adapter's source and drops items the synthesizer cannot use.
func sanitize(source gear.SourceID, items []gear.EvidenceItem) []gear.EvidenceItem {
	out := make([]gear.EvidenceItem, 0, len(items))
	for _, it := range items {
		if !it.Kind.Valid() || (it.Claim.Make == "" && it.Claim.Model == "") {
			continue
		}
		it.Source = source
		it.RawConfidence = max(0, min(it.RawConfidence, 100))
		out = append(out, it)
	}
	return out
}
