// Package query runs one search end to end: cache check, aggregation, synthesis, cache
// write. Each call is a single linear pass.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gear-detector/backend/internal/cache"
	"github.com/gear-detector/backend/internal/gear"
	"github.com/gear-detector/backend/internal/metrics"
	"github.com/gear-detector/backend/internal/storage/models"
	"github.com/gear-detector/backend/pkg/logger"
)

type Stage string

const (
	StageStart      Stage = "start"
	StageCacheCheck Stage = "cache_check"
	StageCacheHit   Stage = "cache_hit"
	StageCacheMiss  Stage = "cache_miss"
	StageAggregate  Stage = "aggregate"
	StageSynthesize Stage = "synthesize"
	StageCacheWrite Stage = "cache_write"
	StageReturn     Stage = "return"
)

type Event struct {
	SearchID  string `json:"search_id"`
	Stage     Stage  `json:"stage"`
	Message   string `json:"message"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

// Progress observes stage transitions. It is called synchronously on the search goroutine.
type Progress func(Event)

type Aggregator interface {
	Aggregate(ctx context.Context, q gear.Query) *gear.EvidenceSet
}

type Synthesizer interface {
	Synthesize(set *gear.EvidenceSet) (*gear.GearResult, error)
}

type HistoryRecorder interface {
	RecordSearch(ctx context.Context, record *models.SearchRecord, data []models.SourceData) error
}

type GraphRecorder interface {
	RecordResult(ctx context.Context, q gear.Query, r *gear.GearResult) error
}

type Response struct {
	SearchID  string              `json:"search_id"`
	Query     gear.Query          `json:"query"`
	Result    *gear.GearResult    `json:"result"`
	Cached    bool                `json:"cached"`
	Sources   []gear.SourceReport `json:"sources,omitempty"`
	LatencyMS int                 `json:"latency_ms"`
}

const DefaultTTL = 90 * 24 * time.Hour

type Engine struct {
	aggregator  Aggregator
	synthesizer Synthesizer
	store       cache.Store
	history     HistoryRecorder
	graph       GraphRecorder
	ttl         time.Duration
	logger      *zap.Logger
}

type Option func(*Engine)

func WithHistory(h HistoryRecorder) Option { return func(e *Engine) { e.history = h } }

func WithGraph(g GraphRecorder) Option { return func(e *Engine) { e.graph = g } }

func WithTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl > 0 {
			e.ttl = ttl
		}
	}
}

// NewEngine wires the pipeline. store may be nil, in which case every search is a miss.
func NewEngine(agg Aggregator, synth Synthesizer, store cache.Store, opts ...Option) *Engine {
	e := &Engine{
		aggregator:  agg,
		synthesizer: synth,
		store:       store,
		ttl:         DefaultTTL,
		logger:      logger.Named("query"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Search(ctx context.Context, q gear.Query, progress Progress) (*Response, error) {
	if err := q.Validate(); err != nil {
		metrics.QueryTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	start := time.Now()
	searchID := uuid.New().String()
	emit := func(stage Stage, msg string) {
		if progress != nil {
			progress(Event{SearchID: searchID, Stage: stage, Message: msg, ElapsedMS: time.Since(start).Milliseconds()})
		}
	}

	log := e.logger.With(zap.String("search_id", searchID), zap.String("query", q.String()))
	log.Info("Processing search")
	emit(StageStart, "Search started")

	key := cache.Key(q)
	emit(StageCacheCheck, "Checking result cache")
	if cached, ok := e.lookup(ctx, key, log); ok {
		emit(StageCacheHit, "Returning cached result")
		resp := &Response{SearchID: searchID, Query: q, Result: cached, Cached: true, LatencyMS: sinceMS(start)}
		e.record(ctx, resp, key, nil, log)
		e.finish(resp, "hit", start)
		emit(StageReturn, "Search complete")
		return resp, nil
	}
	emit(StageCacheMiss, "No cached result")

	emit(StageAggregate, "Querying sources")
	set := e.aggregator.Aggregate(ctx, q)

	emit(StageSynthesize, fmt.Sprintf("Synthesizing %d evidence items from %d sources", len(set.Items), set.Succeeded()))
	result, err := e.synthesizer.Synthesize(set)
	if err != nil {
		metrics.QueryTotal.WithLabelValues("error").Inc()
		log.Error("Synthesis failed", zap.Error(err))
		return nil, fmt.Errorf("failed to synthesize result: %w", err)
	}
	metrics.ConfidenceScore.Observe(float64(result.ConfidenceScore))

	emit(StageCacheWrite, "Caching result")
	if e.store != nil {
		if err := e.store.Put(ctx, key, result, e.ttl); err != nil {
			metrics.CacheErrors.WithLabelValues(e.store.Name(), "put").Inc()
			log.Warn("Cache write failed", zap.String("backend", e.store.Name()), zap.Error(err))
		}
	}

	resp := &Response{
		SearchID:  searchID,
		Query:     q,
		Result:    result,
		Sources:   set.Reports,
		LatencyMS: sinceMS(start),
	}
	e.record(ctx, resp, key, set, log)
	e.finish(resp, "miss", start)
	emit(StageReturn, "Search complete")
	return resp, nil
}

// lookup treats every cache failure as a miss.
func (e *Engine) lookup(ctx context.Context, key string, log *zap.Logger) (*gear.GearResult, bool) {
	if e.store == nil {
		return nil, false
	}
	name := e.store.Name()
	result, ok, err := e.store.Get(ctx, key)
	if err != nil {
		metrics.CacheErrors.WithLabelValues(name, "get").Inc()
		log.Warn("Cache read failed, continuing without cache", zap.String("backend", name), zap.Error(err))
		return nil, false
	}
	if !ok {
		metrics.CacheMisses.WithLabelValues(name).Inc()
		return nil, false
	}
	metrics.CacheHits.WithLabelValues(name).Inc()
	return result, true
}

// record persists the search and, for fresh results, the raw evidence and the gear graph.
// Failures are logged only.
func (e *Engine) record(ctx context.Context, resp *Response, key string, set *gear.EvidenceSet, log *zap.Logger) {
	ctx = context.WithoutCancel(ctx)

	if e.history != nil {
		rec := &models.SearchRecord{
			ID:              resp.SearchID,
			Artist:          resp.Query.Artist,
			Song:            resp.Query.Song,
			Year:            resp.Query.Year,
			CacheKey:        key,
			CacheHit:        resp.Cached,
			ConfidenceScore: resp.Result.ConfidenceScore,
			LatencyMS:       resp.LatencyMS,
			CreatedAt:       time.Now(),
		}
		var data []models.SourceData
		if set != nil {
			rec.SourcesConsulted = len(set.Reports)
			rec.SourcesSucceeded = set.Succeeded()
			data = sourceData(set)
		}
		if err := e.history.RecordSearch(ctx, rec, data); err != nil {
			log.Warn("Failed to record search history", zap.Error(err))
		}
	}

	if e.graph != nil && set != nil {
		if err := e.graph.RecordResult(ctx, resp.Query, resp.Result); err != nil {
			log.Warn("Failed to record gear graph", zap.Error(err))
		}
	}
}

func sourceData(set *gear.EvidenceSet) []models.SourceData {
	bySource := make(map[gear.SourceID][]gear.EvidenceItem)
	for _, it := range set.Items {
		bySource[it.Source] = append(bySource[it.Source], it)
	}

	data := make([]models.SourceData, 0, len(set.Reports))
	for _, r := range set.Reports {
		items := bySource[r.Source]
		if items == nil {
			items = []gear.EvidenceItem{}
		}
		payload, _ := json.Marshal(items)
		data = append(data, models.SourceData{
			Source:    string(r.Source),
			Status:    string(r.Status),
			ItemCount: r.Items,
			Items:     string(payload),
			Error:     r.Error,
			ElapsedMS: int(r.Elapsed.Milliseconds()),
		})
	}
	return data
}

func (e *Engine) finish(resp *Response, path string, start time.Time) {
	metrics.QueryDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	metrics.QueryTotal.WithLabelValues(path).Inc()

	e.logger.Info("Search processed successfully",
		zap.String("search_id", resp.SearchID),
		zap.Bool("cached", resp.Cached),
		zap.Int("confidence", resp.Result.ConfidenceScore),
		zap.Int("latency_ms", resp.LatencyMS),
	)
}

func sinceMS(start time.Time) int {
	return int(time.Since(start).Milliseconds())
}
