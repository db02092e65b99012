package query

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/gear-detector/backend/internal/cache"
	"github.com/gear-detector/backend/internal/gear"
	"github.com/gear-detector/backend/internal/storage/models"
	"github.com/gear-detector/backend/internal/synthesis"
)

type fakeAggregator struct {
	mu    sync.Mutex
	calls int
	set   *gear.EvidenceSet
}

func (f *fakeAggregator) Aggregate(_ context.Context, q gear.Query) *gear.EvidenceSet {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	set := *f.set
	set.Query = q
	return &set
}

type failingSynthesizer struct{}

func (failingSynthesizer) Synthesize(*gear.EvidenceSet) (*gear.GearResult, error) {
	return nil, gear.ErrIncompleteResult
}

type brokenStore struct{ puts int }

func (*brokenStore) Name() string { return "broken" }

func (*brokenStore) Get(context.Context, string) (*gear.GearResult, bool, error) {
	return nil, false, errors.New("connection refused")
}

func (b *brokenStore) Put(context.Context, string, *gear.GearResult, time.Duration) error {
	b.puts++
	return errors.New("connection refused")
}

type fakeHistory struct {
	records []models.SearchRecord
	data    [][]models.SourceData
	err     error
}

func (f *fakeHistory) RecordSearch(_ context.Context, r *models.SearchRecord, d []models.SourceData) error {
	f.records = append(f.records, *r)
	f.data = append(f.data, d)
	return f.err
}

type fakeGraph struct{ results []*gear.GearResult }

func (f *fakeGraph) RecordResult(_ context.Context, _ gear.Query, r *gear.GearResult) error {
	f.results = append(f.results, r)
	return errors.New("graph offline")
}

func mayerQuery() gear.Query {
	return gear.Query{Artist: "John Mayer", Song: "Gravity", Year: gear.IntPtr(2006)}
}

func evidenceSet() *gear.EvidenceSet {
	return &gear.EvidenceSet{
		Items: []gear.EvidenceItem{
			{Source: gear.SourceEquipboard, Kind: gear.CategoryGuitar, Claim: gear.Claim{Make: "Fender", Model: "Stratocaster"}, RawConfidence: 85},
			{Source: gear.SourceYouTube, Kind: gear.CategoryGuitar, Claim: gear.Claim{Make: "Fender", Model: "Stratocaster"}, RawConfidence: 80},
			{Source: gear.SourceEquipboard, Kind: gear.CategoryAmp, Claim: gear.Claim{Make: "Two-Rock", Model: "Custom Reverb"}, RawConfidence: 70},
		},
		Status: map[gear.SourceID]gear.SourceStatus{
			gear.SourceEquipboard: gear.StatusSucceeded,
			gear.SourceYouTube:    gear.StatusSucceeded,
			gear.SourceReddit:     gear.StatusFailed,
		},
		Reports: []gear.SourceReport{
			{Source: gear.SourceEquipboard, Status: gear.StatusSucceeded, Items: 2, Elapsed: 300 * time.Millisecond},
			{Source: gear.SourceYouTube, Status: gear.StatusSucceeded, Items: 1, Elapsed: 500 * time.Millisecond},
			{Source: gear.SourceReddit, Status: gear.StatusFailed, Error: "reddit: rate_limited"},
		},
	}
}

func stages(events []Event) []Stage {
	var out []Stage
	for _, e := range events {
		out = append(out, e.Stage)
	}
	return out
}

func TestSearchMissThenHit(t *testing.T) {
	ctx := context.Background()
	agg := &fakeAggregator{set: evidenceSet()}
	store := cache.NewMemory(nil)
	e := NewEngine(agg, synthesis.New(), store)

	var events []Event
	first, err := e.Search(ctx, mayerQuery(), func(ev Event) { events = append(events, ev) })
	if err != nil {
		t.Fatalf("first Search: %v", err)
	}
	if first.Cached || first.SearchID == "" || len(first.Sources) != 3 {
		t.Errorf("first response = %+v", first)
	}
	if g := first.Result.Guitars; len(g) != 1 || g[0].Tier != gear.TierConfirmed {
		t.Errorf("guitars = %+v", g)
	}
	wantStages := []Stage{StageStart, StageCacheCheck, StageCacheMiss, StageAggregate, StageSynthesize, StageCacheWrite, StageReturn}
	if diff := cmp.Diff(wantStages, stages(events)); diff != "" {
		t.Errorf("miss stages (-want +got):\n%s", diff)
	}
	for _, ev := range events {
		if ev.SearchID != first.SearchID {
			t.Errorf("event %s carries search id %q", ev.Stage, ev.SearchID)
		}
	}

	events = nil
	second, err := e.Search(ctx, gear.Query{Artist: " john  MAYER ", Song: "gravity", Year: gear.IntPtr(2006)}, func(ev Event) { events = append(events, ev) })
	if err != nil {
		t.Fatalf("second Search: %v", err)
	}
	if !second.Cached || second.SearchID == first.SearchID {
		t.Errorf("second response = %+v", second)
	}
	if agg.calls != 1 {
		t.Errorf("aggregator called %d times", agg.calls)
	}
	if diff := cmp.Diff(first.Result, second.Result); diff != "" {
		t.Errorf("cached result (-want +got):\n%s", diff)
	}
	wantStages = []Stage{StageStart, StageCacheCheck, StageCacheHit, StageReturn}
	if diff := cmp.Diff(wantStages, stages(events)); diff != "" {
		t.Errorf("hit stages (-want +got):\n%s", diff)
	}
}

func TestSearchDifferentYearIsSeparateEntry(t *testing.T) {
	agg := &fakeAggregator{set: evidenceSet()}
	e := NewEngine(agg, synthesis.New(), cache.NewMemory(nil))

	_, _ = e.Search(context.Background(), mayerQuery(), nil)
	_, _ = e.Search(context.Background(), gear.Query{Artist: "John Mayer", Song: "Gravity"}, nil)
	if agg.calls != 2 {
		t.Errorf("aggregator called %d times", agg.calls)
	}
}

func TestSearchInvalidQuery(t *testing.T) {
	agg := &fakeAggregator{set: evidenceSet()}
	e := NewEngine(agg, synthesis.New(), cache.NewMemory(nil))

	called := false
	_, err := e.Search(context.Background(), gear.Query{Artist: "  ", Song: "Gravity"}, func(Event) { called = true })
	if !errors.Is(err, gear.ErrInvalidQuery) {
		t.Fatalf("err = %v", err)
	}
	if agg.calls != 0 || called {
		t.Error("invalid query reached the pipeline")
	}
}

func TestSearchCacheErrorsDegradeToMiss(t *testing.T) {
	agg := &fakeAggregator{set: evidenceSet()}
	store := &brokenStore{}
	e := NewEngine(agg, synthesis.New(), store)

	resp, err := e.Search(context.Background(), mayerQuery(), nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Cached || resp.Result == nil || store.puts != 1 {
		t.Errorf("resp = %+v, puts = %d", resp, store.puts)
	}
}

func TestSearchWithoutCache(t *testing.T) {
	agg := &fakeAggregator{set: evidenceSet()}
	e := NewEngine(agg, synthesis.New(), nil)

	for i := 0; i < 2; i++ {
		if _, err := e.Search(context.Background(), mayerQuery(), nil); err != nil {
			t.Fatalf("Search: %v", err)
		}
	}
	if agg.calls != 2 {
		t.Errorf("aggregator called %d times", agg.calls)
	}
}

func TestSearchSynthesisFailureIsNotCached(t *testing.T) {
	store := cache.NewMemory(nil)
	e := NewEngine(&fakeAggregator{set: evidenceSet()}, failingSynthesizer{}, store)

	_, err := e.Search(context.Background(), mayerQuery(), nil)
	if !errors.Is(err, gear.ErrIncompleteResult) {
		t.Fatalf("err = %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("cache holds %d entries", store.Len())
	}
}

func TestSearchRecordsHistoryAndGraph(t *testing.T) {
	history := &fakeHistory{err: errors.New("disk full")}
	graph := &fakeGraph{}
	e := NewEngine(&fakeAggregator{set: evidenceSet()}, synthesis.New(), cache.NewMemory(nil),
		WithHistory(history), WithGraph(graph), WithTTL(time.Hour))

	first, err := e.Search(context.Background(), mayerQuery(), nil)
	if err != nil {
		t.Fatalf("Search with failing recorders: %v", err)
	}
	if _, err := e.Search(context.Background(), mayerQuery(), nil); err != nil {
		t.Fatalf("cached Search: %v", err)
	}

	if len(history.records) != 2 {
		t.Fatalf("history records = %d", len(history.records))
	}
	miss, hit := history.records[0], history.records[1]
	if miss.ID != first.SearchID || miss.CacheHit || miss.SourcesConsulted != 3 || miss.SourcesSucceeded != 2 {
		t.Errorf("miss record = %+v", miss)
	}
	if miss.CacheKey != cache.Key(mayerQuery()) || *miss.Year != 2006 {
		t.Errorf("miss record key/year = %q %v", miss.CacheKey, miss.Year)
	}
	if !hit.CacheHit || history.data[1] != nil {
		t.Errorf("hit record = %+v, data = %+v", hit, history.data[1])
	}

	data := history.data[0]
	if len(data) != 3 {
		t.Fatalf("source data = %+v", data)
	}
	var items []gear.EvidenceItem
	if err := json.Unmarshal([]byte(data[0].Items), &items); err != nil || len(items) != 2 {
		t.Errorf("equipboard items = %s (%v)", data[0].Items, err)
	}
	if data[2].Source != "reddit" || data[2].Status != "failed" || data[2].Items != "[]" || data[2].Error == "" {
		t.Errorf("reddit data = %+v", data[2])
	}
	if data[1].ElapsedMS != 500 {
		t.Errorf("youtube elapsed = %d", data[1].ElapsedMS)
	}

	if len(graph.results) != 1 {
		t.Errorf("graph recorded %d results, want only the fresh one", len(graph.results))
	}
}
