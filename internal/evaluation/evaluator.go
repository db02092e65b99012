// Package evaluation scores the pipeline against a labeled dataset of recordings whose gear
// is known.
package evaluation

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/gear-detector/backend/internal/gear"
	"github.com/gear-detector/backend/internal/query"
	"github.com/gear-detector/backend/pkg/logger"
)

type Searcher interface {
	Search(ctx context.Context, q gear.Query, progress query.Progress) (*query.Response, error)
}

type Classification string

const (
	ClassMiss    Classification = "miss"
	ClassPartial Classification = "partial"
	ClassFull    Classification = "full"
	ClassError   Classification = "error"
)

type Evaluator struct {
	engine Searcher
}

type Dataset struct {
	Items []DatasetItem `yaml:"items"`
}

type DatasetItem struct {
	Artist   string         `yaml:"artist"`
	Song     string         `yaml:"song"`
	Year     *int           `yaml:"year"`
	Expected []ExpectedGear `yaml:"expected"`
}

type ExpectedGear struct {
	Kind  gear.Category `yaml:"kind"`
	Make  string        `yaml:"make"`
	Model string        `yaml:"model"`
}

func (e ExpectedGear) Name() string {
	return strings.TrimSpace(e.Make + " " + e.Model)
}

type ItemResult struct {
	Query          gear.Query
	Classification Classification
	Found          []string
	Missing        []string
	// EvidenceMatches counts found items that some source reported, as opposed to inference.
	EvidenceMatches int
	Confidence      int
	LatencyMS       int
	Err             error
}

func (r ItemResult) Recall() float64 {
	total := len(r.Found) + len(r.Missing)
	if total == 0 {
		return 0
	}
	return float64(len(r.Found)) / float64(total)
}

type Report struct {
	TotalQueries      int
	MissCount         int
	PartialCount      int
	FullCount         int
	ErrorCount        int
	AvgRecall         float64
	EvidenceRecall    float64
	AvgConfidence     float64
	AvgLatencyMS      float64
	MissPercentage    float64
	PartialPercentage float64
	FullPercentage    float64
	Items             []ItemResult
}

func NewEvaluator(engine Searcher) *Evaluator {
	return &Evaluator{
		engine: engine,
	}
}

func LoadDataset(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}
	return ParseDataset(data)
}

// ParseDataset reads YAML or JSON.
func ParseDataset(data []byte) (*Dataset, error) {
	var dataset Dataset
	if err := yaml.Unmarshal(data, &dataset); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dataset: %w", err)
	}
	for i, it := range dataset.Items {
		if len(it.Expected) == 0 {
			return nil, fmt.Errorf("dataset item %d (%s - %s) has no expected gear", i, it.Artist, it.Song)
		}
		for _, exp := range it.Expected {
			if !exp.Kind.Valid() {
				return nil, fmt.Errorf("dataset item %d: invalid kind %q", i, exp.Kind)
			}
		}
	}
	return &dataset, nil
}

func (e *Evaluator) EvaluateItem(ctx context.Context, item DatasetItem) ItemResult {
	q := gear.Query{Artist: item.Artist, Song: item.Song, Year: item.Year}
	res := ItemResult{Query: q}

	resp, err := e.engine.Search(ctx, q, nil)
	if err != nil {
		res.Classification = ClassError
		res.Err = err
		return res
	}

	r := resp.Result
	for _, exp := range item.Expected {
		it, ok := find(r, exp)
		if !ok {
			res.Missing = append(res.Missing, exp.Name())
			continue
		}
		res.Found = append(res.Found, exp.Name())
		if evidenceBacked(it) {
			res.EvidenceMatches++
		}
	}
	res.Confidence = r.ConfidenceScore
	res.LatencyMS = resp.LatencyMS

	switch {
	case len(res.Missing) == 0:
		res.Classification = ClassFull
	case len(res.Found) == 0:
		res.Classification = ClassMiss
	default:
		res.Classification = ClassPartial
	}
	return res
}

func (e *Evaluator) RunDatasetEvaluation(ctx context.Context, dataset *Dataset) *Report {
	logger.Info("Running dataset evaluation", zap.Int("items", len(dataset.Items)))

	report := &Report{
		TotalQueries: len(dataset.Items),
	}

	var totalRecall, totalConfidence, totalLatency float64
	var expected, evidenceMatches, scored int

	for i, item := range dataset.Items {
		logger.Debug("Evaluating item", zap.Int("index", i+1), zap.Int("total", len(dataset.Items)))

		res := e.EvaluateItem(ctx, item)
		report.Items = append(report.Items, res)

		switch res.Classification {
		case ClassError:
			report.ErrorCount++
			logger.Error("Failed to evaluate item", zap.String("query", res.Query.String()), zap.Error(res.Err))
			continue
		case ClassMiss:
			report.MissCount++
		case ClassPartial:
			report.PartialCount++
		case ClassFull:
			report.FullCount++
		}

		scored++
		totalRecall += res.Recall()
		totalConfidence += float64(res.Confidence)
		totalLatency += float64(res.LatencyMS)
		expected += len(res.Found) + len(res.Missing)
		evidenceMatches += res.EvidenceMatches
	}

	if scored > 0 {
		report.AvgRecall = totalRecall / float64(scored)
		report.AvgConfidence = totalConfidence / float64(scored)
		report.AvgLatencyMS = totalLatency / float64(scored)
	}
	if expected > 0 {
		report.EvidenceRecall = float64(evidenceMatches) / float64(expected)
	}
	if report.TotalQueries > 0 {
		report.MissPercentage = float64(report.MissCount) / float64(report.TotalQueries) * 100
		report.PartialPercentage = float64(report.PartialCount) / float64(report.TotalQueries) * 100
		report.FullPercentage = float64(report.FullCount) / float64(report.TotalQueries) * 100
	}

	logger.Info("Dataset evaluation completed",
		zap.Int("total", report.TotalQueries),
		zap.Int("miss", report.MissCount),
		zap.Int("partial", report.PartialCount),
		zap.Int("full", report.FullCount),
		zap.Int("errors", report.ErrorCount),
	)

	return report
}

func find(r *gear.GearResult, exp ExpectedGear) (gear.GearItem, bool) {
	var list []gear.GearItem
	switch exp.Kind {
	case gear.CategoryGuitar:
		list = r.Guitars
	case gear.CategoryAmp:
		list = r.Amps
	case gear.CategoryPedal:
		list = r.Pedals
	default:
		list = r.Other
	}
	makeKey, modelKey := gear.MatchKey(exp.Make), gear.MatchKey(exp.Model)
	for _, it := range list {
		if gear.MatchKey(it.Make) == makeKey && gear.MatchKey(it.Model) == modelKey {
			return it, true
		}
	}
	return gear.GearItem{}, false
}

func evidenceBacked(it gear.GearItem) bool {
	for _, s := range it.Sources {
		if s != gear.SourceInference {
			return true
		}
	}
	return false
}

func GenerateReport(report *Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, `
Evaluation Report
=================

Total Queries: %d

Classifications:
- Full: %d (%.1f%%)
- Partial: %d (%.1f%%)
- Miss: %d (%.1f%%)
- Errors: %d

Average Recall: %.2f
Evidence-backed Recall: %.2f
Average Confidence: %.1f / 100
Average Latency: %.0f ms
`,
		report.TotalQueries,
		report.FullCount, report.FullPercentage,
		report.PartialCount, report.PartialPercentage,
		report.MissCount, report.MissPercentage,
		report.ErrorCount,
		report.AvgRecall,
		report.EvidenceRecall,
		report.AvgConfidence,
		report.AvgLatencyMS,
	)

	if len(report.Items) > 0 {
		b.WriteString("\nPer Query:\n")
	}
	for _, it := range report.Items {
		if it.Err != nil {
			fmt.Fprintf(&b, "- %s: error: %v\n", it.Query, it.Err)
			continue
		}
		fmt.Fprintf(&b, "- %s: %s (%d/%d)", it.Query, it.Classification, len(it.Found), len(it.Found)+len(it.Missing))
		if len(it.Missing) > 0 {
			fmt.Fprintf(&b, " missing %s", strings.Join(it.Missing, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}
