package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gear-detector/backend/internal/gear"
	"github.com/gear-detector/backend/pkg/config"
)

func fixtureConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Sources: config.SourcesConfig{
			Mode:         "fixture",
			TimeoutSec:   5,
			FixturesPath: filepath.Join("..", "..", "config", "fixtures.yaml"),
		},
		Enricher: config.EnricherConfig{Mode: "static", TimeoutSec: 5},
		Cache:    config.CacheConfig{Backend: "memory", TTLHours: 1},
		SQLite:   config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "data", "gear.db")},
	}
}

func TestFixturePipeline(t *testing.T) {
	c, err := build(fixtureConfig(t))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	q := gear.Query{Artist: "The Beatles", Song: "Day Tripper"}
	resp, err := c.engine.Search(ctx, q, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Cached {
		t.Error("first search served from cache")
	}

	var out bytes.Buffer
	printResult(&out, resp)
	text := out.String()
	for _, want := range []string{"Fender Twin Reverb", "Epiphone Casino", "Conflicts:", "Fender Twin Reverb vs Vox AC30", "Signal chain: Epiphone Casino"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}

	again, err := c.engine.Search(ctx, q, nil)
	if err != nil || !again.Cached {
		t.Errorf("second search = %+v, %v", again, err)
	}

	history, err := c.sqlite.GetSearchHistory(ctx, 10)
	if err != nil || len(history) != 2 {
		t.Fatalf("history = %+v, %v", history, err)
	}
	data, err := c.sqlite.GetSourceData(ctx, resp.SearchID)
	if err != nil || len(data) != len(resp.Sources) {
		t.Errorf("source data = %d rows for %d sources (%v)", len(data), len(resp.Sources), err)
	}
}

func TestBuildRejectsUnknownSource(t *testing.T) {
	cfg := fixtureConfig(t)
	cfg.Sources.Enabled = []string{"myspace"}
	if _, err := build(cfg); err == nil {
		t.Fatal("expected error for unknown source")
	}
}

func TestCommandsRegistered(t *testing.T) {
	for _, path := range [][]string{{"serve"}, {"search"}, {"history"}, {"cache", "purge"}, {"cache", "clear"}, {"evaluate"}} {
		cmd, _, err := rootCmd.Find(path)
		if err != nil || cmd.Name() != path[len(path)-1] {
			t.Errorf("command %v not registered", path)
		}
	}
}
