package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/gear-detector/backend/internal/api/handlers"
	"github.com/gear-detector/backend/internal/gear"
	"github.com/gear-detector/backend/internal/query"
	"github.com/gear-detector/backend/internal/storage/models"
	"github.com/gear-detector/backend/pkg/config"
)

type fakeEngine struct {
	queries []gear.Query
	err     error
}

func (f *fakeEngine) Search(_ context.Context, q gear.Query, _ query.Progress) (*query.Response, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return &query.Response{
		SearchID: "search-1",
		Query:    q,
		Result: &gear.GearResult{
			Guitars:         []gear.GearItem{{Make: "Fender", Model: "Stratocaster", Confidence: 95, Tier: gear.TierConfirmed, Sources: []gear.SourceID{gear.SourceEquipboard, gear.SourceYouTube}}},
			ConfidenceScore: 88,
		},
		LatencyMS: 12,
	}, nil
}

type fakeHistory struct{}

func (fakeHistory) GetSearchHistory(_ context.Context, limit int) ([]models.SearchRecord, error) {
	return []models.SearchRecord{{ID: "search-1", Artist: "John Mayer", Song: "Gravity", ConfidenceScore: 88, CreatedAt: time.Unix(0, 0)}}[:min(limit, 1)], nil
}

func (fakeHistory) GetSourceData(_ context.Context, id string) ([]models.SourceData, error) {
	if id != "search-1" {
		return nil, nil
	}
	return []models.SourceData{{SearchID: id, Source: "equipboard", Status: "succeeded", ItemCount: 1, Items: "[]"}}, nil
}

func testConfig(perMinute int) *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{ReadTimeout: 5, WriteTimeout: 5, BodyLimit: 1 << 20},
		RateLimit: config.RateLimitConfig{Enabled: perMinute > 0, MaxRequestsPerMinute: perMinute},
	}
}

func newTestServer(t *testing.T, engine *fakeEngine, cachePing func(context.Context) error, perMinute int) *fiber.App {
	t.Helper()
	health := handlers.NewHealthHandler("sqlite", handlers.Check{Name: "sqlite", Ping: cachePing},
		handlers.Check{Name: "neo4j", Ping: func(context.Context) error { return nil }})
	s := NewServer(testConfig(perMinute), Dependencies{Engine: engine, History: fakeHistory{}, Health: health})
	t.Cleanup(func() { _ = s.Shutdown() })
	return s.App()
}

func send(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var out map[string]any
	data, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(data, &out)
	return resp.StatusCode, out
}

func TestSearch(t *testing.T) {
	engine := &fakeEngine{}
	app := newTestServer(t, engine, nil, 0)

	status, body := send(t, app, "POST", "/api/v1/search", `{"artist":" John Mayer ","song":"Gravity","year":2006}`)
	if status != fiber.StatusOK {
		t.Fatalf("status = %d, body = %v", status, body)
	}
	if body["search_id"] != "search-1" || body["cached"] != false {
		t.Errorf("body = %v", body)
	}
	result := body["result"].(map[string]any)
	if result["confidence_score"] != float64(88) {
		t.Errorf("result = %v", result)
	}
	if len(engine.queries) != 1 || engine.queries[0].Artist != "John Mayer" || *engine.queries[0].Year != 2006 {
		t.Errorf("engine saw %+v", engine.queries)
	}
}

func TestSearchErrors(t *testing.T) {
	tests := []struct {
		name       string
		engineErr  error
		body       string
		wantStatus int
	}{
		{name: "missing song", body: `{"artist":"John Mayer"}`, wantStatus: fiber.StatusBadRequest},
		{name: "year out of range", body: `{"artist":"a","song":"b","year":1850}`, wantStatus: fiber.StatusBadRequest},
		{name: "malformed", body: `{"artist":`, wantStatus: fiber.StatusBadRequest},
		{name: "pipeline failure", engineErr: fmt.Errorf("failed to synthesize result: %w", gear.ErrIncompleteResult), body: `{"artist":"a","song":"b"}`, wantStatus: fiber.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestServer(t, &fakeEngine{err: tt.engineErr}, nil, 0)
			status, body := send(t, app, "POST", "/api/v1/search", tt.body)
			if status != tt.wantStatus {
				t.Errorf("status = %d, body = %v", status, body)
			}
			if body["error"] == "" || body["error"] == nil {
				t.Errorf("no error message in %v", body)
			}
		})
	}
}

func TestSearchRateLimited(t *testing.T) {
	app := newTestServer(t, &fakeEngine{}, nil, 1)

	if status, _ := send(t, app, "POST", "/api/v1/search", `{"artist":"a","song":"b"}`); status != fiber.StatusOK {
		t.Fatalf("first status = %d", status)
	}
	if status, _ := send(t, app, "POST", "/api/v1/search", `{"artist":"a","song":"b"}`); status != fiber.StatusTooManyRequests {
		t.Errorf("second status = %d", status)
	}
	if status, _ := send(t, app, "GET", "/api/v1/search/history", ""); status != fiber.StatusOK {
		t.Errorf("history is rate limited: %d", status)
	}
}

func TestHistoryRoutes(t *testing.T) {
	app := newTestServer(t, &fakeEngine{}, nil, 0)

	status, body := send(t, app, "GET", "/api/v1/search/history?limit=5", "")
	if status != fiber.StatusOK {
		t.Fatalf("history status = %d", status)
	}
	if h := body["history"].([]any); len(h) != 1 || h[0].(map[string]any)["id"] != "search-1" {
		t.Errorf("history = %v", body["history"])
	}

	if status, _ := send(t, app, "GET", "/api/v1/search/history?limit=500", ""); status != fiber.StatusBadRequest {
		t.Errorf("oversized limit status = %d", status)
	}

	status, body = send(t, app, "GET", "/api/v1/search/search-1/sources", "")
	if status != fiber.StatusOK || len(body["sources"].([]any)) != 1 {
		t.Errorf("sources = %d %v", status, body)
	}
	if status, _ := send(t, app, "GET", "/api/v1/search/unknown/sources", ""); status != fiber.StatusNotFound {
		t.Errorf("unknown search status = %d", status)
	}
}

func TestHealthAndReady(t *testing.T) {
	app := newTestServer(t, &fakeEngine{}, nil, 0)

	status, body := send(t, app, "GET", "/api/v1/health", "")
	if status != fiber.StatusOK || body["status"] != "healthy" {
		t.Errorf("health = %d %v", status, body)
	}
	if c := body["cache"].(map[string]any); c["backend"] != "sqlite" || c["status"] != "ok" {
		t.Errorf("cache = %v", c)
	}
	if status, _ := send(t, app, "GET", "/api/v1/ready", ""); status != fiber.StatusOK {
		t.Errorf("ready status = %d", status)
	}

	down := newTestServer(t, &fakeEngine{}, func(context.Context) error { return errors.New("database is locked") }, 0)
	status, body = send(t, down, "GET", "/api/v1/health", "")
	if status != fiber.StatusOK || body["status"] != "degraded" {
		t.Errorf("degraded health = %d %v", status, body)
	}
	if status, _ := send(t, down, "GET", "/api/v1/ready", ""); status != fiber.StatusServiceUnavailable {
		t.Errorf("degraded ready status = %d", status)
	}
}

func TestMetricsAndWebSocketRoutes(t *testing.T) {
	app := newTestServer(t, &fakeEngine{}, nil, 0)

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Errorf("metrics = %v, %v", resp, err)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/ws/search", nil))
	if err != nil || resp.StatusCode != fiber.StatusUpgradeRequired {
		t.Errorf("plain GET on websocket route = %v, %v", resp, err)
	}
}
