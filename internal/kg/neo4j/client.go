// Package neo4j keeps a gear-usage graph of artists, songs and gear built from past searches.
//
//	(:Artist)-[:PERFORMED]->(:Song)-[:USED]->(:Gear)
package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/gear-detector/backend/internal/gear"
	"github.com/gear-detector/backend/pkg/circuitbreaker"
	"github.com/gear-detector/backend/pkg/logger"
	"github.com/gear-detector/backend/pkg/retry"
	"github.com/gear-detector/backend/pkg/utils"
)

type Client struct {
	driver      neo4j.DriverWithContext
	database    string
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

func NewClient(uri, username, password, database string) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(
		uri,
		neo4j.BasicAuth(username, password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = driver.VerifyConnectivity(ctx)
	if err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("failed to verify connectivity: %w", err)
	}

	cb := circuitbreaker.NewCircuitBreaker("neo4j", circuitbreaker.Config{
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          20 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   200 * time.Millisecond,
		MaxDelay:       3 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	if database == "" {
		database = "neo4j"
	}

	logger.Info("Neo4j client initialized", zap.String("uri", uri), zap.String("database", database))

	return &Client{
		driver:      driver,
		database:    database,
		cb:          cb,
		retryConfig: retryConfig,
	}, nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

func (c *Client) Ping(ctx context.Context) error {
	return c.driver.VerifyConnectivity(ctx)
}

func (c *Client) executeWithRetry(ctx context.Context, operation func(neo4j.SessionWithContext) error) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return c.cb.Execute(ctx, func(ctx context.Context) error {
		return retry.Do(ctx, c.retryConfig, func(ctx context.Context) error {
			session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database})
			defer session.Close(ctx)
			return operation(session)
		})
	})
}

// RecordResult merges the query's artist and song and links every evidence-backed item.
// Inferred items are skipped so the graph source never feeds back guesses.
func (c *Client) RecordResult(ctx context.Context, q gear.Query, r *gear.GearResult) error {
	params := recordParams(q, r)
	if len(params["gear"].([]map[string]any)) == 0 {
		return nil
	}

	query := `
		MERGE (a:Artist {key: $artist_key})
		SET a.name = $artist
		MERGE (s:Song {key: $song_key})
		SET s.title = $song, s.year = $year
		MERGE (a)-[:PERFORMED]->(s)
		WITH s
		UNWIND $gear AS item
		MERGE (g:Gear {key: item.key})
		SET g.kind = item.kind, g.make = item.make, g.model = item.model, g.effect_type = item.effect_type
		MERGE (s)-[u:USED]->(g)
		SET u.confidence = item.confidence,
		    u.tier = item.tier,
		    u.sources = item.sources,
		    u.recorded_at = timestamp()
	`

	err := c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			res, err := tx.Run(ctx, query, params)
			if err != nil {
				return nil, err
			}
			return res.Consume(ctx)
		})
		if err != nil {
			return fmt.Errorf("failed to record result: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Debug("Result recorded in gear graph",
		zap.String("query", q.String()),
		zap.Int("gear", len(params["gear"].([]map[string]any))),
	)
	return nil
}

// ArtistGear lists gear linked to the artist's other songs, most widely used first.
func (c *Client) ArtistGear(ctx context.Context, artist, excludeSong string, limit int) ([]gear.Usage, error) {
	var usages []gear.Usage

	err := c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		query := `
			MATCH (a:Artist {key: $artist_key})-[:PERFORMED]->(s:Song)-[u:USED]->(g:Gear)
			WHERE s.key <> $song_key
			RETURN g.kind AS kind, g.make AS make, g.model AS model, g.effect_type AS effect_type,
			       count(DISTINCT s) AS songs, max(u.confidence) AS confidence
			ORDER BY songs DESC, confidence DESC, make, model
			LIMIT $limit
		`

		result, err := session.Run(ctx, query, map[string]any{
			"artist_key": utils.NormalizeText(artist),
			"song_key":   songKey(artist, excludeSong),
			"limit":      limit,
		})
		if err != nil {
			return fmt.Errorf("failed to query artist gear: %w", err)
		}

		usages = usages[:0]
		for result.Next(ctx) {
			usages = append(usages, usageFromRecord(result.Record()))
		}

		if err = result.Err(); err != nil {
			return fmt.Errorf("error iterating results: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	logger.Debug("Artist gear history loaded",
		zap.String("artist", artist),
		zap.Int("results_found", len(usages)),
	)

	return usages, nil
}

func songKey(artist, song string) string {
	return utils.NormalizeText(artist) + ":" + utils.NormalizeText(song)
}

func gearKey(kind gear.Category, item gear.GearItem) string {
	return string(kind) + ":" + gear.MatchKey(item.Make) + ":" + gear.MatchKey(item.Model)
}

func recordParams(q gear.Query, r *gear.GearResult) map[string]any {
	items := []map[string]any{}
	lists := []struct {
		kind  gear.Category
		items []gear.GearItem
	}{
		{gear.CategoryGuitar, r.Guitars},
		{gear.CategoryAmp, r.Amps},
		{gear.CategoryPedal, r.Pedals},
		{gear.CategoryOther, r.Other},
	}
	for _, l := range lists {
		for _, it := range l.items {
			sources := make([]string, 0, len(it.Sources))
			for _, s := range it.Sources {
				if s != gear.SourceInference {
					sources = append(sources, string(s))
				}
			}
			if len(sources) == 0 {
				continue
			}
			items = append(items, map[string]any{
				"key":         gearKey(l.kind, it),
				"kind":        string(l.kind),
				"make":        it.Make,
				"model":       it.Model,
				"effect_type": it.Type,
				"confidence":  int64(it.Confidence),
				"tier":        string(it.Tier),
				"sources":     sources,
			})
		}
	}

	var year any
	if q.Year != nil {
		year = int64(*q.Year)
	}
	return map[string]any{
		"artist_key": utils.NormalizeText(q.Artist),
		"artist":     q.Artist,
		"song_key":   songKey(q.Artist, q.Song),
		"song":       q.Song,
		"year":       year,
		"gear":       items,
	}
}

func usageFromRecord(record *neo4j.Record) gear.Usage {
	kind, _ := record.Get("kind")
	brand, _ := record.Get("make")
	model, _ := record.Get("model")
	effect, _ := record.Get("effect_type")
	songs, _ := record.Get("songs")
	confidence, _ := record.Get("confidence")

	return gear.Usage{
		Kind:       gear.Category(asString(kind)),
		Make:       asString(brand),
		Model:      asString(model),
		EffectType: asString(effect),
		Songs:      int(asInt(songs)),
		Confidence: int(asInt(confidence)),
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}
