package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gear-detector/backend/internal/aggregator"
	"github.com/gear-detector/backend/internal/api/handlers"
	"github.com/gear-detector/backend/internal/cache"
	rediscache "github.com/gear-detector/backend/internal/cache/redis"
	"github.com/gear-detector/backend/internal/enrich"
	"github.com/gear-detector/backend/internal/gear"
	"github.com/gear-detector/backend/internal/kg/neo4j"
	"github.com/gear-detector/backend/internal/llm"
	"github.com/gear-detector/backend/internal/query"
	"github.com/gear-detector/backend/internal/sources"
	"github.com/gear-detector/backend/internal/storage/sqlite"
	"github.com/gear-detector/backend/internal/synthesis"
	"github.com/gear-detector/backend/pkg/config"
	appLogger "github.com/gear-detector/backend/pkg/logger"
)

// components holds everything a command may need. Optional backends are nil when
// disabled or unreachable.
type components struct {
	cfg    *config.Config
	engine *query.Engine
	store  cache.Store
	sqlite *sqlite.Client
	redis  *rediscache.Client
	neo4j  *neo4j.Client
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

func build(cfg *config.Config) (*components, error) {
	c := &components{cfg: cfg}

	if err := c.openSQLite(); err != nil {
		if cfg.Cache.Backend == "sqlite" || cfg.Cache.Backend == "layered" {
			return nil, err
		}
		appLogger.Warn("Search history disabled", zap.Error(err))
	}

	if cfg.Cache.Backend == "redis" || cfg.Cache.Backend == "layered" {
		c.openRedis()
	}

	if cfg.Neo4j.Enabled {
		client, err := neo4j.NewClient(cfg.Neo4j.URI, cfg.Neo4j.Username, cfg.Neo4j.Password, cfg.Neo4j.Database)
		if err != nil {
			appLogger.Warn("Gear graph disabled", zap.Error(err))
		} else {
			c.neo4j = client
		}
	}

	switch cfg.Cache.Backend {
	case "memory":
		c.store = cache.NewMemory(nil)
	case "redis":
		c.store = c.redis
	case "sqlite":
		c.store = c.sqlite
	case "layered":
		c.store = cache.NewLayered(c.redis, c.sqlite, cfg.Cache.TTL())
	}

	deps := sources.Dependencies{
		Client: &http.Client{Timeout: time.Duration(cfg.Sources.TimeoutSec) * time.Second},
	}
	if cfg.LLM.Enabled {
		deps.LLM = llm.NewClient(llm.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			Timeout:     time.Duration(cfg.LLM.TimeoutSec) * time.Second,
		})
	}
	if c.neo4j != nil {
		deps.History = c.neo4j
	}

	adapters, err := sources.Build(cfg.Sources, deps)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to build sources: %w", err)
	}

	timeouts := make(map[gear.SourceID]time.Duration)
	for _, a := range adapters {
		timeouts[a.Source()] = cfg.Sources.SourceTimeout(string(a.Source()))
	}
	agg := aggregator.New(adapters, enrich.NewFromConfig(cfg.Enricher, deps.Client), aggregator.Config{
		SourceTimeout:   time.Duration(cfg.Sources.TimeoutSec) * time.Second,
		Timeouts:        timeouts,
		EnricherTimeout: time.Duration(cfg.Enricher.TimeoutSec) * time.Second,
	})

	opts := []query.Option{query.WithTTL(cfg.Cache.TTL())}
	if c.sqlite != nil {
		opts = append(opts, query.WithHistory(c.sqlite))
	}
	if c.neo4j != nil {
		opts = append(opts, query.WithGraph(c.neo4j))
	}
	c.engine = query.NewEngine(agg, synthesis.New(), c.store, opts...)

	appLogger.Info("Pipeline ready",
		zap.Stringer("sources", sourceList(agg.Sources())),
		zap.String("sources_mode", cfg.Sources.Mode),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.Bool("history", c.sqlite != nil),
		zap.Bool("graph", c.neo4j != nil),
	)
	return c, nil
}

func (c *components) openSQLite() error {
	if dir := filepath.Dir(c.cfg.SQLite.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create sqlite directory: %w", err)
		}
	}
	client, err := sqlite.NewClient(c.cfg.SQLite.Path)
	if err != nil {
		return err
	}
	if err := client.InitSchema(); err != nil {
		client.Close()
		return err
	}
	c.sqlite = client
	return nil
}

// openRedis never fails: an unreachable server yields a client whose calls error, which the
// engine counts as cache misses until the server comes back.
func (c *components) openRedis() {
	r := c.cfg.Redis
	client, err := rediscache.NewClient(r.Host, r.Port, r.Password, r.DB)
	if err != nil {
		appLogger.Warn("Redis unreachable, cache reads will miss until it recovers", zap.Error(err))
		client = rediscache.New(goredis.NewClient(&goredis.Options{
			Addr:     fmt.Sprintf("%s:%d", r.Host, r.Port),
			Password: r.Password,
			DB:       r.DB,
		}))
	}
	c.redis = client
}

func (c *components) healthHandler() *handlers.HealthHandler {
	var cacheCheck handlers.Check
	switch c.cfg.Cache.Backend {
	case "redis", "layered":
		cacheCheck = handlers.Check{Name: "redis", Ping: c.redis.Ping}
	case "sqlite":
		cacheCheck = handlers.Check{Name: "sqlite", Ping: c.sqlite.Ping}
	default:
		cacheCheck = handlers.Check{Name: c.cfg.Cache.Backend}
	}

	var deps []handlers.Check
	if c.sqlite != nil && c.cfg.Cache.Backend != "sqlite" {
		deps = append(deps, handlers.Check{Name: "sqlite", Ping: c.sqlite.Ping})
	}
	if c.neo4j != nil {
		deps = append(deps, handlers.Check{Name: "neo4j", Ping: c.neo4j.Ping})
	}
	return handlers.NewHealthHandler(c.cfg.Cache.Backend, cacheCheck, deps...)
}

func (c *components) Close() {
	if c.neo4j != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c.neo4j.Close(ctx)
	}
	if c.redis != nil {
		c.redis.Close()
	}
	if c.sqlite != nil {
		c.sqlite.Close()
	}
}

type sourceList []gear.SourceID

func (s sourceList) String() string {
	return fmt.Sprint([]gear.SourceID(s))
}
