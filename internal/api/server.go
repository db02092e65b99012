// Package api assembles the fiber application: middleware, routes and the metrics endpoint.
package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gear-detector/backend/internal/api/handlers"
	"github.com/gear-detector/backend/internal/middleware/ratelimit"
	"github.com/gear-detector/backend/internal/middleware/security"
	"github.com/gear-detector/backend/internal/middleware/validation"
	"github.com/gear-detector/backend/pkg/config"
	"github.com/gear-detector/backend/pkg/logger"
)

type Dependencies struct {
	Engine  handlers.Searcher
	History handlers.HistoryReader
	Health  *handlers.HealthHandler
}

type Server struct {
	app     *fiber.App
	limiter *ratelimit.RateLimiter
}

func NewServer(cfg *config.Config, deps Dependencies) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "gear-detector",
		ReadTimeout:           time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:          time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:             cfg.Server.BodyLimit,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	if cfg.Server.IsDevelopment {
		app.Use(fiberlogger.New())
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, X-Client-ID",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{IsDevelopment: cfg.Server.IsDevelopment}))

	s := &Server{app: app}

	searchHandler := handlers.NewSearchHandler(deps.Engine, deps.History)
	wsHandler := handlers.NewWebSocketHandler(deps.Engine)

	api := app.Group("/api/v1")

	search := []fiber.Handler{validation.Middleware(validation.Config{SearchPath: "/api/v1/search"})}
	if cfg.RateLimit.Enabled {
		s.limiter = ratelimit.New(ratelimit.Config{
			MaxRequestsPerMinute: cfg.RateLimit.MaxRequestsPerMinute,
			Logger:               logger.Named("ratelimit"),
		})
		search = append([]fiber.Handler{s.limiter.Middleware()}, search...)
	}
	api.Post("/search", append(search, searchHandler.HandleSearch)...)
	api.Get("/search/history", searchHandler.GetSearchHistory)
	api.Get("/search/:id/sources", searchHandler.GetSourceData)

	if deps.Health != nil {
		api.Get("/health", deps.Health.Health)
		api.Get("/ready", deps.Health.Ready)
	}

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/search", websocket.New(wsHandler.HandleConnection))

	return s
}

func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	return s.app.Shutdown()
}
