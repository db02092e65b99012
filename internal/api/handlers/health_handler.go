package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

const checkTimeout = 3 * time.Second

// Check probes one backing service. Ping is nil for in-process backends.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

type HealthHandler struct {
	cacheBackend string
	cache        Check
	deps         []Check
}

// NewHealthHandler reports on the cache backend and any other dependencies.
func NewHealthHandler(cacheBackend string, cache Check, deps ...Check) *HealthHandler {
	return &HealthHandler{cacheBackend: cacheBackend, cache: cache, deps: deps}
}

// Health always answers 200; a failing dependency degrades the status.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	cacheStatus := probe(c.UserContext(), h.cache)
	status := "healthy"
	if cacheStatus != "ok" {
		status = "degraded"
	}

	deps := fiber.Map{}
	for _, d := range h.deps {
		s := probe(c.UserContext(), d)
		if s != "ok" {
			status = "degraded"
		}
		deps[d.Name] = s
	}

	return c.JSON(fiber.Map{
		"status": status,
		"time":   time.Now().Unix(),
		"cache": fiber.Map{
			"backend": h.cacheBackend,
			"status":  cacheStatus,
		},
		"dependencies": deps,
	})
}

// Ready answers 503 while the cache backend is unreachable.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	if s := probe(c.UserContext(), h.cache); s != "ok" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "not ready",
			"cache":  s,
		})
	}
	return c.JSON(fiber.Map{
		"status": "ready",
	})
}

func probe(ctx context.Context, check Check) string {
	if check.Ping == nil {
		return "ok"
	}
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	if err := check.Ping(ctx); err != nil {
		return "error: " + err.Error()
	}
	return "ok"
}
