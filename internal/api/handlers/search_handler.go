package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/gear-detector/backend/internal/gear"
	"github.com/gear-detector/backend/internal/middleware/validation"
	"github.com/gear-detector/backend/internal/query"
	"github.com/gear-detector/backend/internal/storage/models"
	"github.com/gear-detector/backend/pkg/logger"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type Searcher interface {
	Search(ctx context.Context, q gear.Query, progress query.Progress) (*query.Response, error)
}

type HistoryReader interface {
	GetSearchHistory(ctx context.Context, limit int) ([]models.SearchRecord, error)
	GetSourceData(ctx context.Context, searchID string) ([]models.SourceData, error)
}

type SearchHandler struct {
	engine  Searcher
	history HistoryReader
}

// NewSearchHandler builds the search routes. history may be nil when no durable store is
// configured.
func NewSearchHandler(engine Searcher, history HistoryReader) *SearchHandler {
	return &SearchHandler{
		engine:  engine,
		history: history,
	}
}

func (h *SearchHandler) HandleSearch(c *fiber.Ctx) error {
	q, ok := c.Locals(validation.QueryKey).(gear.Query)
	if !ok {
		if err := c.BodyParser(&q); err != nil {
			logger.Error("Failed to parse request body", zap.Error(err))
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
	}

	response, err := h.engine.Search(c.UserContext(), q, nil)
	if err != nil {
		if errors.Is(err, gear.ErrInvalidQuery) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		logger.Error("Failed to process search", zap.String("query", q.String()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process search",
		})
	}

	return c.JSON(response)
}

func (h *SearchHandler) GetSearchHistory(c *fiber.Ctx) error {
	if h.history == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Search history is not configured",
		})
	}

	limit := c.QueryInt("limit", defaultHistoryLimit)
	if limit <= 0 || limit > maxHistoryLimit {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "limit must be between 1 and 100",
		})
	}

	records, err := h.history.GetSearchHistory(c.UserContext(), limit)
	if err != nil {
		logger.Error("Failed to load search history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load search history",
		})
	}

	return c.JSON(fiber.Map{
		"history": records,
	})
}

func (h *SearchHandler) GetSourceData(c *fiber.Ctx) error {
	if h.history == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Search history is not configured",
		})
	}

	id := c.Params("id")
	data, err := h.history.GetSourceData(c.UserContext(), id)
	if err != nil {
		logger.Error("Failed to load source data", zap.String("search_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load source data",
		})
	}
	if len(data) == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No source data for search",
		})
	}

	return c.JSON(fiber.Map{
		"search_id": id,
		"sources":   data,
	})
}
