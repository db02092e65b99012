package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/gear-detector/backend/internal/gear"
	"github.com/gear-detector/backend/internal/query"
	"github.com/gear-detector/backend/pkg/logger"
)

const searchTimeout = 2 * time.Minute

type WebSocketHandler struct {
	engine Searcher
}

func NewWebSocketHandler(engine Searcher) *WebSocketHandler {
	return &WebSocketHandler{
		engine: engine,
	}
}

type searchMessage struct {
	Type   string `json:"type"`
	Artist string `json:"artist"`
	Song   string `json:"song"`
	Year   *int   `json:"year,omitempty"`
}

func (m searchMessage) query() gear.Query {
	return gear.Query{Artist: m.Artist, Song: m.Song, Year: m.Year}
}

// HandleConnection serves search messages one at a time. Each search streams a "stage"
// message per pipeline transition, then "complete" or "error".
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg searchMessage
		err := c.ReadJSON(&msg)
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Error("Failed to read WebSocket message", zap.Error(err))
			}
			break
		}

		if msg.Type != "search" {
			continue
		}

		q := msg.query()
		logger.Info("Processing WebSocket search", zap.String("query", q.String()))

		if err := h.streamSearch(c, q); err != nil {
			logger.Error("Failed to stream search", zap.Error(err))
			if errors.Is(err, gear.ErrInvalidQuery) {
				h.sendError(c, err.Error())
			} else {
				h.sendError(c, "Failed to process search")
			}
		}
	}
}

func (h *WebSocketHandler) streamSearch(c *websocket.Conn, q gear.Query) error {
	ctx, cancel := context.WithTimeout(context.Background(), searchTimeout)
	defer cancel()

	var writeErr error
	progress := func(ev query.Event) {
		if writeErr != nil {
			return
		}
		writeErr = c.WriteJSON(stageMessage(ev))
	}

	response, err := h.engine.Search(ctx, q, progress)
	if err != nil {
		return err
	}
	if writeErr != nil {
		return writeErr
	}

	return h.sendComplete(c, response)
}

func stageMessage(ev query.Event) map[string]any {
	return map[string]any{
		"type":       "stage",
		"search_id":  ev.SearchID,
		"stage":      ev.Stage,
		"message":    ev.Message,
		"elapsed_ms": ev.ElapsedMS,
	}
}

func (h *WebSocketHandler) sendComplete(c *websocket.Conn, response *query.Response) error {
	msg := map[string]any{
		"type":       "complete",
		"search_id":  response.SearchID,
		"cached":     response.Cached,
		"result":     response.Result,
		"sources":    response.Sources,
		"latency_ms": response.LatencyMS,
	}

	return c.WriteJSON(msg)
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	msg := map[string]any{
		"type":  "error",
		"error": errorMsg,
	}

	c.WriteJSON(msg)
}
