package validation

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/gear-detector/backend/internal/gear"
	"github.com/gear-detector/backend/pkg/logger"
)

// QueryKey is the fiber Locals key holding the sanitized gear.Query for search requests.
const QueryKey = "search_query"

var xssPattern = regexp.MustCompile(`(?i)(<script|<iframe|javascript:|onerror=|onload=|onclick=)`)

type Config struct {
	// SearchPath is the POST route whose body is parsed and sanitized.
	SearchPath          string
	MaxFieldLength      int
	AllowedContentTypes []string
	Logger              *zap.Logger
}

func Middleware(cfg Config) fiber.Handler {
	if cfg.SearchPath == "" {
		cfg.SearchPath = "/api/v1/search"
	}
	if cfg.MaxFieldLength == 0 {
		cfg.MaxFieldLength = 255
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{fiber.MIMEApplicationJSON}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Named("validation")
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost && c.Method() != fiber.MethodPut {
			return c.Next()
		}

		if !allowedContentType(c.Get(fiber.HeaderContentType), cfg.AllowedContentTypes) {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
				"error": "Unsupported content type",
			})
		}

		if c.Path() != cfg.SearchPath {
			return c.Next()
		}

		var q gear.Query
		if err := c.BodyParser(&q); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid JSON format",
			})
		}

		for _, field := range []string{q.Artist, q.Song} {
			if len([]rune(field)) > cfg.MaxFieldLength {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Artist and song must be at most 255 characters",
				})
			}
			if xssPattern.MatchString(field) {
				cfg.Logger.Warn("Potential XSS attempt",
					zap.String("ip", c.IP()),
					zap.String("field", field),
				)
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid query content",
				})
			}
		}

		q.Artist = sanitizeString(q.Artist)
		q.Song = sanitizeString(q.Song)
		c.Locals(QueryKey, q)

		return c.Next()
	}
}

func allowedContentType(contentType string, allowed []string) bool {
	if contentType == "" {
		return true
	}
	for _, a := range allowed {
		if strings.HasPrefix(strings.ToLower(contentType), a) {
			return true
		}
	}
	return false
}

// sanitizeString trims the value and drops control characters.
func sanitizeString(input string) string {
	input = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, input)
	return strings.TrimSpace(input)
}
