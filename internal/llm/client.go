package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/gear-detector/backend/internal/gear"
	"github.com/gear-detector/backend/pkg/circuitbreaker"
	"github.com/gear-detector/backend/pkg/logger"
	"github.com/gear-detector/backend/pkg/retry"
)

var ErrMalformedResponse = errors.New("malformed LLM response")

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

type Client struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
	MaxTokens    int
}

type CompletionResponse struct {
	Content string
	Usage   Usage
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// GearClaim is one piece of gear the model attributes to a recording.
type GearClaim struct {
	Category   string         `json:"category"`
	Make       string         `json:"make"`
	Model      string         `json:"model"`
	Year       *int           `json:"year,omitempty"`
	EffectType string         `json:"effect_type,omitempty"`
	Note       string         `json:"note,omitempty"`
	Confidence int            `json:"confidence"`
	Settings   map[string]int `json:"settings,omitempty"`
}

func NewClient(cfg Config) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	cb := circuitbreaker.NewCircuitBreaker("llm", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		RetryIf:        retryableAPIError,
		Logger:         logger.GetLogger(),
	}

	logger.Info("LLM client initialized", zap.String("model", cfg.Model))

	return &Client{
		client:      openai.NewClientWithConfig(oc),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
		cb:          cb,
		retryConfig: retryConfig,
	}
}

func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: req.UserPrompt,
		},
	}

	var result *CompletionResponse

	err := c.cb.Execute(ctx, func(ctx context.Context) error {
		return retry.Do(ctx, c.retryConfig, func(ctx context.Context) error {
			resp, err := c.client.CreateChatCompletion(
				ctx,
				openai.ChatCompletionRequest{
					Model:       c.model,
					Messages:    messages,
					Temperature: temperature,
					MaxTokens:   maxTokens,
				},
			)

			if err != nil {
				return fmt.Errorf("failed to create completion: %w", err)
			}
			if len(resp.Choices) == 0 {
				return fmt.Errorf("%w: no choices", ErrMalformedResponse)
			}

			logger.Debug("LLM completion generated",
				zap.Int("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			)

			result = &CompletionResponse{
				Content: resp.Choices[0].Message.Content,
				Usage: Usage{
					PromptTokens:     resp.Usage.PromptTokens,
					CompletionTokens: resp.Usage.CompletionTokens,
					TotalTokens:      resp.Usage.TotalTokens,
				},
			}

			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	return result, nil
}

const gearSystemPrompt = `You are a guitar gear historian. Given an artist and a song, list the guitars, amplifiers and effects pedals used on that recording.

Rules:
1. Only include gear you have specific knowledge of for this artist
2. category is one of: guitar, amp, pedal, other
3. For pedals set effect_type to one of: compressor, wah, overdrive, distortion, fuzz, modulation, pitch, delay, reverb, other
4. confidence is 0-100 and reflects how sure you are about this recording specifically
5. settings holds amp knob positions on a 1-10 scale when known (gain, bass, middle, treble, presence, reverb)

Return ONLY a JSON array:
[{"category": "guitar", "make": "Fender", "model": "Stratocaster", "year": 1963, "note": "main guitar", "confidence": 70}]`

// ExtractGear asks the model for the gear used on a recording and decodes its JSON answer.
func (c *Client) ExtractGear(ctx context.Context, q gear.Query) ([]GearClaim, error) {
	userPrompt := fmt.Sprintf("Artist: %s\nSong: %s", q.Artist, q.Song)
	if q.Year != nil {
		userPrompt += fmt.Sprintf("\nYear: %d", *q.Year)
	}
	userPrompt += "\n\nReturn JSON only."

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: gearSystemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  0.2,
		MaxTokens:    800,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to extract gear: %w", err)
	}

	claims, err := ParseGearClaims(resp.Content)
	if err != nil {
		return nil, err
	}

	logger.Info("Gear extracted", zap.String("query", q.String()), zap.Int("count", len(claims)))
	return claims, nil
}

// ParseGearClaims decodes a JSON array of claims, tolerating markdown code fences and
// prose around the array.
func ParseGearClaims(content string) ([]GearClaim, error) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: no JSON array", ErrMalformedResponse)
	}

	var claims []GearClaim
	if err := json.Unmarshal([]byte(content[start:end+1]), &claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	out := claims[:0]
	for _, c := range claims {
		c.Make = strings.TrimSpace(c.Make)
		c.Model = strings.TrimSpace(c.Model)
		if c.Make == "" && c.Model == "" {
			continue
		}
		c.Confidence = max(0, min(c.Confidence, 100))
		out = append(out, c)
	}
	return out, nil
}

func retryableAPIError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return !errors.Is(err, ErrMalformedResponse)
}
