package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/gear-detector/backend/internal/gear"
	"github.com/gear-detector/backend/pkg/circuitbreaker"
	"github.com/gear-detector/backend/pkg/logger"
	"github.com/gear-detector/backend/pkg/retry"
)

const (
	defaultUserAgent = "GearDetectorBot/1.0 (+https://geardetector.com)"
	maxBodyBytes     = 4 << 20
)

// HTTPConfig is shared by the network-backed adapters.
type HTTPConfig struct {
	BaseURL   string
	UserAgent string
	Client    *http.Client
	Retry     retry.Config
	Breaker   circuitbreaker.Config
}

type fetcher struct {
	source    gear.SourceID
	client    *http.Client
	userAgent string
	cb        *circuitbreaker.CircuitBreaker
	retry     retry.Config
}

func newFetcher(source gear.SourceID, cfg HTTPConfig) *fetcher {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	rc := cfg.Retry
	if rc.MaxAttempts == 0 {
		rc = retry.Config{
			MaxAttempts:    2,
			InitialDelay:   250 * time.Millisecond,
			MaxDelay:       2 * time.Second,
			Multiplier:     2.0,
			JitterFraction: 0.1,
		}
	}
	rc.RetryIf = retryable
	if rc.Logger == nil {
		rc.Logger = logger.Named(string(source))
	}

	bc := cfg.Breaker
	if bc.FailureThreshold == 0 {
		bc = circuitbreaker.Config{
			MaxRequests:      1,
			Interval:         time.Minute,
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
			SuccessThreshold: 1,
		}
	}
	bc.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, ErrNoData)
	}
	if bc.Logger == nil {
		bc.Logger = logger.GetLogger()
	}

	return &fetcher{
		source:    source,
		client:    client,
		userAgent: ua,
		cb:        circuitbreaker.NewCircuitBreaker(string(source), bc),
		retry:     rc,
	}
}

// get performs a GET through the breaker with retries and returns the body of a 2xx response.
func (f *fetcher) get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	var body []byte
	err := f.cb.Execute(ctx, func(ctx context.Context) error {
		return retry.Do(ctx, f.retry, func(ctx context.Context) error {
			b, err := f.do(ctx, url, headers)
			if err != nil {
				return err
			}
			body = b
			return nil
		})
	})
	if err != nil {
		var failure *Failure
		if errors.As(err, &failure) {
			return nil, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fail(f.source, ErrTimeout, ctxErr)
		}
		if Skippable(err) {
			return nil, err
		}
		return nil, fail(f.source, ErrUpstream, err)
	}
	return body, nil
}

func (f *fetcher) do(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/json;q=0.9,*/*;q=0.8")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fail(f.source, ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Debug("Upstream returned non-2xx",
			zap.String("source", string(f.source)),
			zap.Int("status", resp.StatusCode),
		)
		return nil, failStatus(f.source, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fail(f.source, ErrUpstream, fmt.Errorf("failed to read response: %w", err))
	}
	return body, nil
}
