package cache

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/gear-detector/backend/internal/gear"
	"github.com/gear-detector/backend/internal/metrics"
	"github.com/gear-detector/backend/pkg/logger"
)

// Layered reads through a fast front store to a durable back store and backfills the
// front on a back hit. A failing tier is logged and skipped.
type Layered struct {
	front    Store
	back     Store
	backfill time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewLayered builds a two-tier store. backfill is the front TTL used when the back store
// cannot report an entry's expiry.
func NewLayered(front, back Store, backfill time.Duration) *Layered {
	return &Layered{
		front:    front,
		back:     back,
		backfill: backfill,
		now:      time.Now,
		logger:   logger.Named("cache"),
	}
}

func (l *Layered) Name() string { return "layered" }

func (l *Layered) Get(ctx context.Context, key string) (*gear.GearResult, bool, error) {
	result, ok, err := l.front.Get(ctx, key)
	if err != nil {
		l.tierFailed(l.front, "get", err)
	}
	if ok {
		return result, true, nil
	}

	var ttl time.Duration
	if es, isEntry := l.back.(EntryStore); isEntry {
		var e *Entry
		e, ok, err = es.Lookup(ctx, key)
		if ok {
			result = e.Result
			ttl = e.ExpiresAt.Sub(l.now())
		}
	} else {
		result, ok, err = l.back.Get(ctx, key)
		ttl = l.backfill
	}
	if err != nil {
		l.tierFailed(l.back, "get", err)
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	if ttl > 0 {
		if err := l.front.Put(ctx, key, result, ttl); err != nil {
			l.tierFailed(l.front, "backfill", err)
		}
	}
	return result, true, nil
}

// Put writes the durable tier first. It fails only when both tiers fail.
func (l *Layered) Put(ctx context.Context, key string, result *gear.GearResult, ttl time.Duration) error {
	backErr := l.back.Put(ctx, key, result, ttl)
	if backErr != nil {
		l.tierFailed(l.back, "put", backErr)
	}
	frontErr := l.front.Put(ctx, key, result, ttl)
	if frontErr != nil {
		l.tierFailed(l.front, "put", frontErr)
	}
	if backErr != nil && frontErr != nil {
		return errors.Join(backErr, frontErr)
	}
	return nil
}

func (l *Layered) tierFailed(s Store, op string, err error) {
	metrics.CacheErrors.WithLabelValues(s.Name(), op).Inc()
	l.logger.Warn("Cache tier unavailable", zap.String("tier", s.Name()), zap.String("op", op), zap.Error(err))
}
