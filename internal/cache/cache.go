// Package cache stores synthesized gear results keyed by normalized query identity.
package cache

import (
	"context"
	"time"

	"github.com/gear-detector/backend/internal/gear"
	"github.com/gear-detector/backend/pkg/utils"
)

// Store is a result cache. A miss is (nil, false, nil); errors mean the backend is
// unavailable and callers treat them as a miss.
type Store interface {
	Name() string
	Get(ctx context.Context, key string) (*gear.GearResult, bool, error)
	Put(ctx context.Context, key string, result *gear.GearResult, ttl time.Duration) error
}

// EntryStore is implemented by stores that can report when an entry expires.
type EntryStore interface {
	Store
	Lookup(ctx context.Context, key string) (*Entry, bool, error)
}

type Entry struct {
	Key       string           `json:"key"`
	Result    *gear.GearResult `json:"result"`
	CreatedAt time.Time        `json:"created_at"`
	ExpiresAt time.Time        `json:"expires_at"`
}

func (e *Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

func NewEntry(key string, result *gear.GearResult, now time.Time, ttl time.Duration) *Entry {
	return &Entry{Key: key, Result: result.Clone(), CreatedAt: now, ExpiresAt: now.Add(ttl)}
}

// Key is "gear:" followed by the md5 hex digest of the query identity.
func Key(q gear.Query) string {
	return "gear:" + utils.HashString(q.Identity())
}
