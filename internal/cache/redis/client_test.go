package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"

	"github.com/gear-detector/backend/internal/cache"
	"github.com/gear-detector/backend/internal/gear"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := New(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func result() *gear.GearResult {
	return &gear.GearResult{
		Guitars:         []gear.GearItem{{Make: "Fender", Model: "Stratocaster", Year: gear.IntPtr(1964), Confidence: 99, Tier: gear.TierConfirmed, Sources: []gear.SourceID{gear.SourceEquipboard, gear.SourceYouTube}}},
		Amps:            []gear.GearItem{{Make: "Dumble", Model: "Overdrive Special", Confidence: 84, Tier: gear.TierLikely, Sources: []gear.SourceID{gear.SourceEquipboard}}},
		Pedals:          []gear.GearItem{{Make: "Klon", Model: "Centaur", Type: gear.EffectOverdrive, Confidence: 77, Tier: gear.TierLikely, Sources: []gear.SourceID{gear.SourceGearspace}}},
		Other:           []gear.GearItem{},
		SignalChain:     []gear.ChainEntry{{Position: 1, Type: gear.CategoryGuitar, Item: "Fender Stratocaster"}, {Position: 2, Type: gear.CategoryAmp, Item: "Dumble Overdrive Special"}},
		AmpSettings:     gear.AmpSettings{Gain: 4, Bass: 6, Middle: 6, Treble: 6, Presence: 5, Reverb: 3, Notes: "n", Origin: gear.SettingsMixed},
		Conflicts:       []gear.Conflict{{Gear: "a vs b", Resolution: "chose a"}},
		Context:         "ctx",
		ConfidenceScore: 91,
	}
}

func TestRoundTrip(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()
	key := cache.Key(gear.Query{Artist: "John Mayer", Song: "Gravity"})

	if _, ok, err := c.Get(ctx, key); ok || err != nil {
		t.Fatalf("miss = %v, %v", ok, err)
	}

	want := result()
	if err := c.Put(ctx, key, want, time.Hour); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if ttl := mr.TTL(key); ttl != time.Hour {
		t.Errorf("native ttl = %s", ttl)
	}

	got, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip (-want +got):\n%s", diff)
	}
}

func TestExpiry(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	_ = c.Put(ctx, "gear:k", result(), time.Minute)
	mr.FastForward(2 * time.Minute)
	if _, ok, _ := c.Get(ctx, "gear:k"); ok {
		t.Error("hit after native expiry")
	}

	// entries whose embedded expiry passed are misses even if Redis still holds them
	start := time.Now()
	c.now = func() time.Time { return start }
	_ = c.Put(ctx, "gear:k", result(), time.Hour)
	c.now = func() time.Time { return start.Add(2 * time.Hour) }
	if _, ok, _ := c.Get(ctx, "gear:k"); ok {
		t.Error("hit after logical expiry")
	}
}

func TestUnavailable(t *testing.T) {
	c, mr := newTestClient(t)
	mr.Close()

	ctx := context.Background()
	if _, _, err := c.Get(ctx, "gear:k"); err == nil {
		t.Error("expected error from stopped server")
	}
	if err := c.Ping(ctx); err == nil {
		t.Error("expected ping error")
	}
}

func TestInvalidate(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	_ = c.Put(ctx, "gear:a", result(), time.Hour)
	_ = c.Put(ctx, "gear:b", result(), time.Hour)
	_ = mr.Set("unrelated", "keep")

	n, err := c.Invalidate(ctx)
	if err != nil || n != 2 {
		t.Fatalf("Invalidate = %d, %v", n, err)
	}
	if !mr.Exists("unrelated") || mr.Exists("gear:a") {
		t.Error("invalidate touched the wrong keys")
	}
}

func TestCorruptEntry(t *testing.T) {
	c, mr := newTestClient(t)
	_ = mr.Set("gear:bad", "{not json")
	if _, ok, err := c.Get(context.Background(), "gear:bad"); ok || err == nil {
		t.Errorf("corrupt entry = %v, %v", ok, err)
	}
}
