package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/gear-detector/backend/internal/gear"
	"github.com/gear-detector/backend/pkg/circuitbreaker"
	"github.com/gear-detector/backend/pkg/retry"
)

func testHTTPConfig(baseURL string) HTTPConfig {
	return HTTPConfig{
		BaseURL: baseURL,
		Retry:   retry.Config{MaxAttempts: 1},
	}
}

const equipboardPage = `<html><body>
<div class="gear-item"><h3>Fender Stratocaster</h3><span class="category">Electric Guitars</span></div>
<div class="gear-item"><h3>Two-Rock Custom Reverb Signature</h3><span class="category">Guitar Amplifiers</span></div>
<div class="gear-item"><h3>Ibanez Tube Screamer</h3><span class="category">Effects Pedals</span><p class="gear-note">always on</p></div>
<div class="gear-item"><h3>Fender Stratocaster</h3><span class="category">Electric Guitars</span></div>
<div class="gear-item"><span class="category">Missing name</span></div>
</body></html>`

func TestEquipboardFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pros/john-mayer" {
			http.NotFound(w, r)
			return
		}
		if ua := r.Header.Get("User-Agent"); ua != defaultUserAgent {
			t.Errorf("User-Agent = %q", ua)
		}
		fmt.Fprint(w, equipboardPage)
	}))
	defer srv.Close()

	eb := NewEquipboard(testHTTPConfig(srv.URL))
	items, err := eb.Fetch(context.Background(), gear.Query{Artist: "John Mayer", Song: "Gravity"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3: %+v", len(items), items)
	}

	if items[0].Kind != gear.CategoryGuitar || items[0].Claim.Name() != "Fender Stratocaster" {
		t.Errorf("item 0 = %s %s", items[0].Kind, items[0].Claim.Name())
	}
	if items[1].Kind != gear.CategoryAmp || items[1].Claim.Make != "Two-Rock" {
		t.Errorf("item 1 = %s %s", items[1].Kind, items[1].Claim.Name())
	}
	pedal := items[2]
	if pedal.Kind != gear.CategoryPedal || pedal.Claim.Model != "TS808 Tube Screamer" || pedal.Claim.EffectType != gear.EffectOverdrive {
		t.Errorf("item 2 = %s %s (%s)", pedal.Kind, pedal.Claim.Name(), pedal.Claim.EffectType)
	}
	if pedal.Claim.Note != "always on" || pedal.RawConfidence != rawEquipboard {
		t.Errorf("pedal note %q raw %d", pedal.Claim.Note, pedal.RawConfidence)
	}

	_, err = eb.Fetch(context.Background(), gear.Query{Artist: "Nobody Known", Song: "x"})
	if !errors.Is(err, ErrNoData) {
		t.Errorf("unknown artist error = %v, want ErrNoData", err)
	}
}

func TestEquipboardSlug(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/pros/bjork" {
			t.Errorf("path = %q, want /pros/bjork", r.URL.Path)
		}
		fmt.Fprint(w, equipboardPage)
	}))
	defer srv.Close()

	eb := NewEquipboard(testHTTPConfig(srv.URL))
	if _, err := eb.Fetch(context.Background(), gear.Query{Artist: "Björk", Song: "Hyperballad"}); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	_, err := eb.Fetch(context.Background(), gear.Query{Artist: "!!!", Song: "Heart of Hearts"})
	if !errors.Is(err, ErrNoData) {
		t.Errorf("empty slug error = %v, want ErrNoData", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, ErrRateLimited},
		{http.StatusNotFound, ErrNoData},
		{http.StatusUnauthorized, ErrUpstream},
		{http.StatusForbidden, ErrUpstream},
		{http.StatusBadGateway, ErrUpstream},
		{http.StatusTeapot, ErrUpstream},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := NewGearspace(testHTTPConfig(srv.URL)).Fetch(context.Background(), gear.Query{Artist: "a", Song: "b"})
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			var failure *Failure
			if !errors.As(err, &failure) || failure.Status != tt.status || failure.Source != gear.SourceGearspace {
				t.Errorf("failure = %+v", failure)
			}
			if Skippable(err) {
				t.Errorf("status %d reported as skippable", tt.status)
			}
		})
	}
}

func TestFetcherRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `<div class="post">Running a Vox AC30 and a Rickenbacker 360.</div>`)
	}))
	defer srv.Close()

	cfg := testHTTPConfig(srv.URL)
	cfg.Retry = retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
	items, err := NewGearspace(cfg).Fetch(context.Background(), gear.Query{Artist: "a", Song: "b"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
	if len(items) != 2 || items[0].Claim.Name() != "Vox AC30" {
		t.Errorf("items = %+v", items)
	}
}

func TestFetcherNoDataIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	cfg := testHTTPConfig(srv.URL)
	cfg.Retry = retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond}
	_, err := NewEquipboard(cfg).Fetch(context.Background(), gear.Query{Artist: "a", Song: "b"})
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("error = %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestFetcherForbiddenIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	cfg := testHTTPConfig(srv.URL)
	cfg.Retry = retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond}
	_, err := NewEquipboard(cfg).Fetch(context.Background(), gear.Query{Artist: "a", Song: "b"})
	if !errors.Is(err, ErrUpstream) || Skippable(err) {
		t.Fatalf("error = %v, want a non-skippable ErrUpstream", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestBreakerOpensAfterUpstreamFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testHTTPConfig(srv.URL)
	cfg.Breaker = circuitbreaker.Config{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 2,
		SuccessThreshold: 1,
	}
	gs := NewGearspace(cfg)
	q := gear.Query{Artist: "a", Song: "b"}

	for i := 0; i < 2; i++ {
		if _, err := gs.Fetch(context.Background(), q); !errors.Is(err, ErrUpstream) {
			t.Fatalf("call %d error = %v", i, err)
		}
	}
	_, err := gs.Fetch(context.Background(), q)
	if !Skippable(err) {
		t.Fatalf("error after threshold = %v, want open breaker", err)
	}
	if calls.Load() != 2 {
		t.Errorf("upstream calls = %d, want 2", calls.Load())
	}
}

func TestRedditFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/r/Guitar+guitarpedals+GuitarAmps+WeAreTheMusicMakers/search.json" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":{"children":[
			{"data":{"title":"Gravity tone","selftext":"Pretty sure it's a Dumble into a Strat."}},
			{"data":{"title":"Gravity live rig","selftext":"The Dumble is key."}}
		]}}`)
	}))
	defer srv.Close()

	rd := NewReddit(rate.NewLimiter(rate.Inf, 1), testHTTPConfig(srv.URL))
	items, err := rd.Fetch(context.Background(), gear.Query{Artist: "John Mayer", Song: "Gravity"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %+v", items)
	}
	if items[0].Claim.Name() != "Dumble Overdrive Special" || items[0].RawConfidence != 65 {
		t.Errorf("top item = %s raw %d", items[0].Claim.Name(), items[0].RawConfidence)
	}
	if items[1].Kind != gear.CategoryGuitar {
		t.Errorf("second item kind = %s", items[1].Kind)
	}
}

func TestYouTubeRequiresKey(t *testing.T) {
	_, err := NewYouTube("", HTTPConfig{}).Fetch(context.Background(), gear.Query{Artist: "a", Song: "b"})
	if !errors.Is(err, ErrNotConfigured) || !Skippable(err) {
		t.Errorf("error = %v, want ErrNotConfigured", err)
	}
}

func TestYouTubeFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "k" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		fmt.Fprint(w, `{"items":[
			{"id":{"videoId":"v1"},"snippet":{"title":"Rig Rundown","description":"His Two-Rock and a Klon."}},
			{"id":{"videoId":"v1"},"snippet":{"title":"Rig Rundown","description":"His Two-Rock and a Klon."}}
		]}`)
	}))
	defer srv.Close()

	items, err := NewYouTube("k", testHTTPConfig(srv.URL)).Fetch(context.Background(), gear.Query{Artist: "a", Song: "b"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %+v", items)
	}
	for _, it := range items {
		if it.RawConfidence != rawYouTube {
			t.Errorf("%s raw = %d; duplicate videos must count once", it.Claim.Name(), it.RawConfidence)
		}
	}
}

func TestWebSearchScrapesPages(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search":
			fmt.Fprintf(w, `{"organic_results":[{"title":"Gravity gear thread","link":"%s/thread","snippet":"What amp?"}]}`, srv.URL)
		case "/thread":
			fmt.Fprint(w, `<html><body><nav>Fender Telecaster</nav><p>It was a Deluxe Reverb with a Timmy.</p></body></html>`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ws := NewWebSearch("key", testHTTPConfig(srv.URL))
	items, err := ws.Fetch(context.Background(), gear.Query{Artist: "a", Song: "b"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	var names []string
	for _, it := range items {
		names = append(names, it.Claim.Name())
	}
	want := []string{"Fender Deluxe Reverb", "Paul Cochrane Timmy"}
	if len(names) != len(want) || names[0] != want[0] || names[1] != want[1] {
		t.Errorf("names = %v, want %v", names, want)
	}
}

func TestFetchHonorsDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewGearspace(testHTTPConfig(srv.URL)).Fetch(ctx, gear.Query{Artist: "a", Song: "b"})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("error = %v, want ErrTimeout", err)
	}
}
