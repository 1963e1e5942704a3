package content

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RobinCoderZhao/frontier/internal/frontier/cache"
	"github.com/RobinCoderZhao/frontier/internal/frontier/endpoint"
	"github.com/RobinCoderZhao/frontier/internal/frontier/enrich"
	"github.com/RobinCoderZhao/frontier/internal/frontier/fallback"
	"github.com/RobinCoderZhao/frontier/internal/frontier/fetch"
	"github.com/RobinCoderZhao/frontier/internal/frontier/provider"
)

const threeArticles = `{"status":"ok","totalResults":3,"articles":[
 {"source":{"name":"Reuters"},"title":"ECB Holds Rates Steady Amid Inflation","url":"https://example.com/1","urlToImage":"https://example.com/1.jpg","publishedAt":"2026-03-02T09:00:00Z"},
 {"source":{"name":"Bloomberg"},"title":"Oil Prices Slide","url":"https://example.com/2","urlToImage":"","publishedAt":"2026-03-02T08:00:00Z"},
 {"source":{"name":"FT"},"title":"Bond Yields Climb","url":"https://example.com/3","publishedAt":"2026-03-02T07:00:00Z"}
]}`

const imageHit = `{"total":1,"results":[{"urls":{"regular":"https://images.example.com/topic.jpg"},"user":{"name":"Ann"}}]}`

const videoHit = `{"items":[{"id":{"videoId":"vid1"},"snippet":{"title":"Markets today","channelTitle":"Finance Daily","thumbnails":{"high":{"url":"https://i.example.com/vid1.jpg"}}}}]}`

// fakeProviders serves the news, image and video APIs from one test server
// and counts calls per path.
type fakeProviders struct {
	srv *httptest.Server

	mu       sync.Mutex
	calls    map[string]int
	handlers map[string]http.HandlerFunc
}

func newFakeProviders(t *testing.T) *fakeProviders {
	t.Helper()
	f := &fakeProviders{
		calls:    make(map[string]int),
		handlers: make(map[string]http.HandlerFunc),
	}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.calls[r.URL.Path]++
		h := f.handlers[r.URL.Path]
		f.mu.Unlock()
		if h == nil {
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeProviders) handle(path string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[path] = h
}

func (f *fakeProviders) respond(path string, status int, body string) {
	f.handle(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	})
}

func (f *fakeProviders) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func (f *fakeProviders) settings() endpoint.Settings {
	return endpoint.Settings{
		News:             endpoint.Provider{BaseURL: f.srv.URL, APIKey: "news-key"},
		Image:            endpoint.Provider{BaseURL: f.srv.URL, APIKey: "image-key"},
		Video:            endpoint.Provider{BaseURL: f.srv.URL + "/youtube/v3", APIKey: "video-key"},
		ImageRedirectURL: f.srv.URL + "/redirect",
	}
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	svc   *Service
	fake  *fakeProviders
	clock *clock
}

func newHarness(t *testing.T, timeout time.Duration, opts ...Option) *harness {
	t.Helper()
	fake := newFakeProviders(t)
	clk := &clock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}

	store, err := cache.NewStore(cache.DefaultTTL, 64, cache.WithClock(clk.Now))
	if err != nil {
		t.Fatal(err)
	}
	fetcher := fetch.New(fetch.Options{Timeout: timeout})
	svc := New(
		endpoint.Resolve("localhost", fake.settings()),
		fetcher,
		store,
		fallback.New(fallback.Options{}),
		opts...,
	)
	return &harness{svc: svc, fake: fake, clock: clk}
}

func TestHeadlines_CachedWithinTTL(t *testing.T) {
	h := newHarness(t, time.Second)
	h.fake.respond("/v2/top-headlines", http.StatusOK, threeArticles)
	ctx := context.Background()

	first, err := h.svc.Headlines(ctx, "business", 3)
	if err != nil {
		t.Fatal(err)
	}
	second, err := h.svc.Headlines(ctx, "business", 3)
	if err != nil {
		t.Fatal(err)
	}

	if first.Fallback || len(first.Articles) != 3 {
		t.Fatalf("expected 3 real articles, got %+v", first)
	}
	if &first.Articles[0] != &second.Articles[0] {
		t.Fatal("second call should return the cached array")
	}
	if n := h.fake.count("/v2/top-headlines"); n != 1 {
		t.Fatalf("expected 1 network call, got %d", n)
	}
}

func TestHeadlines_ConcurrentWavesFetchOnce(t *testing.T) {
	h := newHarness(t, time.Second)
	h.fake.respond("/v2/top-headlines", http.StatusOK, threeArticles)
	ctx := context.Background()

	const callers, rounds = 64, 200
	for range rounds {
		var wg sync.WaitGroup
		for range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				page, err := h.svc.Headlines(ctx, "business", 3)
				if err != nil || page.Fallback {
					t.Errorf("unexpected result: %+v, %v", page, err)
				}
			}()
		}
		wg.Wait()
	}

	if n := h.fake.count("/v2/top-headlines"); n != 1 {
		t.Fatalf("expected exactly 1 network call within the TTL, got %d", n)
	}
}

func TestHeadlines_RefetchAfterTTL(t *testing.T) {
	h := newHarness(t, time.Second)
	h.fake.respond("/v2/top-headlines", http.StatusOK, threeArticles)
	ctx := context.Background()

	if _, err := h.svc.Headlines(ctx, "business", 3); err != nil {
		t.Fatal(err)
	}
	h.clock.Advance(cache.DefaultTTL)
	if _, err := h.svc.Headlines(ctx, "business", 3); err != nil {
		t.Fatal(err)
	}
	if n := h.fake.count("/v2/top-headlines"); n != 2 {
		t.Fatalf("expected a new network call after the TTL, got %d calls", n)
	}
}

func TestRegion_RateLimitedServesFallback(t *testing.T) {
	h := newHarness(t, time.Second)
	h.fake.respond("/v2/everything", http.StatusTooManyRequests, `{"error":"Too many requests"}`)
	ctx := context.Background()

	page, err := h.svc.Region(ctx, "europe", 10, 1)
	if err != nil {
		t.Fatalf("rate limit must not surface as an error, got %v", err)
	}
	if !page.Fallback {
		t.Fatal("expected fallback page")
	}
	if !errors.Is(page.Cause, fetch.ErrRateLimited) {
		t.Fatalf("expected RateLimited cause, got %v", page.Cause)
	}
	if len(page.Articles) < 2 || len(page.Articles) > 3 {
		t.Fatalf("expected 2-3 fallback articles, got %d", len(page.Articles))
	}
	if page.Articles[0].Title != "Europe Markets Update" {
		t.Fatalf("unexpected fallback title %q", page.Articles[0].Title)
	}

	if _, err := h.svc.Region(ctx, "europe", 10, 1); err != nil {
		t.Fatal(err)
	}
	if n := h.fake.count("/v2/everything"); n != 2 {
		t.Fatalf("fallback results must not be cached, got %d calls", n)
	}
}

func TestSearch_StaggeredCallersShareOneFetch(t *testing.T) {
	h := newHarness(t, time.Second)
	h.fake.handle("/v2/everything", func(w http.ResponseWriter, r *http.Request) {
		if q := r.URL.Query().Get("q"); q != "stock market" {
			t.Errorf("unexpected query %q", q)
		}
		time.Sleep(200 * time.Millisecond)
		fmt.Fprint(w, threeArticles)
	})

	var wg sync.WaitGroup
	pages := make([]Page, 2)
	for i := range pages {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := h.svc.Search(context.Background(), "stock market", 0, 0)
			if err != nil {
				t.Error(err)
			}
			pages[i] = p
		}(i)
		time.Sleep(10 * time.Millisecond)
	}
	wg.Wait()

	if n := h.fake.count("/v2/everything"); n != 1 {
		t.Fatalf("expected exactly 1 network call, got %d", n)
	}
	if len(pages[0].Articles) != 3 || &pages[0].Articles[0] != &pages[1].Articles[0] {
		t.Fatal("expected both callers to receive the identical result")
	}
	if st := h.svc.Stats(); st.InFlight != 0 {
		t.Fatalf("expected no in-flight registration afterwards, got %d", st.InFlight)
	}
}

func TestEnrich_MissingImageResolvedByTopic(t *testing.T) {
	h := newHarness(t, time.Second)
	h.fake.handle("/search/photos", func(w http.ResponseWriter, r *http.Request) {
		if q := r.URL.Query().Get("query"); q != "Holds Rates Steady" {
			t.Errorf("unexpected image query %q", q)
		}
		fmt.Fprint(w, imageHit)
	})

	out := h.svc.Enrich(context.Background(), provider.Article{
		Title: "ECB Holds Rates Steady Amid Inflation",
		URL:   "https://example.com/ecb",
	}, false)

	if out.Topic != "Holds Rates Steady" {
		t.Fatalf("unexpected topic %q", out.Topic)
	}
	if out.Image != "https://images.example.com/topic.jpg" {
		t.Fatalf("unexpected image %q", out.Image)
	}
}

func TestEnrich_ImageProviderDownUsesStaticImage(t *testing.T) {
	h := newHarness(t, time.Second)
	h.fake.respond("/search/photos", http.StatusInternalServerError, `{"error":"boom"}`)

	out := h.svc.Enrich(context.Background(), provider.Article{Title: "Bond Yields Climb"}, false)
	if out.Image != enrich.FallbackImage(out.Topic) {
		t.Fatalf("expected static fallback image, got %q", out.Image)
	}
}

func TestEnrichAll_PreservesOrderWithVideo(t *testing.T) {
	h := newHarness(t, time.Second, WithEnrichLimit(2))
	h.fake.respond("/search/photos", http.StatusOK, imageHit)
	h.fake.respond("/youtube/v3/search", http.StatusOK, videoHit)

	in := []provider.Article{
		{Title: "Oil Prices Slide", URL: "https://example.com/a"},
		{Title: "Bond Yields Climb", URL: "https://example.com/b"},
		{Title: "Gold Rallies Again", URL: "https://example.com/c"},
	}
	out := h.svc.EnrichAll(context.Background(), in, true)
	if len(out) != len(in) {
		t.Fatalf("expected %d articles, got %d", len(in), len(out))
	}
	for i := range in {
		if out[i].Title != in[i].Title {
			t.Fatalf("article %d out of order: %q", i, out[i].Title)
		}
		if out[i].Video == nil || out[i].Video.ID != "vid1" {
			t.Fatalf("article %d: expected video, got %+v", i, out[i].Video)
		}
	}
}

func TestHeadlines_UnauthorizedSurfacesConfigurationError(t *testing.T) {
	h := newHarness(t, time.Second)
	h.fake.respond("/v2/top-headlines", http.StatusUnauthorized, `{"status":"error","code":"apiKeyMissing","message":"Your API key is missing."}`)

	page, err := h.svc.Headlines(context.Background(), "business", 3)
	if !errors.Is(err, fetch.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if page.Fallback || len(page.Articles) != 0 {
		t.Fatalf("configuration errors must not be masked by fallback content: %+v", page)
	}
}

func TestHeadlines_ZeroResultsServesFallback(t *testing.T) {
	h := newHarness(t, time.Second)
	h.fake.respond("/v2/top-headlines", http.StatusOK, `{"status":"ok","totalResults":0,"articles":[]}`)

	page, err := h.svc.Headlines(context.Background(), "technology", 5)
	if err != nil {
		t.Fatal(err)
	}
	if !page.Fallback || !errors.Is(page.Cause, fetch.ErrNotFound) {
		t.Fatalf("expected not-found fallback, got %+v", page)
	}
	if len(page.Articles) != 3 || page.Articles[0].Title != "Latest Technology Headlines" {
		t.Fatalf("unexpected fallback articles %+v", page.Articles)
	}
	if h.svc.Stats().CacheEntries != 0 {
		t.Fatal("empty results must not be cached")
	}
}

func TestHeadlines_MalformedServesFallback(t *testing.T) {
	h := newHarness(t, time.Second)
	h.fake.respond("/v2/top-headlines", http.StatusOK, `{"status":"ok"}`)

	page, err := h.svc.Headlines(context.Background(), "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if !errors.Is(page.Cause, fetch.ErrMalformedResponse) {
		t.Fatalf("expected malformed cause, got %v", page.Cause)
	}
}

func TestHeadlines_TimeoutIsBounded(t *testing.T) {
	h := newHarness(t, 100*time.Millisecond)
	h.fake.handle("/v2/top-headlines", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(3 * time.Second):
		}
	})

	start := time.Now()
	page, err := h.svc.Headlines(context.Background(), "business", 3)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatal(err)
	}
	if !errors.Is(page.Cause, fetch.ErrTimeout) {
		t.Fatalf("expected timeout cause, got %v", page.Cause)
	}
	if elapsed > time.Second {
		t.Fatalf("call took %s, expected about the 100ms deadline", elapsed)
	}
}

func TestRegion_Unknown(t *testing.T) {
	h := newHarness(t, time.Second)
	if _, err := h.svc.Region(context.Background(), "antarctica", 0, 0); !errors.Is(err, ErrUnknownRegion) {
		t.Fatalf("expected ErrUnknownRegion, got %v", err)
	}
	if _, err := h.svc.RegionVideos(context.Background(), "antarctica"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	h := newHarness(t, time.Second)
	if _, err := h.svc.Search(context.Background(), "  ", 0, 0); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestBySource_Feed(t *testing.T) {
	h := newHarness(t, time.Second)
	h.fake.handle("/feeds/wire.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, `<?xml version="1.0"?><rss version="2.0"><channel><title>Wire</title>
<item><title>Asian Shares Climb</title><link>https://wire.example.com/1</link><pubDate>Mon, 02 Mar 2026 08:00:00 +0000</pubDate></item>
</channel></rss>`)
	})
	WithFeeds(map[string]string{"Wire": h.fake.srv.URL + "/feeds/wire.xml"})(h.svc)

	page, err := h.svc.BySource(context.Background(), "wire")
	if err != nil {
		t.Fatal(err)
	}
	if page.Fallback || len(page.Articles) != 1 || page.Articles[0].SourceName != "Wire" {
		t.Fatalf("unexpected feed page %+v", page)
	}
	if h.fake.count("/v2/everything") != 0 {
		t.Fatal("feed sources must not hit the news provider")
	}
}

func TestBySource_NewsProvider(t *testing.T) {
	h := newHarness(t, time.Second)
	h.fake.handle("/v2/everything", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("sources") != "reuters" || r.URL.Query().Get("apiKey") != "news-key" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, threeArticles)
	})

	page, err := h.svc.BySource(context.Background(), "Reuters")
	if err != nil || page.Fallback {
		t.Fatalf("unexpected result %+v %v", page, err)
	}
}

func TestRepresentativeImage_DirectFollowsRedirect(t *testing.T) {
	h := newHarness(t, time.Second)
	h.fake.handle("/redirect/800x450/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected HEAD, got %s", r.Method)
		}
		http.Redirect(w, r, "/photos/ecb.jpg", http.StatusFound)
	})
	h.fake.respond("/photos/ecb.jpg", http.StatusOK, "")

	u, err := h.svc.RepresentativeImage(context.Background(), "central bank")
	if err != nil {
		t.Fatal(err)
	}
	if u != h.fake.srv.URL+"/photos/ecb.jpg" {
		t.Fatalf("unexpected image URL %q", u)
	}
}

func TestRepresentativeImage_Proxy(t *testing.T) {
	fake := newFakeProviders(t)
	fake.handle("/api/unsplash-redirect", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"url": "https://images.example.com/%s.jpg"}`, url.PathEscape(r.URL.Query().Get("query")))
	})
	store, _ := cache.NewStore(0, 0)
	svc := New(
		endpoint.Resolve("frontier.example.com", endpoint.Settings{ProxyURL: fake.srv.URL + "/api"}),
		fetch.New(fetch.Options{Timeout: time.Second}),
		store,
		fallback.New(fallback.Options{}),
		WithRepresentativeImages(true),
	)

	out := svc.Enrich(context.Background(), provider.Article{Title: "Gold Rallies"}, false)
	if out.Image != "https://images.example.com/Gold%20Rallies.jpg" {
		t.Fatalf("unexpected image %q", out.Image)
	}
}

func TestClear_ForcesRefetch(t *testing.T) {
	h := newHarness(t, time.Second)
	h.fake.respond("/v2/top-headlines", http.StatusOK, threeArticles)
	ctx := context.Background()

	h.svc.Headlines(ctx, "business", 3)
	h.svc.Clear()
	if h.svc.Stats().CacheEntries != 0 {
		t.Fatal("expected empty cache after Clear")
	}
	h.svc.Headlines(ctx, "business", 3)
	if n := h.fake.count("/v2/top-headlines"); n != 2 {
		t.Fatalf("expected refetch after Clear, got %d calls", n)
	}
}

func TestClear_FetchInProgressDoesNotRepopulate(t *testing.T) {
	h := newHarness(t, time.Second)
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	h.fake.handle("/v2/top-headlines", func(w http.ResponseWriter, r *http.Request) {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, threeArticles)
	})
	ctx := context.Background()

	done := make(chan Page)
	go func() {
		page, _ := h.svc.Headlines(ctx, "business", 3)
		done <- page
	}()

	<-entered
	h.svc.Clear()
	close(release)

	page := <-done
	if page.Fallback || len(page.Articles) != 3 {
		t.Fatalf("waiting caller should still get the fetched page, got %+v", page)
	}
	if n := h.svc.Stats().CacheEntries; n != 0 {
		t.Fatalf("fetch started before Clear repopulated the cache with %d entries", n)
	}

	if _, err := h.svc.Headlines(ctx, "business", 3); err != nil {
		t.Fatal(err)
	}
	if n := h.fake.count("/v2/top-headlines"); n != 2 {
		t.Fatalf("expected a fresh fetch after Clear, got %d calls", n)
	}
}

func TestRefresh_WarmsCategories(t *testing.T) {
	h := newHarness(t, time.Second)
	var categories atomic.Int32
	h.fake.handle("/v2/top-headlines", func(w http.ResponseWriter, r *http.Request) {
		categories.Add(1)
		fmt.Fprint(w, threeArticles)
	})

	if err := h.svc.Refresh(context.Background(), []string{"business", "technology"}); err != nil {
		t.Fatal(err)
	}
	if categories.Load() != 2 || h.svc.Stats().CacheEntries != 2 {
		t.Fatalf("expected 2 warmed categories, got %d calls and %d entries", categories.Load(), h.svc.Stats().CacheEntries)
	}
}

func TestVideos(t *testing.T) {
	h := newHarness(t, time.Second)
	h.fake.handle("/youtube/v3/search", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "video-key" || r.URL.Query().Get("maxResults") != "3" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, videoHit)
	})

	videos, err := h.svc.RegionVideos(context.Background(), "Asia")
	if err != nil {
		t.Fatal(err)
	}
	if len(videos) != 1 || videos[0].ID != "vid1" {
		t.Fatalf("unexpected videos %+v", videos)
	}
}

func TestRegions(t *testing.T) {
	got := Regions()
	want := []string{"africa", "americas", "asia", "australia", "europe"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("Regions() = %v, want %v", got, want)
	}
}
