// Package content is the stateful service behind every page of the site. It
// resolves where provider calls go, serves repeated requests from the cache,
// joins concurrent identical requests, substitutes fallback articles when a
// provider fails and enriches articles for rendering.
package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/RobinCoderZhao/frontier/internal/frontier/cache"
	"github.com/RobinCoderZhao/frontier/internal/frontier/endpoint"
	"github.com/RobinCoderZhao/frontier/internal/frontier/enrich"
	"github.com/RobinCoderZhao/frontier/internal/frontier/fallback"
	"github.com/RobinCoderZhao/frontier/internal/frontier/fetch"
	"github.com/RobinCoderZhao/frontier/internal/frontier/metrics"
	"github.com/RobinCoderZhao/frontier/internal/frontier/provider"
)

const (
	DefaultCategory    = "business"
	defaultPageSize    = 10
	searchPageSize     = 20
	sourcePageSize     = 20
	defaultVideoCount  = 5
	regionVideoCount   = 3
	defaultEnrichLimit = 4
)

var (
	// ErrInvalidArgument reports a request the core refuses to send.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnknownRegion is returned for region names without a query.
	ErrUnknownRegion = fmt.Errorf("unknown region: %w", ErrInvalidArgument)
)

// Page is the result of an article operation. When Fallback is set the
// articles are synthetic and Cause holds the provider failure.
type Page struct {
	Articles     []provider.Article `json:"articles"`
	TotalResults int                `json:"totalResults"`
	Fallback     bool               `json:"fallback"`
	Cause        error              `json:"-"`
}

// Stats is a snapshot of the service state.
type Stats struct {
	Mode         string `json:"mode"`
	CacheEntries int    `json:"cacheEntries"`
	InFlight     int    `json:"inFlight"`
}

// Service serves content for the site. It is safe for concurrent use.
type Service struct {
	endpoint endpoint.Config
	fetcher  *fetch.Fetcher
	store    *cache.Store
	group    *cache.Group
	fallback *fallback.Generator
	pipeline *enrich.Pipeline

	feeds                map[string]string
	representativeImages bool
	enrichLimit          int

	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics records cache, dedup, fetch and fallback metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithFeeds serves the named sources from RSS or Atom feeds instead of the
// news provider.
func WithFeeds(feeds map[string]string) Option {
	return func(s *Service) {
		for name, u := range feeds {
			s.feeds[strings.ToLower(name)] = u
		}
	}
}

// WithRepresentativeImages makes enrichment use the single-image redirect
// variant instead of the structured image search.
func WithRepresentativeImages(on bool) Option {
	return func(s *Service) { s.representativeImages = on }
}

// WithEnrichLimit bounds how many articles EnrichAll processes at once.
func WithEnrichLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.enrichLimit = n
		}
	}
}

// New creates a Service. The store and in-flight registry live as long as
// the Service.
func New(cfg endpoint.Config, fetcher *fetch.Fetcher, store *cache.Store, gen *fallback.Generator, opts ...Option) *Service {
	s := &Service{
		endpoint:    cfg,
		fetcher:     fetcher,
		store:       store,
		group:       cache.NewGroup(),
		fallback:    gen,
		feeds:       make(map[string]string),
		enrichLimit: defaultEnrichLimit,
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	s.pipeline = enrich.NewPipeline(s, s, enrich.WithLogger(s.logger))
	return s
}

// Mode returns the resolved endpoint mode.
func (s *Service) Mode() endpoint.Mode {
	return s.endpoint.Mode()
}

// Stats returns the current cache and in-flight counts.
func (s *Service) Stats() Stats {
	return Stats{
		Mode:         s.endpoint.Mode().String(),
		CacheEntries: s.store.Len(),
		InFlight:     s.group.Len(),
	}
}

// Headlines returns top headlines for a category.
func (s *Service) Headlines(ctx context.Context, category string, pageSize int) (Page, error) {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		category = DefaultCategory
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	fp := cache.Fingerprint("headlines", category, pageSize)
	return s.articles(ctx, "headlines", fp, func() []provider.Article {
		return s.fallback.Category(category)
	}, func(ctx context.Context) (provider.NewsPage, error) {
		return s.fetchNews(ctx, provider.NewsQuery{Category: category, PageSize: pageSize})
	})
}

// Search returns the newest articles matching query.
func (s *Service) Search(ctx context.Context, query string, pageSize, page int) (Page, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Page{}, fmt.Errorf("search: %w: empty query", ErrInvalidArgument)
	}
	if pageSize <= 0 {
		pageSize = searchPageSize
	}
	if page <= 0 {
		page = 1
	}

	fp := cache.Fingerprint("search", query, pageSize, page)
	return s.articles(ctx, "search", fp, func() []provider.Article {
		return s.fallback.Category(query)
	}, func(ctx context.Context) (provider.NewsPage, error) {
		return s.fetchNews(ctx, provider.NewsQuery{
			Query:    query,
			PageSize: pageSize,
			Page:     page,
			SortBy:   "publishedAt",
			Language: "en",
		})
	})
}

// BySource returns the latest articles of one publisher, read from its
// configured feed when there is one.
func (s *Service) BySource(ctx context.Context, source string) (Page, error) {
	source = strings.ToLower(strings.TrimSpace(source))
	if source == "" {
		return Page{}, fmt.Errorf("source: %w: empty source", ErrInvalidArgument)
	}
	gen := func() []provider.Article { return s.fallback.Category(source) }

	if feedURL, ok := s.feeds[source]; ok {
		fp := cache.Fingerprint("feed", source)
		return s.articles(ctx, "feed", fp, gen, func(ctx context.Context) (provider.NewsPage, error) {
			return s.fetchFeed(ctx, feedURL)
		})
	}

	fp := cache.Fingerprint("source", source)
	return s.articles(ctx, "source", fp, gen, func(ctx context.Context) (provider.NewsPage, error) {
		return s.fetchNews(ctx, provider.NewsQuery{Sources: source, PageSize: sourcePageSize})
	})
}

// Region returns the finance news of one world region.
func (s *Service) Region(ctx context.Context, region string, pageSize, page int) (Page, error) {
	region = normalizeRegion(region)
	query, ok := regionQueries[region]
	if !ok {
		return Page{}, fmt.Errorf("region %q: %w", region, ErrUnknownRegion)
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if page <= 0 {
		page = 1
	}

	fp := cache.Fingerprint("region", region, pageSize, page)
	return s.articles(ctx, "region", fp, func() []provider.Article {
		return s.fallback.Region(region)
	}, func(ctx context.Context) (provider.NewsPage, error) {
		return s.fetchNews(ctx, provider.NewsQuery{
			Query:    query,
			PageSize: pageSize,
			Page:     page,
			SortBy:   "publishedAt",
			Language: "en",
		})
	})
}

// Image returns the first image search result for query.
func (s *Service) Image(ctx context.Context, query string, page int) (provider.Image, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		query = enrich.DefaultTopic
	}
	if page <= 0 {
		page = 1
	}

	fp := cache.Fingerprint("image", query, page)
	return load(ctx, s, "image", fp, func(ctx context.Context) (provider.Image, error) {
		images, err := call[[]provider.Image](ctx, s, provider.ImageQuery{Query: query, Page: page, PerPage: 1, Orientation: "landscape"})
		if err != nil {
			return provider.Image{}, err
		}
		if len(images) == 0 {
			return provider.Image{}, fmt.Errorf("image %q: %w", query, fetch.ErrNotFound)
		}
		return images[0], nil
	})
}

// RepresentativeImage resolves one image URL for query with the lighter
// redirect-based variant.
func (s *Service) RepresentativeImage(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		query = enrich.DefaultTopic
	}

	fp := cache.Fingerprint("representative-image", query)
	return load(ctx, s, "representative-image", fp, func(ctx context.Context) (string, error) {
		req, err := s.endpoint.RepresentativeImage(query)
		if err != nil {
			return "", err
		}

		start := time.Now()
		var imageURL string
		resp, err := s.fetcher.FetchInto(ctx, req, func(body []byte) (err error) {
			if s.endpoint.Mode() == endpoint.ModeProxy {
				imageURL, err = provider.ParseRepresentativeImage(body)
			}
			return err
		})
		s.metrics.RecordFetch("image-redirect", fetch.Classify(err), time.Since(start))
		if err != nil {
			return "", configurationError(err)
		}
		if imageURL == "" {
			imageURL = resp.FinalURL
		}
		if !enrich.ValidImageURL(imageURL) {
			return "", fmt.Errorf("representative image %q: %w", query, fetch.ErrMalformedResponse)
		}
		return imageURL, nil
	})
}

// Videos returns up to limit videos matching query.
func (s *Service) Videos(ctx context.Context, query string, limit int) ([]provider.Video, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		query = "finance news"
	}
	if limit <= 0 {
		limit = defaultVideoCount
	}

	fp := cache.Fingerprint("videos", query, limit)
	return load(ctx, s, "videos", fp, func(ctx context.Context) ([]provider.Video, error) {
		videos, err := call[[]provider.Video](ctx, s, provider.VideoQuery{Query: query, Type: "video", MaxResults: limit})
		if err != nil {
			return nil, err
		}
		if len(videos) == 0 {
			return nil, fmt.Errorf("videos %q: %w", query, fetch.ErrNotFound)
		}
		return videos, nil
	})
}

// RegionVideos returns the finance videos of one world region.
func (s *Service) RegionVideos(ctx context.Context, region string) ([]provider.Video, error) {
	region = normalizeRegion(region)
	query, ok := regionVideoQueries[region]
	if !ok {
		return nil, fmt.Errorf("region %q: %w", region, ErrUnknownRegion)
	}
	return s.Videos(ctx, query, regionVideoCount)
}

// FindImage implements enrich.ImageFinder.
func (s *Service) FindImage(ctx context.Context, topic string) (string, error) {
	if s.representativeImages {
		return s.RepresentativeImage(ctx, topic)
	}
	img, err := s.Image(ctx, topic, 1)
	if err != nil {
		return "", err
	}
	return img.URL, nil
}

// FindVideo implements enrich.VideoFinder.
func (s *Service) FindVideo(ctx context.Context, topic string) (provider.Video, error) {
	videos, err := s.Videos(ctx, topic, 1)
	if err != nil {
		return provider.Video{}, err
	}
	return videos[0], nil
}

// Enrich derives the rendering fields of one article.
func (s *Service) Enrich(ctx context.Context, a provider.Article, includeVideo bool) enrich.Article {
	return s.pipeline.Enrich(ctx, a, includeVideo)
}

// EnrichAll enriches articles concurrently and returns them in input
// order.
func (s *Service) EnrichAll(ctx context.Context, articles []provider.Article, includeVideo bool) []enrich.Article {
	out := make([]enrich.Article, len(articles))
	var g errgroup.Group
	g.SetLimit(s.enrichLimit)
	for i, a := range articles {
		g.Go(func() error {
			out[i] = s.pipeline.Enrich(ctx, a, includeVideo)
			return nil
		})
	}
	g.Wait()
	return out
}

// Clear drops every cached result and forgets in-flight registrations.
// Fetches already running still deliver to the callers waiting on them.
func (s *Service) Clear() {
	entries := s.store.Len()
	s.store.Clear()
	s.group.Clear()
	s.metrics.RecordClear()
	s.logger.Info("content cache cleared", "entries", entries)
}

// Refresh clears the cache and then reloads the headlines of the given
// categories. Only configuration errors and cancellation are returned.
func (s *Service) Refresh(ctx context.Context, categories []string) error {
	s.Clear()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.enrichLimit)
	for _, category := range categories {
		g.Go(func() error {
			if _, err := s.Headlines(ctx, category, defaultPageSize); err != nil {
				return fmt.Errorf("warm %s: %w", category, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// articles runs an article operation through cache, dedup and fallback.
func (s *Service) articles(
	ctx context.Context,
	op, fp string,
	gen func() []provider.Article,
	produce func(ctx context.Context) (provider.NewsPage, error),
) (Page, error) {
	np, err := load(ctx, s, op, fp, produce)
	if err == nil {
		return Page{Articles: np.Articles, TotalResults: np.TotalResults}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Page{}, ctxErr
	}
	if errors.Is(err, fetch.ErrConfiguration) {
		s.logger.Error("provider configuration error", "operation", op, "error", err)
		return Page{}, err
	}

	reason := fetch.Classify(err)
	s.logger.Warn("serving fallback content", "operation", op, "reason", reason, "error", err)
	s.metrics.RecordFallback(op, reason)
	records := gen()
	return Page{
		Articles:     records,
		TotalResults: len(records),
		Fallback:     true,
		Cause:        err,
	}, nil
}

// load serves fp from the cache, or runs produce once for all concurrent
// callers and caches a successful result. Failures are never cached.
func load[T any](ctx context.Context, s *Service, op, fp string, produce func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if v, ok := s.store.Get(fp); ok {
		s.metrics.RecordLookup(op, true)
		return v.(T), nil
	}
	s.metrics.RecordLookup(op, false)

	v, err, shared := s.group.Do(ctx, fp, func(ctx context.Context) (any, error) {
		gen := s.store.Generation()
		// A producer that finished between our miss and this flight has
		// already stored the value.
		if v, ok := s.store.Get(fp); ok {
			return v, nil
		}
		val, err := produce(ctx)
		if err != nil {
			return nil, err
		}
		if !s.store.SetIfCurrent(gen, fp, val) {
			s.logger.Debug("dropped result fetched before cache clear", "operation", op)
		}
		return val, nil
	})
	if shared {
		s.metrics.RecordShared(op)
	}
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

func (s *Service) fetchNews(ctx context.Context, q provider.NewsQuery) (provider.NewsPage, error) {
	page, err := call[provider.NewsPage](ctx, s, q)
	if err != nil {
		return provider.NewsPage{}, err
	}
	if len(page.Articles) == 0 {
		return provider.NewsPage{}, fmt.Errorf("news: %w", fetch.ErrNotFound)
	}
	return page, nil
}

func (s *Service) fetchFeed(ctx context.Context, feedURL string) (provider.NewsPage, error) {
	start := time.Now()
	var articles []provider.Article
	_, err := s.fetcher.FetchInto(ctx, fetch.Request{URL: feedURL}, func(body []byte) (err error) {
		articles, err = provider.ParseFeed(body, "")
		return err
	})
	s.metrics.RecordFetch("feed", fetch.Classify(err), time.Since(start))
	if err != nil {
		return provider.NewsPage{}, configurationError(err)
	}
	if len(articles) == 0 {
		return provider.NewsPage{}, fmt.Errorf("feed: %w", fetch.ErrNotFound)
	}
	if len(articles) > sourcePageSize {
		articles = articles[:sourcePageSize]
	}
	return provider.NewsPage{Articles: articles, TotalResults: len(articles)}, nil
}

// call sends one provider request through the resolved endpoint and
// decodes the body with the parser registered for the query kind.
func call[T any](ctx context.Context, s *Service, q provider.Query) (T, error) {
	var zero T
	spec, err := provider.Lookup(q.Kind())
	if err != nil {
		return zero, fmt.Errorf("%w: %v", fetch.ErrConfiguration, err)
	}
	req, err := spec.BuildRequest(q)
	if err != nil {
		return zero, fmt.Errorf("%w: %v", fetch.ErrConfiguration, err)
	}
	target, err := s.endpoint.Target(spec, req)
	if err != nil {
		return zero, err
	}

	var decoded any
	start := time.Now()
	_, err = s.fetcher.FetchInto(ctx, fetch.Request{URL: target}, func(body []byte) (err error) {
		decoded, err = spec.ParseResponse(body)
		return err
	})
	s.metrics.RecordFetch(spec.Kind.String(), fetch.Classify(err), time.Since(start))
	if err != nil {
		return zero, configurationError(err)
	}
	v, ok := decoded.(T)
	if !ok {
		return zero, fmt.Errorf("%s provider decoded %T, want %T: %w", spec.Kind, decoded, zero, fetch.ErrMalformedResponse)
	}
	return v, nil
}

// configurationError marks rejected credentials as ErrConfiguration.
func configurationError(err error) error {
	var httpErr *fetch.HTTPError
	if errors.As(err, &httpErr) && httpErr.Unauthorized() {
		return fmt.Errorf("%w: %w", fetch.ErrConfiguration, err)
	}
	return err
}
