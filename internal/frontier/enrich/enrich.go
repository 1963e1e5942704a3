// Package enrich augments raw provider records with the derived fields the
// site renders: a topic, an image, an optional related video and a stable
// identifier.
package enrich

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"hash/fnv"
	"log/slog"
	"net/url"
	"strings"

	"github.com/RobinCoderZhao/frontier/internal/frontier/provider"
)

// Article is a provider record with its derived fields.
type Article struct {
	provider.Article
	ID    string          `json:"id"`
	Topic string          `json:"topic"`
	Image string          `json:"image"`
	Video *provider.Video `json:"video,omitempty"`
}

// ImageFinder returns one image URL for a topic.
type ImageFinder interface {
	FindImage(ctx context.Context, topic string) (string, error)
}

// VideoFinder returns one video for a topic.
type VideoFinder interface {
	FindVideo(ctx context.Context, topic string) (provider.Video, error)
}

// FallbackImages are the static images substituted when no image can be
// found for a topic.
var FallbackImages = []string{
	"https://images.unsplash.com/photo-1611974789855-9c2a0a7236a3?w=800",
	"https://images.unsplash.com/photo-1590283603385-17ffb3a7f29f?w=800",
	"https://images.unsplash.com/photo-1460925895917-afdab827c52f?w=800",
}

// Pipeline runs the enrichment steps. Either finder may be nil, in which
// case that step degrades as if the provider had failed.
type Pipeline struct {
	images ImageFinder
	videos VideoFinder
	logger *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used for degraded steps.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline creates a pipeline backed by the given finders.
func NewPipeline(images ImageFinder, videos VideoFinder, opts ...Option) *Pipeline {
	p := &Pipeline{
		images: images,
		videos: videos,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Enrich derives topic, image, optional video and id for a. It never fails:
// image and video lookups that go wrong only degrade their own field.
func (p *Pipeline) Enrich(ctx context.Context, a provider.Article, includeVideo bool) Article {
	out := Article{Article: a}
	out.Topic = ExtractTopic(a.Title)
	out.Image = p.resolveImage(ctx, a.ImageURL, out.Topic)
	if includeVideo {
		out.Video = p.resolveVideo(ctx, out.Topic)
	}
	out.ID = ArticleID(a)
	return out
}

func (p *Pipeline) resolveImage(ctx context.Context, current, topic string) string {
	if ValidImageURL(current) {
		return current
	}
	if p.images != nil {
		img, err := p.images.FindImage(ctx, topic)
		if err == nil && ValidImageURL(img) {
			return img
		}
		if err != nil {
			p.logger.Debug("image lookup degraded", "topic", topic, "error", err)
		}
	}
	return FallbackImage(topic)
}

func (p *Pipeline) resolveVideo(ctx context.Context, topic string) *provider.Video {
	if p.videos == nil {
		return nil
	}
	v, err := p.videos.FindVideo(ctx, topic)
	if err != nil || v.ID == "" {
		if err != nil {
			p.logger.Debug("video lookup degraded", "topic", topic, "error", err)
		}
		return nil
	}
	return &v
}

// FallbackImage picks a static image for topic. The same topic always maps
// to the same image.
func FallbackImage(topic string) string {
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(topic)))
	return FallbackImages[h.Sum32()%uint32(len(FallbackImages))]
}

// ValidImageURL reports whether s is an absolute http(s) URL.
func ValidImageURL(s string) bool {
	return isHTTPURL(s)
}

func isHTTPURL(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// ArticleID returns a 16 character URL-safe identifier derived from the
// article URL, or from its title when the URL is missing or invalid.
func ArticleID(a provider.Article) string {
	basis := a.Title
	if isHTTPURL(a.URL) {
		basis = a.URL
	}
	sum := sha256.Sum256([]byte(basis))
	return base64.RawURLEncoding.EncodeToString(sum[:])[:16]
}
