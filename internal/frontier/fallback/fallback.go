// Package fallback produces the synthetic articles shown when a provider
// cannot supply real ones. The records have the same shape and required
// fields as provider articles, so rendering code cannot tell them apart.
package fallback

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/RobinCoderZhao/frontier/internal/frontier/provider"
)

// Options configures a Generator.
type Options struct {
	// SiteName is used as author organisation and source name.
	SiteName string `yaml:"site_name"`
	// BaseURL roots the site-local canonical URLs of synthetic articles.
	BaseURL string `yaml:"base_url" env:"FRONTIER_SITE_URL"`
	// ImageURL is the default image of every synthetic article.
	ImageURL string `yaml:"image_url"`
}

// DefaultOptions returns the stock site identity.
func DefaultOptions() Options {
	return Options{
		SiteName: "The Financial Frontier",
		BaseURL:  "http://localhost:8080",
		ImageURL: "https://images.unsplash.com/photo-1611974789855-9c2a0a7236a3?w=800",
	}
}

// Generator builds fallback articles.
type Generator struct {
	opts Options
	now  func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// New creates a Generator. Empty fields in opts take their defaults.
func New(opts Options, o ...Option) *Generator {
	def := DefaultOptions()
	if opts.SiteName == "" {
		opts.SiteName = def.SiteName
	}
	if opts.BaseURL == "" {
		opts.BaseURL = def.BaseURL
	}
	if opts.ImageURL == "" {
		opts.ImageURL = def.ImageURL
	}
	g := &Generator{
		opts: opts,
		now:  time.Now,
	}
	for _, fn := range o {
		fn(g)
	}
	return g
}

// Region returns the two synthetic articles for a regional page.
func (g *Generator) Region(region string) []provider.Article {
	region = strings.TrimSpace(region)
	if region == "" {
		region = "global"
	}
	name := titleCase(region)
	return []provider.Article{
		g.article(
			name+" Markets Update",
			"Latest financial news from "+region,
			fmt.Sprintf("Live coverage from %s is temporarily unavailable. Check back shortly for the latest market moves.", name),
			"Regional Correspondent",
		),
		g.article(
			"Economic Outlook for "+region,
			"Analysis of current economic conditions",
			fmt.Sprintf("Our analysts track growth, inflation and policy across %s. Fresh reporting will appear here once it is available.", name),
			"Financial Analyst",
		),
	}
}

// Category returns the three synthetic articles for a category, search
// query or source page.
func (g *Generator) Category(label string) []provider.Article {
	label = strings.TrimSpace(label)
	if label == "" {
		label = "finance"
	}
	name := titleCase(label)
	return []provider.Article{
		g.article(
			"Latest "+name+" Headlines",
			"The top "+label+" stories from around the world",
			"Live "+label+" headlines are temporarily unavailable. Check back shortly for updates.",
			"Newsroom",
		),
		g.article(
			name+" Outlook",
			"What analysts are watching in "+label,
			"Our analysts follow the forces shaping "+label+". Fresh analysis will appear here once it is available.",
			"Financial Analyst",
		),
		g.article(
			name+" Briefing",
			"Key "+label+" developments in brief",
			"A short briefing on "+label+" will be published here as soon as new reporting arrives.",
			"Editorial Desk",
		),
	}
}

func (g *Generator) article(title, description, content, author string) provider.Article {
	return provider.Article{
		Title:       title,
		Description: description,
		Content:     content,
		Author:      author,
		SourceName:  g.opts.SiteName,
		PublishedAt: g.now().UTC(),
		URL:         g.canonical(title),
		ImageURL:    g.opts.ImageURL,
	}
}

func (g *Generator) canonical(title string) string {
	return strings.TrimRight(g.opts.BaseURL, "/") + "/articles/" + url.PathEscape(slug(title))
}

// Casers are stateful, so each call gets its own.
func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

func slug(s string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
			dash = false
			continue
		}
		if !dash && sb.Len() > 0 {
			sb.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(sb.String(), "-")
}
