// Package endpoint decides where provider calls go. When the site is served
// from a developer machine the core talks to each provider directly with its
// own credential; anywhere else every call goes through the deployment's
// proxy, which holds the credentials.
package endpoint

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/RobinCoderZhao/frontier/internal/frontier/fetch"
	"github.com/RobinCoderZhao/frontier/internal/frontier/provider"
)

// Provider is the direct-mode location of one provider.
type Provider struct {
	BaseURL string
	APIKey  string
}

// Settings is everything Resolve needs. Credentials are only used in
// direct mode.
type Settings struct {
	// ProxyURL is the proxy base. Empty means the same origin as the
	// site: <ProxyScheme>://<host>/api.
	ProxyURL string
	// ProxyScheme is the scheme of the same-origin proxy. Empty means https.
	ProxyScheme string

	News  Provider
	Image Provider
	Video Provider

	// ImageRedirectURL serves the lighter single-image variant, which
	// answers with a redirect to a photo matching the query.
	ImageRedirectURL string
}

// DefaultSettings returns the public provider locations without
// credentials.
func DefaultSettings() Settings {
	return Settings{
		News:             Provider{BaseURL: "https://newsapi.org"},
		Image:            Provider{BaseURL: "https://api.unsplash.com"},
		Video:            Provider{BaseURL: "https://www.googleapis.com/youtube/v3"},
		ImageRedirectURL: "https://source.unsplash.com",
	}
}

// Mode tells the two endpoint configurations apart.
type Mode int

const (
	ModeProxy Mode = iota + 1
	ModeDirect
)

func (m Mode) String() string {
	switch m {
	case ModeProxy:
		return "proxy"
	case ModeDirect:
		return "direct"
	default:
		return "unknown"
	}
}

// Config is a resolved endpoint configuration: either *Proxy or *Direct.
type Config interface {
	Mode() Mode
	// Target returns the absolute URL for a provider request.
	Target(spec provider.Spec, req provider.Request) (string, error)
	// RepresentativeImage returns the request for the lighter image
	// variant. Direct mode answers with a redirect whose final URL is the
	// image; proxy mode answers with {"url": ...}.
	RepresentativeImage(query string) (fetch.Request, error)
}

// Resolve picks the configuration for a site served from host. Loopback
// hosts resolve to Direct, everything else to Proxy.
func Resolve(host string, s Settings) Config {
	if IsLocal(host) {
		return &Direct{
			providers: map[provider.Kind]Provider{
				provider.KindNews:  s.News,
				provider.KindImage: s.Image,
				provider.KindVideo: s.Video,
			},
			redirectURL: s.ImageRedirectURL,
		}
	}

	base := s.ProxyURL
	if base == "" {
		base = "/api"
		if h := strings.TrimSpace(host); h != "" {
			base = proxyScheme(s.ProxyScheme) + "://" + h + "/api"
		}
	}
	return &Proxy{BaseURL: base}
}

// IsLocal reports whether host names the developer machine. Any port is
// ignored.
func IsLocal(host string) bool {
	h := strings.ToLower(strings.TrimSpace(host))
	if hh, _, err := net.SplitHostPort(h); err == nil {
		h = hh
	}
	switch strings.Trim(h, "[]") {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// Proxy routes every provider through one base URL and names the provider
// with the service parameter.
type Proxy struct {
	BaseURL string
}

func (p *Proxy) Mode() Mode { return ModeProxy }

func (p *Proxy) Target(spec provider.Spec, req provider.Request) (string, error) {
	u, err := absolute(p.BaseURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("service", spec.Service)
	mergeParams(q, req.Params)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (p *Proxy) RepresentativeImage(query string) (fetch.Request, error) {
	u, err := absolute(strings.TrimRight(p.BaseURL, "/") + "/unsplash-redirect")
	if err != nil {
		return fetch.Request{}, err
	}
	u.RawQuery = url.Values{"query": {query}}.Encode()
	return fetch.Request{Method: http.MethodGet, URL: u.String()}, nil
}

// Direct calls each provider at its own base URL with its own credential.
type Direct struct {
	providers   map[provider.Kind]Provider
	redirectURL string
}

func (d *Direct) Mode() Mode { return ModeDirect }

func (d *Direct) Target(spec provider.Spec, req provider.Request) (string, error) {
	p, ok := d.providers[spec.Kind]
	if !ok {
		return "", fmt.Errorf("%w: no direct endpoint for %s", fetch.ErrConfiguration, spec.Kind)
	}
	u, err := absolute(strings.TrimRight(p.BaseURL, "/") + req.Path)
	if err != nil {
		return "", err
	}
	q := u.Query()
	mergeParams(q, req.Params)
	if p.APIKey != "" {
		q.Set(spec.CredentialParam, p.APIKey)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (d *Direct) RepresentativeImage(query string) (fetch.Request, error) {
	u, err := absolute(strings.TrimRight(d.redirectURL, "/") + "/800x450/")
	if err != nil {
		return fetch.Request{}, err
	}
	u.RawQuery = url.QueryEscape(query)
	return fetch.Request{Method: http.MethodHead, URL: u.String()}, nil
}

func proxyScheme(scheme string) string {
	if scheme = strings.ToLower(strings.TrimSpace(scheme)); scheme != "" {
		return scheme
	}
	return "https"
}

func absolute(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: parse endpoint %q: %v", fetch.ErrConfiguration, raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: endpoint %q is not absolute", fetch.ErrConfiguration, raw)
	}
	return u, nil
}

func mergeParams(dst, src url.Values) {
	for k, vs := range src {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}
