package provider

import (
	"fmt"
	"net/url"
	"strconv"
)

// Spec binds a provider kind to its request builder and response parser.
type Spec struct {
	Kind Kind
	// Service is the name the proxy endpoint dispatches on.
	Service string
	// CredentialParam is the query parameter that carries the API key in
	// direct mode.
	CredentialParam string

	build func(q Query) Request
	parse func(body []byte) (any, error)
}

// BuildRequest translates q into a provider request.
func (s Spec) BuildRequest(q Query) (Request, error) {
	if q == nil || q.Kind() != s.Kind {
		return Request{}, fmt.Errorf("%s provider cannot serve %T", s.Kind, q)
	}
	return s.build(q), nil
}

// ParseResponse validates and decodes a provider body. The concrete result
// is NewsPage, []Image or []Video depending on Kind.
func (s Spec) ParseResponse(body []byte) (any, error) {
	return s.parse(body)
}

var registry = map[Kind]Spec{
	KindNews: {
		Kind:            KindNews,
		Service:         "newsApi",
		CredentialParam: "apiKey",
		build:           func(q Query) Request { return buildNews(q.(NewsQuery)) },
		parse:           func(b []byte) (any, error) { return ParseNews(b) },
	},
	KindImage: {
		Kind:            KindImage,
		Service:         "unsplash",
		CredentialParam: "client_id",
		build:           func(q Query) Request { return buildImage(q.(ImageQuery)) },
		parse:           func(b []byte) (any, error) { return ParseImages(b) },
	},
	KindVideo: {
		Kind:            KindVideo,
		Service:         "youtube",
		CredentialParam: "key",
		build:           func(q Query) Request { return buildVideo(q.(VideoQuery)) },
		parse:           func(b []byte) (any, error) { return ParseVideos(b) },
	},
}

// Lookup returns the spec registered for k.
func Lookup(k Kind) (Spec, error) {
	s, ok := registry[k]
	if !ok {
		return Spec{}, fmt.Errorf("no provider registered for %s", k)
	}
	return s, nil
}

// Kinds lists every registered provider kind.
func Kinds() []Kind {
	return []Kind{KindNews, KindImage, KindVideo}
}

func buildNews(q NewsQuery) Request {
	p := url.Values{}
	path := "/v2/everything"
	if q.Category != "" {
		path = "/v2/top-headlines"
		p.Set("category", q.Category)
	}
	setNonEmpty(p, "q", q.Query)
	setNonEmpty(p, "sources", q.Sources)
	setPositive(p, "pageSize", q.PageSize)
	setPositive(p, "page", q.Page)
	setNonEmpty(p, "sortBy", q.SortBy)
	setNonEmpty(p, "language", q.Language)
	return Request{Path: path, Params: p}
}

func buildImage(q ImageQuery) Request {
	query := q.Query
	if query == "" {
		query = "finance"
	}
	orientation := q.Orientation
	if orientation == "" {
		orientation = "landscape"
	}
	perPage := q.PerPage
	if perPage <= 0 {
		perPage = 1
	}

	p := url.Values{}
	p.Set("query", query)
	setPositive(p, "page", q.Page)
	p.Set("per_page", strconv.Itoa(perPage))
	p.Set("orientation", orientation)
	return Request{Path: "/search/photos", Params: p}
}

func buildVideo(q VideoQuery) Request {
	query := q.Query
	if query == "" {
		query = "finance news"
	}
	typ := q.Type
	if typ == "" {
		typ = "video"
	}
	maxResults := q.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}

	p := url.Values{}
	p.Set("q", query)
	p.Set("part", "snippet")
	p.Set("type", typ)
	p.Set("maxResults", strconv.Itoa(maxResults))
	return Request{Path: "/search", Params: p}
}

func setNonEmpty(p url.Values, key, value string) {
	if value != "" {
		p.Set(key, value)
	}
}

func setPositive(p url.Values, key string, n int) {
	if n > 0 {
		p.Set(key, strconv.Itoa(n))
	}
}
