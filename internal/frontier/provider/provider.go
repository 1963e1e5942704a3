// Package provider describes the third-party content providers the site
// aggregates (news search, image search, video search) and translates
// between their wire formats and the records used by the rest of the core.
package provider

import (
	"fmt"
	"net/url"
	"time"
)

// Kind identifies a provider.
type Kind int

const (
	KindNews Kind = iota + 1
	KindImage
	KindVideo
)

func (k Kind) String() string {
	switch k {
	case KindNews:
		return "news"
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Article is a news record as received from a provider. Title is always
// non-empty; the parsers drop records without one.
type Article struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Author      string    `json:"author"`
	SourceName  string    `json:"sourceName"`
	PublishedAt time.Time `json:"publishedAt"`
	URL         string    `json:"url"`
	ImageURL    string    `json:"imageUrl"`
	Content     string    `json:"content"`
}

// NewsPage is one page of news search results.
type NewsPage struct {
	Articles     []Article `json:"articles"`
	TotalResults int       `json:"totalResults"`
}

// Image is one image search hit.
type Image struct {
	URL             string `json:"url"`
	AttributionName string `json:"attributionName"`
}

// Video is one video search hit.
type Video struct {
	ID           string    `json:"videoId"`
	Title        string    `json:"title"`
	ChannelTitle string    `json:"channelTitle"`
	ThumbnailURL string    `json:"thumbnailUrl"`
	PublishedAt  time.Time `json:"publishedAt"`
}

// WatchURL returns the public page for the video.
func (v Video) WatchURL() string {
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(v.ID)
}

// Query is a provider-specific request description.
type Query interface {
	Kind() Kind
}

// NewsQuery searches the news provider. A non-empty Category selects top
// headlines; otherwise the full-archive search is used.
type NewsQuery struct {
	Category string
	Query    string
	Sources  string
	PageSize int
	Page     int
	SortBy   string
	Language string
}

func (NewsQuery) Kind() Kind { return KindNews }

// ImageQuery searches the image provider.
type ImageQuery struct {
	Query       string
	Page        int
	PerPage     int
	Orientation string
}

func (ImageQuery) Kind() Kind { return KindImage }

// VideoQuery searches the video provider.
type VideoQuery struct {
	Query      string
	Type       string
	MaxResults int
}

func (VideoQuery) Kind() Kind { return KindVideo }

// Request is a provider call before it is bound to an endpoint: a path
// relative to the provider base and its query parameters, credentials
// excluded.
type Request struct {
	Path   string
	Params url.Values
}
