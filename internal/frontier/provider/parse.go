package provider

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/RobinCoderZhao/frontier/pkg/htmltext"
)

// removedTitle marks articles the news provider has withdrawn.
const removedTitle = "[Removed]"

type newsAPIResponse struct {
	Status       string            `json:"status"`
	TotalResults int               `json:"totalResults"`
	Articles     *[]newsAPIArticle `json:"articles"`
	Message      string            `json:"message"`
}

type newsAPIArticle struct {
	Source struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"source"`
	Author      string `json:"author"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	URLToImage  string `json:"urlToImage"`
	PublishedAt string `json:"publishedAt"`
	Content     string `json:"content"`
}

// ParseNews decodes a news search response. The body must carry an
// "articles" array; records without a usable title are dropped.
func ParseNews(body []byte) (NewsPage, error) {
	var resp newsAPIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return NewsPage{}, fmt.Errorf("decode news response: %w", err)
	}
	if resp.Status == "error" {
		return NewsPage{}, fmt.Errorf("news response reported error: %s", resp.Message)
	}
	if resp.Articles == nil {
		return NewsPage{}, errors.New("news response has no articles array")
	}

	page := NewsPage{
		Articles:     make([]Article, 0, len(*resp.Articles)),
		TotalResults: resp.TotalResults,
	}
	for _, a := range *resp.Articles {
		title := htmltext.Plain(a.Title)
		if title == "" || title == removedTitle {
			continue
		}
		page.Articles = append(page.Articles, Article{
			Title:       title,
			Description: htmltext.Plain(a.Description),
			Author:      strings.TrimSpace(a.Author),
			SourceName:  strings.TrimSpace(a.Source.Name),
			PublishedAt: parseTime(a.PublishedAt),
			URL:         strings.TrimSpace(a.URL),
			ImageURL:    strings.TrimSpace(a.URLToImage),
			Content:     htmltext.Snippet(a.Content),
		})
	}
	if page.TotalResults < len(page.Articles) {
		page.TotalResults = len(page.Articles)
	}
	return page, nil
}

type unsplashResponse struct {
	Results *[]struct {
		URLs struct {
			Regular string `json:"regular"`
			Small   string `json:"small"`
			Full    string `json:"full"`
		} `json:"urls"`
		User struct {
			Name string `json:"name"`
		} `json:"user"`
	} `json:"results"`
}

// ParseImages decodes an image search response. The body must carry a
// "results" array.
func ParseImages(body []byte) ([]Image, error) {
	var resp unsplashResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode image response: %w", err)
	}
	if resp.Results == nil {
		return nil, errors.New("image response has no results array")
	}

	images := make([]Image, 0, len(*resp.Results))
	for _, r := range *resp.Results {
		u := firstNonEmpty(r.URLs.Regular, r.URLs.Small, r.URLs.Full)
		if u == "" {
			continue
		}
		images = append(images, Image{URL: u, AttributionName: r.User.Name})
	}
	return images, nil
}

type youtubeThumb struct {
	URL string `json:"url"`
}

type youtubeResponse struct {
	Items *[]struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			PublishedAt  string `json:"publishedAt"`
			Title        string `json:"title"`
			ChannelTitle string `json:"channelTitle"`
			Thumbnails   struct {
				Default youtubeThumb `json:"default"`
				Medium  youtubeThumb `json:"medium"`
				High    youtubeThumb `json:"high"`
			} `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}

// ParseVideos decodes a video search response. The body must carry an
// "items" array; entries that are not videos are skipped.
func ParseVideos(body []byte) ([]Video, error) {
	var resp youtubeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode video response: %w", err)
	}
	if resp.Items == nil {
		return nil, errors.New("video response has no items array")
	}

	videos := make([]Video, 0, len(*resp.Items))
	for _, it := range *resp.Items {
		if it.ID.VideoID == "" {
			continue
		}
		th := it.Snippet.Thumbnails
		videos = append(videos, Video{
			ID:           it.ID.VideoID,
			Title:        htmltext.Plain(it.Snippet.Title),
			ChannelTitle: htmltext.Plain(it.Snippet.ChannelTitle),
			ThumbnailURL: firstNonEmpty(th.High.URL, th.Medium.URL, th.Default.URL),
			PublishedAt:  parseTime(it.Snippet.PublishedAt),
		})
	}
	return videos, nil
}

// ParseRepresentativeImage decodes the proxy's single-image answer
// ({"url": "..."}).
func ParseRepresentativeImage(body []byte) (string, error) {
	var resp struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode image redirect response: %w", err)
	}
	if strings.TrimSpace(resp.URL) == "" {
		return "", errors.New("image redirect response has no url")
	}
	return strings.TrimSpace(resp.URL), nil
}

// ParseFeed decodes an RSS, Atom or JSON feed into articles. sourceName
// overrides the feed's own title when set.
func ParseFeed(body []byte, sourceName string) ([]Article, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	if sourceName == "" {
		sourceName = strings.TrimSpace(feed.Title)
	}

	articles := make([]Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		title := htmltext.Plain(item.Title)
		if title == "" {
			continue
		}

		var published time.Time
		switch {
		case item.PublishedParsed != nil:
			published = *item.PublishedParsed
		case item.UpdatedParsed != nil:
			published = *item.UpdatedParsed
		}

		var author string
		if len(item.Authors) > 0 && item.Authors[0] != nil {
			author = item.Authors[0].Name
		}

		var image string
		if item.Image != nil {
			image = item.Image.URL
		} else {
			for _, enc := range item.Enclosures {
				if enc != nil && strings.HasPrefix(enc.Type, "image/") {
					image = enc.URL
					break
				}
			}
		}

		articles = append(articles, Article{
			Title:       title,
			Description: htmltext.Plain(item.Description),
			Author:      strings.TrimSpace(author),
			SourceName:  sourceName,
			PublishedAt: published,
			URL:         strings.TrimSpace(item.Link),
			ImageURL:    strings.TrimSpace(image),
			Content:     htmltext.Snippet(firstNonEmpty(item.Content, item.Description)),
		})
	}
	return articles, nil
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, time.RFC1123Z, time.RFC1123} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
