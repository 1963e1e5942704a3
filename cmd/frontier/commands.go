package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/RobinCoderZhao/frontier/internal/frontier/assistant"
	"github.com/RobinCoderZhao/frontier/internal/frontier/content"
	"github.com/RobinCoderZhao/frontier/internal/frontier/enrich"
	"github.com/RobinCoderZhao/frontier/internal/frontier/fetch"
	"github.com/RobinCoderZhao/frontier/internal/frontier/provider"
	"github.com/RobinCoderZhao/frontier/pkg/llm"
)

const commandTimeout = 60 * time.Second

func headlinesCmd(g *globals) *cobra.Command {
	var category string
	var pageSize int
	var video bool

	cmd := &cobra.Command{
		Use:   "headlines",
		Short: "Print top headlines for a category",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArticles(g, video, func(ctx context.Context, svc *content.Service) (content.Page, error) {
				return svc.Headlines(ctx, category, pageSize)
			})
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", content.DefaultCategory, "news category")
	cmd.Flags().IntVarP(&pageSize, "page-size", "n", 0, "number of articles")
	cmd.Flags().BoolVar(&video, "video", false, "attach a related video to each article")
	return cmd
}

func searchCmd(g *globals) *cobra.Command {
	var pageSize, page int
	var video bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search all news for a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runArticles(g, video, func(ctx context.Context, svc *content.Service) (content.Page, error) {
				return svc.Search(ctx, query, pageSize, page)
			})
		},
	}

	cmd.Flags().IntVarP(&pageSize, "page-size", "n", 0, "number of articles")
	cmd.Flags().IntVarP(&page, "page", "p", 1, "result page")
	cmd.Flags().BoolVar(&video, "video", false, "attach a related video to each article")
	return cmd
}

func sourceCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "source <id>",
		Short: "Print the latest articles of one source",
		Long:  "Print the latest articles of a news source id, or of the RSS/Atom feed configured for it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArticles(g, false, func(ctx context.Context, svc *content.Service) (content.Page, error) {
				return svc.BySource(ctx, args[0])
			})
		},
	}
}

func regionCmd(g *globals) *cobra.Command {
	var pageSize, page int

	cmd := &cobra.Command{
		Use:       "region <name>",
		Short:     "Print finance news of a world region",
		Args:      cobra.ExactArgs(1),
		ValidArgs: content.Regions(),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArticles(g, false, func(ctx context.Context, svc *content.Service) (content.Page, error) {
				return svc.Region(ctx, args[0], pageSize, page)
			})
		},
	}

	cmd.Flags().IntVarP(&pageSize, "page-size", "n", 0, "number of articles")
	cmd.Flags().IntVarP(&page, "page", "p", 1, "result page")
	return cmd
}

func videosCmd(g *globals) *cobra.Command {
	var limit int
	var region string

	cmd := &cobra.Command{
		Use:   "videos [query]",
		Short: "Print finance videos",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			svc, err := g.newService(nil)
			if err != nil {
				return err
			}
			var videos []provider.Video
			if region != "" {
				videos, err = svc.RegionVideos(ctx, region)
			} else {
				videos, err = svc.Videos(ctx, strings.Join(args, " "), limit)
			}
			if err != nil {
				return err
			}
			if g.asJSON {
				return printJSON(os.Stdout, videos)
			}
			for i, v := range videos {
				fmt.Printf("%d. %s\n   %s | %s\n", i+1, v.Title, v.ChannelTitle, v.WatchURL())
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "max", "m", 0, "maximum number of videos")
	cmd.Flags().StringVarP(&region, "region", "r", "", "videos of a world region instead of a query")
	return cmd
}

func imageCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "image <query>",
		Short: "Print the image URL chosen for a topic",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			svc, err := g.newService(nil)
			if err != nil {
				return err
			}
			url, err := svc.FindImage(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if g.asJSON {
				return printJSON(os.Stdout, map[string]string{"url": url})
			}
			fmt.Println(url)
			return nil
		},
	}
}

func askCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the reader assistant a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !g.cfg.AssistantEnabled() {
				return fmt.Errorf("%w: set GEMINI_KEY or llm.api_key", fetch.ErrConfiguration)
			}
			client, err := llm.NewClient(g.cfg.LLM)
			if err != nil {
				return fmt.Errorf("create LLM client: %w", err)
			}
			defer client.Close()

			a := assistant.New(client, assistant.WithTimeout(g.cfg.LLM.Timeout), assistant.WithLogger(g.logger))
			reply, err := a.Ask(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if g.asJSON {
				return printJSON(os.Stdout, reply)
			}
			fmt.Println(reply.Text)
			return nil
		},
	}
}

// runArticles runs one article operation, enriches the result and prints it.
func runArticles(g *globals, video bool, op func(ctx context.Context, svc *content.Service) (content.Page, error)) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	svc, err := g.newService(nil)
	if err != nil {
		return err
	}
	page, err := op(ctx, svc)
	if err != nil {
		return err
	}
	articles := svc.EnrichAll(ctx, page.Articles, video)

	if g.asJSON {
		out := struct {
			Articles     []enrich.Article `json:"articles"`
			TotalResults int              `json:"totalResults"`
			Fallback     bool             `json:"fallback"`
			Cause        string           `json:"cause,omitempty"`
		}{Articles: articles, TotalResults: page.TotalResults, Fallback: page.Fallback}
		if page.Cause != nil {
			out.Cause = fetch.Classify(page.Cause)
		}
		return printJSON(os.Stdout, out)
	}
	printArticles(os.Stdout, page, articles)
	return nil
}

func printArticles(w io.Writer, page content.Page, articles []enrich.Article) {
	if page.Fallback {
		fmt.Fprintf(w, "(providers unavailable: %s; showing placeholder articles)\n\n", fetch.Classify(page.Cause))
	}
	for i, a := range articles {
		fmt.Fprintf(w, "%d. %s\n", i+1, a.Title)
		meta := []string{a.SourceName}
		if !a.PublishedAt.IsZero() {
			meta = append(meta, a.PublishedAt.Local().Format("2006-01-02 15:04"))
		}
		meta = append(meta, "topic: "+a.Topic)
		fmt.Fprintf(w, "   %s\n   %s\n", strings.Join(meta, " | "), a.URL)
		if a.Video != nil {
			fmt.Fprintf(w, "   video: %s\n", a.Video.WatchURL())
		}
	}
	fmt.Fprintf(w, "\n%d of %d results\n", len(articles), page.TotalResults)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
