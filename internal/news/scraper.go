// Package news scrapes public finance sites for headlines on the
// symbols a watchlist tracks. It supplements the market data surface;
// nothing in the client depends on it.
package news

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"tda-gateway/internal/logger"
	"tda-gateway/internal/types"
)

// Scraper collects headlines from a set of finance news sources.
type Scraper struct {
	sources []Source
	timeout time.Duration
}

// Source describes one site and the selectors that locate headlines.
type Source struct {
	Name       string
	BaseURL    string
	SearchPath string // e.g. "/quote/{symbol}/news"
	Selectors  HeadlineSelectors
	RateLimit  time.Duration
}

// HeadlineSelectors are the CSS selectors for one source's layout.
type HeadlineSelectors struct {
	Container   string
	Title       string
	URL         string
	PublishedAt string
}

func NewScraper(timeout time.Duration) *Scraper {
	return &Scraper{
		sources: defaultSources(),
		timeout: timeout,
	}
}

func defaultSources() []Source {
	return []Source{
		{
			Name:       "YahooFinance",
			BaseURL:    "https://finance.yahoo.com",
			SearchPath: "/quote/{symbol}/news",
			Selectors: HeadlineSelectors{
				Container:   "li.stream-item",
				Title:       "h3",
				URL:         "a",
				PublishedAt: "div.publishing",
			},
			RateLimit: 2 * time.Second,
		},
		{
			Name:       "MarketWatch",
			BaseURL:    "https://www.marketwatch.com",
			SearchPath: "/investing/stock/{symbol}",
			Selectors: HeadlineSelectors{
				Container:   "div.article__content",
				Title:       "a.link",
				URL:         "a.link",
				PublishedAt: "span.article__timestamp",
			},
			RateLimit: 2 * time.Second,
		},
	}
}

// Headlines fetches up to maxHeadlines items for a symbol across all
// sources. A source that fails is logged and skipped.
func (s *Scraper) Headlines(ctx context.Context, symbol string, maxHeadlines int) ([]types.Headline, error) {
	perSource := maxHeadlines / len(s.sources)
	if perSource < 1 {
		perSource = 1
	}

	all := []types.Headline{}
	for _, source := range s.sources {
		headlines, err := s.scrapeSource(ctx, source, symbol, perSource)
		if err != nil {
			logger.ErrorWithErr(ctx, "Failed to scrape source", err, "source", source.Name, "symbol", symbol)
			continue
		}
		all = append(all, headlines...)

		time.Sleep(source.RateLimit)
	}

	logger.Info(ctx, "Headline scraping completed", "symbol", symbol, "headlines", len(all))
	return all, nil
}

func (s *Scraper) scrapeSource(ctx context.Context, source Source, symbol string, maxHeadlines int) ([]types.Headline, error) {
	headlines := []types.Headline{}

	c := colly.NewCollector(
		colly.AllowedDomains(domainOf(source.BaseURL)),
		colly.MaxDepth(1),
		colly.Async(false),
	)
	c.SetRequestTimeout(s.timeout)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	})

	c.OnHTML(source.Selectors.Container, func(e *colly.HTMLElement) {
		if len(headlines) >= maxHeadlines {
			return
		}

		title := strings.TrimSpace(e.ChildText(source.Selectors.Title))
		if title == "" {
			return
		}

		link := e.ChildAttr(source.Selectors.URL, "href")
		if link == "" {
			return
		}
		if !strings.HasPrefix(link, "http") {
			link = source.BaseURL + link
		}

		headlines = append(headlines, types.Headline{
			Symbol:      symbol,
			Title:       title,
			URL:         link,
			Source:      source.Name,
			PublishedAt: strings.TrimSpace(e.ChildText(source.Selectors.PublishedAt)),
		})
	})

	c.OnError(func(r *colly.Response, err error) {
		logger.ErrorWithErr(ctx, "Scraping error", err, "source", source.Name, "url", r.Request.URL.String())
	})

	searchURL := source.BaseURL + strings.ReplaceAll(source.SearchPath, "{symbol}", strings.ToUpper(symbol))
	if err := c.Visit(searchURL); err != nil {
		return nil, fmt.Errorf("failed to visit %s: %w", searchURL, err)
	}
	c.Wait()

	return headlines, nil
}

func domainOf(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
