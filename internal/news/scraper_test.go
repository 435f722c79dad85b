package news

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const newsPage = `<html><body>
<div class="story"><h3>First headline</h3><a href="/articles/1">read</a><span class="when">1h ago</span></div>
<div class="story"><h3>Second headline</h3><a href="https://elsewhere.example.com/2">read</a><span class="when">2h ago</span></div>
<div class="story"><h3></h3><a href="/articles/3">no title</a></div>
<div class="story"><h3>Third headline</h3><a href="/articles/4">read</a></div>
</body></html>`

func testSource(server *httptest.Server) Source {
	return Source{
		Name:       "TestWire",
		BaseURL:    server.URL,
		SearchPath: "/quote/{symbol}/news",
		Selectors: HeadlineSelectors{
			Container:   "div.story",
			Title:       "h3",
			URL:         "a",
			PublishedAt: "span.when",
		},
	}
}

func TestScrapeSource(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(newsPage))
	}))
	defer server.Close()

	scraper := &Scraper{timeout: 5 * time.Second}
	headlines, err := scraper.scrapeSource(context.Background(), testSource(server), "spy", 10)
	if err != nil {
		t.Fatalf("scrapeSource returned error: %v", err)
	}

	if gotPath != "/quote/SPY/news" {
		t.Errorf("Symbol should be uppercased in the search path, got %s", gotPath)
	}

	// The empty-title entry is dropped.
	if len(headlines) != 3 {
		t.Fatalf("Expected 3 headlines, got %d", len(headlines))
	}

	first := headlines[0]
	if first.Title != "First headline" || first.Symbol != "spy" || first.Source != "TestWire" {
		t.Errorf("Unexpected headline: %+v", first)
	}
	if first.URL != server.URL+"/articles/1" {
		t.Errorf("Relative link should be resolved against the source, got %s", first.URL)
	}
	if first.PublishedAt != "1h ago" {
		t.Errorf("Unexpected publish time: %s", first.PublishedAt)
	}

	// Absolute links pass through untouched.
	if headlines[1].URL != "https://elsewhere.example.com/2" {
		t.Errorf("Absolute link should be kept, got %s", headlines[1].URL)
	}
}

func TestScrapeSourceRespectsLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(newsPage))
	}))
	defer server.Close()

	scraper := &Scraper{timeout: 5 * time.Second}
	headlines, err := scraper.scrapeSource(context.Background(), testSource(server), "SPY", 1)
	if err != nil {
		t.Fatalf("scrapeSource returned error: %v", err)
	}
	if len(headlines) != 1 {
		t.Errorf("Expected limit of 1 headline, got %d", len(headlines))
	}
}

func TestDomainOf(t *testing.T) {
	if got := domainOf("https://finance.yahoo.com/quote"); got != "finance.yahoo.com" {
		t.Errorf("Expected finance.yahoo.com, got %s", got)
	}
	if got := domainOf("://bad"); got != "" {
		t.Errorf("Expected empty domain for bad url, got %s", got)
	}
}
