package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"tda-gateway/internal/logger"
	"tda-gateway/internal/news"
	"tda-gateway/internal/store"
	"tda-gateway/internal/tda"
	"tda-gateway/internal/trace"

	"github.com/joho/godotenv"
)

// initializeSystem initializes environment, logger, and tracer
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}

	return nil
}

// loadConfig loads and returns the configuration
func loadConfig(ctx context.Context) (*store.Config, error) {
	cfg, err := store.LoadConfig("config.yaml")
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err)
		return nil, err
	}
	return cfg, nil
}

// initializeClient builds the market client from configuration
func initializeClient(ctx context.Context, cfg *store.Config) *tda.Client {
	client := tda.New(tda.Params{
		APIKey:         cfg.APIKey,
		RefreshToken:   cfg.RefreshToken,
		BaseURL:        cfg.API.BaseURL,
		StreamerScheme: cfg.API.StreamerScheme,
		Timeout:        time.Duration(cfg.API.TimeoutSeconds) * time.Second,
	})

	logger.Info(ctx, "Market client initialized")
	return client
}

// fetchWatchlistHeadlines scrapes headlines for the configured symbols
func fetchWatchlistHeadlines(ctx context.Context, cfg *store.Config) {
	if !cfg.News.Enabled || len(cfg.Watchlist.Symbols) == 0 {
		return
	}

	scraper := news.NewScraper(15 * time.Second)
	for _, symbol := range cfg.Watchlist.Symbols {
		headlines, err := scraper.Headlines(ctx, symbol, cfg.News.MaxHeadlines)
		if err != nil {
			logger.Warn(ctx, "Headline fetch failed", "symbol", symbol, "error", err)
			continue
		}
		for _, h := range headlines {
			logger.Info(ctx, "Headline", "symbol", h.Symbol, "source", h.Source, "title", h.Title)
		}
	}
}
