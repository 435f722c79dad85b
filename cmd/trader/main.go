package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"tda-gateway/internal/logger"
	"tda-gateway/internal/types"
)

// frameSink logs inbound streaming frames and signals session teardown.
type frameSink struct {
	closed chan struct{}
}

func (s *frameSink) OnMessage(message []byte) {
	logger.Info(context.Background(), "Stream frame", "payload", string(message))
}

func (s *frameSink) OnClose(err error) {
	if err != nil {
		logger.ErrorWithErr(context.Background(), "Stream session ended", err)
	}
	close(s.closed)
}

func main() {
	if err := initializeSystem(); err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := loadConfig(ctx)
	if err != nil {
		log.Fatal(err)
	}

	client := initializeClient(ctx, cfg)

	if err := client.FetchAccessToken(ctx); err != nil {
		logger.ErrorWithErr(ctx, "Token exchange failed", err)
		os.Exit(1)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	ticker := cfg.Streaming.Ticker
	if ticker == "" {
		ticker = "SPY"
	}

	quote, err := client.GetQuote(ctx, ticker)
	if err != nil {
		logger.Warn(ctx, "Quote fetch failed", "symbol", ticker, "error", err)
	} else {
		logger.Info(ctx, "Quote", "symbol", quote.Symbol,
			"last", quote.Variables["lastPrice"], "bid", quote.Variables["bidPrice"], "ask", quote.Variables["askPrice"])
	}

	history, err := client.GetPriceHistory(ctx, ticker,
		types.PeriodDay, 2, types.FrequencyMinute, 1, false)
	if err != nil {
		logger.Warn(ctx, "Price history fetch failed", "symbol", ticker, "error", err)
	} else {
		logger.Info(ctx, "Price history", "symbol", history.Ticker, "candles", len(history.Candles))
	}

	if cfg.Watchlist.AccountID != "" {
		watchlists, err := client.GetWatchlistsByAccount(ctx, cfg.Watchlist.AccountID)
		if err != nil {
			logger.Warn(ctx, "Watchlist fetch failed", "error", err)
		} else {
			for _, w := range watchlists {
				logger.Info(ctx, "Watchlist", "name", w.Name, "instruments", len(w.Instruments))
			}
		}
	}

	fetchWatchlistHeadlines(ctx, cfg)

	sink := &frameSink{closed: make(chan struct{})}
	if err := client.StartSession(ctx, ticker, sink); err != nil {
		logger.ErrorWithErr(ctx, "Failed to start streaming session", err)
		os.Exit(1)
	}

	select {
	case <-sigc:
		logger.Info(ctx, "Shutting down...")
		if err := client.SendLogoutRequest(ctx); err != nil {
			logger.Warn(ctx, "Logout failed", "error", err)
		}
	case <-sink.closed:
		logger.Info(ctx, "Session closed by peer")
	}

	logger.Shutdown(ctx)
}
