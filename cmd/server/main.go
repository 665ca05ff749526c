package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"tradeassist/internal/app"
	"tradeassist/internal/config"
	"tradeassist/internal/httpapi"
	"tradeassist/internal/httpx"
	"tradeassist/internal/logx"
	"tradeassist/internal/order"
	"tradeassist/internal/provider/ranked"
	"tradeassist/internal/sentiment"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load("")
	log := logx.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	timeout := time.Duration(cfg.Server.RequestTimeoutSec) * time.Second
	httpClient := httpx.New(timeout)

	sources, err := app.NewSources(cfg, httpClient, log)
	if err != nil {
		log.Fatalf("providers: %v", err)
	}

	symbols := sentiment.DefaultSymbols()
	if cfg.Sentiment.SymbolTableFile != "" {
		if symbols, err = sentiment.LoadSymbols(cfg.Sentiment.SymbolTableFile); err != nil {
			log.Fatalf("symbol table: %v", err)
		}
	}
	news := sentiment.NewService(log,
		sentiment.WithURL(cfg.Sentiment.URL),
		sentiment.WithHTTPClient(httpClient),
		sentiment.WithSymbols(symbols),
	)

	probeCtx, cancelProbe := context.WithTimeout(ctx, 10*time.Second)
	sources.Probe(probeCtx, cfg.MStock.ProbeSymbol, log)
	cancelProbe()

	gin.SetMode(gin.ReleaseMode)
	handler := httpapi.NewHandler(httpapi.Deps{
		Market:         sources.Chain,
		Yahoo:          sources.Yahoo,
		Orders:         order.NewService(sources.Broker(), log),
		News:           news,
		Watchlist:      cfg.Watchlist,
		Logger:         log,
		RequestTimeout: timeout,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      timeout + ranked.DefaultFallbackBudget + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.WithField("providers", sources.Chain.Names()).Infof("server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("server shutdown: %v", err)
	}
}
