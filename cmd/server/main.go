package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pauljones0/dealboard/internal/api"
	"github.com/pauljones0/dealboard/internal/config"
	"github.com/pauljones0/dealboard/internal/deals"
	"github.com/pauljones0/dealboard/internal/graph"
	"github.com/pauljones0/dealboard/internal/home"
	"github.com/pauljones0/dealboard/internal/metrics"
	"github.com/pauljones0/dealboard/internal/notifier"
	"github.com/pauljones0/dealboard/internal/scraper"
	"github.com/pauljones0/dealboard/internal/storage"
	"github.com/pauljones0/dealboard/internal/validator"
)

func main() {
	slog.Info("Starting deal board server...")
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Critical error loading configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	store, err := storage.New(ctx, cfg.ProjectID, cfg.Location)
	if err != nil {
		slog.Error("Critical error initializing Firestore client", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	health := map[string]api.HealthChecker{"firestore": store}
	var follows api.FollowGraph = store
	if cfg.FollowGraphBackend == config.FollowGraphNeo4j {
		g, err := graph.New(ctx, cfg.Neo4jURI, cfg.Neo4jUsername, cfg.Neo4jPassword)
		if err != nil {
			slog.Error("Critical error connecting to Neo4j", "error", err)
			os.Exit(1)
		}
		defer g.Close(context.Background())
		follows = g
		health["neo4j"] = g
		slog.Info("Follow graph stored in Neo4j", "uri", cfg.Neo4jURI)
	}

	aggregator := home.New(home.Dependencies{
		Deals:       store,
		Users:       store,
		Restaurants: store,
		Tags:        store,
		DealTags:    store,
		Votes:       store,
		Follows:     follows,
	}, cfg.Location)

	v := validator.New()
	n := notifier.New(cfg.DiscordWebhookURL, cfg.Location)
	if !n.Enabled() {
		slog.Info("DISCORD_WEBHOOK_URL not set, deal announcements disabled")
	}
	var dealOpts []deals.Option
	if cfg.SourcePreviews {
		dealOpts = append(dealOpts, deals.WithPreviewer(scraper.New()))
	}
	dealSvc := deals.New(store, aggregator, n, v, cfg.PublicBaseURL, dealOpts...)

	router := api.NewRouter(api.Dependencies{
		Feed:        aggregator,
		Deals:       dealSvc,
		DealStore:   store,
		Users:       store,
		Restaurants: store,
		Tags:        store,
		Votes:       store,
		Follows:     follows,
		Comments:    store,
		Search:      store,
		Metrics:     metrics.NewCollector("dealboard"),
		Validator:   v,
		Health:      health,
	}, api.Options{
		AuthEmailHeader:  cfg.AuthEmailHeader,
		WriteRateLimit:   cfg.WriteRateLimit,
		WriteRateBurst:   cfg.WriteRateBurst,
		CommentsPageSize: cfg.CommentsPageSize,
		RequestTimeout:   30 * time.Second,
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		sig := <-sigCh
		slog.Info("Received signal, shutting down gracefully...", "signal", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}
	}()

	slog.Info("Listening on port", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("Failed to listen and serve", "error", err)
		os.Exit(1)
	}

	// Announcements still in flight finish before the clients close.
	dealSvc.Wait()
	slog.Info("Server stopped.")
}
