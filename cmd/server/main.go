package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/liamcoop/rulebuilder/catalog"
	"github.com/liamcoop/rulebuilder/internal/config"
	"github.com/liamcoop/rulebuilder/internal/logger"
	"github.com/liamcoop/rulebuilder/rules"

	_ "github.com/lib/pq"
)

// openStore connects the configured rule store. The returned closer releases
// its connection.
func openStore(ctx context.Context, cfg config.StoreConfig) (rules.RuleStore, func(), error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		db, err := sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to ping database: %w", err)
		}
		return rules.NewPostgresRuleStore(db), func() { db.Close() }, nil

	case config.BackendNATS:
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("rulebuilder"))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		js, err := jetstream.New(nc)
		if err != nil {
			nc.Close()
			return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
		}
		store, err := rules.OpenNATSRuleStore(ctx, js, cfg.NATSBucket)
		if err != nil {
			nc.Close()
			return nil, nil, err
		}
		return store, nc.Close, nil

	default:
		return rules.NewInMemoryRuleStore(), func() {}, nil
	}
}

// openCatalog returns the static catalog when a file is configured, and the
// cached HTTP catalog otherwise.
func openCatalog(cfg config.CatalogConfig) (catalog.Catalog, error) {
	if cfg.File != "" {
		return catalog.LoadStaticCatalog(cfg.File)
	}
	httpCat := catalog.NewHTTPCatalog(cfg.BaseURL, cfg.Token, cfg.Timeout)
	if cfg.CacheTTL == 0 {
		return httpCat, nil
	}
	return catalog.NewCachedCatalog(httpCat, catalog.CacheConfig{TTL: cfg.CacheTTL}), nil
}

func main() {
	configPath := flag.String("config", os.Getenv("RULEBUILDER_CONFIG"), "Path to TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", "error", err)
	}

	ctx := context.Background()
	if err := logger.Setup(ctx, logger.Options{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: cfg.Log.ServiceName,
		SampleRate:  cfg.Log.SampleRate,
	}); err != nil {
		logger.Warn("logger setup incomplete", "error", err)
	}

	store, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		logger.Fatal("failed to open rule store", "backend", cfg.Store.Backend, "error", err)
	}
	defer closeStore()

	cat, err := openCatalog(cfg.Catalog)
	if err != nil {
		logger.Fatal("failed to open task catalog", "error", err)
	}

	engine, err := rules.NewEngine(store, cat, rules.EngineConfig{
		PlaceholderPrefix: cfg.Rules.PlaceholderPrefix,
		ProvenanceTag:     cfg.Rules.ProvenanceTag,
	})
	if err != nil {
		logger.Fatal("failed to create engine", "error", err)
	}

	server := NewServer(engine, store, cfg.Store.Backend, cfg.Server.SlowRequest)

	httpServer := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Server.Port, "store", cfg.Store.Backend)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := logger.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "logger shutdown error: %v\n", err)
	}

	logger.Info("server stopped")
}
