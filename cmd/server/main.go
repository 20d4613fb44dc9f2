package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rpattn/assetmap/internal/assets"
	"github.com/rpattn/assetmap/internal/config"
	"github.com/rpattn/assetmap/internal/db"
	"github.com/rpattn/assetmap/internal/events"
	"github.com/rpattn/assetmap/internal/export"
	"github.com/rpattn/assetmap/internal/ingestion"
	"github.com/rpattn/assetmap/internal/logger"
	"github.com/rpattn/assetmap/internal/metrics"
	"github.com/rpattn/assetmap/internal/middleware"
	"github.com/rpattn/assetmap/internal/repository"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

// storage bundles the repositories for the configured driver.
type storage struct {
	assets repository.AssetStore
	logs   repository.IngestionLogRepository
	ping   func(ctx context.Context) error
	close  func()
}

func main() {
	configPath := flag.String("config", ".", "directory holding config.yaml and .env")
	flag.Parse()

	cfg, fileLoaded, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		logrus.Fatalf("Failed to build logger: %v", err)
	}
	log.WithFields(logrus.Fields{"config_file": fileLoaded, "driver": cfg.Database.Driver}).Info("configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStorage(ctx, cfg.Database, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to open storage")
	}
	defer store.close()

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Events.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.Topic, cfg.Events.Source, log)
		log.WithFields(logrus.Fields{"brokers": cfg.Events.Brokers, "topic": cfg.Events.Topic}).Info("publishing ingestion events")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.WithError(err).Warn("failed to close event publisher")
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	ingestionMetrics := metrics.NewIngestion(registry)

	ingestionService := ingestion.NewService(store.assets, store.logs, publisher, ingestionMetrics, log)
	assetService := assets.NewService(store.assets)

	router := mux.NewRouter()
	router.Use(middleware.LoggingMiddleware(log))
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		pingCtx, pingCancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer pingCancel()
		if err := store.ping(pingCtx); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	ingestion.NewHTTPHandler(ingestionService, cfg.Server.MaxUploadBytes, log).Register(api)
	export.NewHTTPHandler(export.NewService(store.assets, log)).Register(api)
	assets.NewHTTPHandler(assetService, log).Register(api)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      corsHandler.Handler(router),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("Starting asset server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	log.Info("Server exited")
}

func openStorage(ctx context.Context, cfg db.Config, log logrus.FieldLogger) (*storage, error) {
	if cfg.Driver == db.DriverPostgres {
		if err := db.RunMigrations(cfg, log); err != nil {
			return nil, err
		}
		conn, err := db.NewConnection(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return &storage{
			assets: repository.NewAssetRepository(conn),
			logs:   repository.NewIngestionLogRepository(conn.Pool),
			ping:   conn.Pool.Ping,
			close:  conn.Close,
		}, nil
	}

	gdb, err := db.OpenSQLite(cfg.SQLitePath)
	if err != nil {
		return nil, err
	}
	if err := repository.MigrateGorm(gdb); err != nil {
		_ = db.CloseSQLite(gdb)
		return nil, err
	}
	log.WithField("path", cfg.SQLitePath).Info("using embedded sqlite store")

	return &storage{
		assets: repository.NewGormAssetRepository(gdb),
		logs:   repository.NewGormIngestionLogRepository(gdb),
		ping: func(ctx context.Context) error {
			sqlDB, err := gdb.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		close: func() {
			if err := db.CloseSQLite(gdb); err != nil {
				log.WithError(err).Warn("failed to close sqlite")
			}
		},
	}, nil
}
