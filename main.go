package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	"ms-events/internal/auth"
	"ms-events/internal/catalog"
	"ms-events/internal/config"
	"ms-events/internal/database"
	"ms-events/internal/database/migrations"
	"ms-events/internal/events"
	"ms-events/internal/events/event_api"
	"ms-events/internal/kafka"
	"ms-events/internal/logger"
	"ms-events/internal/middleware"
	"ms-events/internal/venues"
)

// app holds the dependencies shared by the commands.
type app struct {
	cfg       *config.Config
	log       *logger.Logger
	db        *bun.DB
	sports    *catalog.Catalog
	redis     *redis.Client
	projector *venues.Projector
	venueMap  events.VenueProjector
	repo      *events.Repository
}

func newApp(ctx context.Context) (*app, error) {
	dotenv := config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(logger.Options{
		Service: cfg.Log.Service,
		Dir:     cfg.Log.Dir,
		Level:   cfg.Log.Level,
	})
	if err != nil {
		return nil, err
	}
	if dotenv {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	} else {
		log.Debug("CONFIG", ".env file not found, using environment variables")
	}

	sports, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		log.Close()
		return nil, err
	}
	log.Info("CATALOG", fmt.Sprintf("Loaded %d sport types", len(sports.All())))

	db, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Close()
		return nil, err
	}

	a := &app{cfg: cfg, log: log, db: db, sports: sports}
	a.projector = venues.NewProjector(db)
	a.venueMap = a.projector

	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			log.Warn("REDIS", fmt.Sprintf("Redis at %s unreachable, venue cache will fall back to the database: %v", cfg.Redis.Addr, err))
		} else {
			log.Info("REDIS", fmt.Sprintf("✅ Redis connection successful to %s", cfg.Redis.Addr))
		}
		a.venueMap = venues.NewCachedProjector(a.projector, a.redis, cfg.Redis.VenueTTL, log)
	}

	a.repo = events.NewRepository(db, sports, venues.NewResolver(log), a.venueMap, log)
	return a, nil
}

// prepareSchema applies migrations on PostgreSQL and creates tables on SQLite.
func (a *app) prepareSchema(ctx context.Context) error {
	if a.cfg.Database.Driver == "sqlite" {
		return database.CreateSchema(ctx, a.db)
	}
	runner := migrations.NewRunner(a.db, a.log)
	defer runner.Close()
	return runner.MigrateUp()
}

func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	a.db.Close()
	a.log.Close()
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ms-events",
		Short:         "Sports events service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newMigrateCommand())
	cmd.AddCommand(newSeedCommand())
	cmd.AddCommand(newWatchCommand())
	return cmd
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	log := a.log

	log.Info("APP", "Starting events service initialization")

	if a.cfg.Database.MigrateOnStart {
		if err := a.prepareSchema(ctx); err != nil {
			return fmt.Errorf("failed to prepare schema: %w", err)
		}
	}
	if a.cfg.Database.SeedData {
		if _, err := database.Seed(ctx, a.db, a.sports, a.repo, log); err != nil {
			log.Error("SEED", err.Error())
		}
	}

	verifier, err := auth.NewVerifier(ctx, a.cfg.Auth.Mode, a.cfg.Auth.Issuer)
	if err != nil {
		return err
	}
	if verifier == nil {
		log.Warn("AUTH", "Authentication disabled, mutating routes are open")
	} else {
		log.Info("AUTH", fmt.Sprintf("Bearer authentication enabled (mode: %s)", a.cfg.Auth.Mode))
	}

	var publisher event_api.Publisher
	if a.cfg.Kafka.Enabled {
		producer := kafka.NewProducer(a.cfg.Kafka.Brokers, a.cfg.Kafka.TopicPrefix, log)
		defer producer.Close()
		if err := kafka.EnsureTopicsExist(ctx, a.cfg.Kafka.Brokers, producer.Topics(), log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		publisher = producer
		log.Info("KAFKA", "Kafka producer initialized successfully")
	}

	handler := event_api.NewHandler(a.repo, a.projector, a.sports, publisher, log)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(log))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Accept", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	handler.RegisterRoutes(r, auth.Middleware(verifier, log))

	server := &http.Server{
		Addr:         a.cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  a.cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Events service running on %s", a.cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-stop:
		log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	case err := <-serverErr:
		return fmt.Errorf("HTTP server error: %w", err)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info("HTTP", "✅ Events service shutdown complete")
	return nil
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "ms-events: %v\n", err)
		os.Exit(1)
	}
}
