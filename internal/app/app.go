package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/sundayezeilo/shortlinks/internal/config"
	"github.com/sundayezeilo/shortlinks/internal/db/migrations"
	db "github.com/sundayezeilo/shortlinks/internal/db/sqlc"
	"github.com/sundayezeilo/shortlinks/internal/server"
	"github.com/sundayezeilo/shortlinks/internal/shortener"
	"github.com/sundayezeilo/shortlinks/sluggen"
)

// App holds the application dependencies and configuration.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	DBPool  *pgxpool.Pool
	Redis   *redis.Client
	Server  *server.Server
	Handler *shortener.Handler
}

// New initializes and returns a new App instance with all dependencies wired up.
func New(ctx context.Context) (*App, error) {
	if err := loadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := setupLogger(cfg)

	logger.Info("starting application",
		"env", cfg.App.Environment,
		"version", cfg.Observability.ServiceVersion,
		"storage", cfg.Database.Backend,
	)

	a := &App{Config: cfg, Logger: logger}

	repo, err := a.setupRepository(ctx)
	if err != nil {
		_ = a.Shutdown()
		return nil, err
	}

	gen, err := newCodeGenerator(cfg.Shortener.CodeAlphabet)
	if err != nil {
		_ = a.Shutdown()
		return nil, err
	}

	svc := shortener.NewService(repo, &shortener.ServiceConfig{
		CodeGenerator:  gen,
		CodeMaxRetries: cfg.Shortener.CodeMaxRetries,
		RedirectDomain: cfg.Shortener.RedirectDomain,
		DefaultTTL:     cfg.Shortener.DefaultTTL(),
	})
	a.Handler = shortener.NewHandler(shortener.HandlerConfig{
		Service: svc,
		Logger:  logger,
	})

	a.Server = server.New(cfg, logger, a.Handler)

	logger.Info("application initialized",
		"port", cfg.Server.Port,
		"redirect_domain", cfg.Shortener.RedirectDomain,
		"code_alphabet", cfg.Shortener.CodeAlphabet,
		"cache", cfg.Redis.Enabled,
	)

	return a, nil
}

// Start starts the application server.
func (a *App) Start(ctx context.Context) error {
	a.Logger.Info("server starting",
		"port", a.Config.Server.Port,
	)

	if err := a.Server.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown() error {
	a.Logger.Info("shutting down application")

	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Warn("failed to close redis client", "error", err)
		} else {
			a.Logger.Info("redis connection closed")
		}
	}

	if a.DBPool != nil {
		a.DBPool.Close()
		a.Logger.Info("database connection closed")
	}

	return nil
}

// setupRepository builds the configured link store, optionally fronted by
// the Redis cache.
func (a *App) setupRepository(ctx context.Context) (shortener.Repository, error) {
	cfg := a.Config

	var repo shortener.Repository
	switch cfg.Database.Backend {
	case config.BackendMemory:
		a.Logger.Warn("using in-memory storage; links are lost on restart")
		repo = shortener.NewMemoryRepository()

	default:
		if cfg.Database.AutoMigrate {
			if err := migrations.Run(cfg.Database.URL(), a.Logger); err != nil {
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}

		pool, err := connectDatabase(ctx, cfg, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.DBPool = pool
		repo = shortener.NewRepository(db.New(pool))
	}

	if !cfg.Redis.Enabled {
		return repo, nil
	}

	rdb, err := connectRedis(ctx, cfg, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	a.Redis = rdb

	return shortener.NewCachedRepository(repo, rdb, shortener.CacheConfig{
		KeyPrefix: cfg.Redis.KeyPrefix,
		MissTTL:   cfg.Redis.MissTTL,
		Logger:    a.Logger,
	}), nil
}

func newCodeGenerator(alphabet string) (sluggen.Generator, error) {
	switch alphabet {
	case config.AlphabetHex:
		return sluggen.NewHex(), nil
	case config.AlphabetBase62:
		return sluggen.NewBase62(), nil
	default:
		return nil, fmt.Errorf("unknown code alphabet: %s", alphabet)
	}
}

// loadEnv loads .env file only in non-production environments.
func loadEnv() error {
	env := os.Getenv("APP_ENV")
	if env == "development" || env == "test" {
		if err := godotenv.Load(); err != nil {
			log.Println("no .env file found.")
		}
	}
	return nil
}

// setupLogger creates a structured JSON logger tagged with the service identity.
func setupLogger(cfg *config.Config) *slog.Logger {
	var logLevel slog.Level
	switch cfg.App.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler).With(
		"service", cfg.Observability.ServiceName,
		"env", cfg.App.Environment,
	)
}

// connectDatabase establishes a connection to the PostgreSQL database.
func connectDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	// Set pool configuration
	poolConfig.MaxConns = cfg.Database.MaxConns
	poolConfig.MinConns = cfg.Database.MinConns

	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established")

	return pool, nil
}

// connectRedis opens and pings the cache connection.
func connectRedis(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	logger.Info("connecting to redis", "addr", cfg.Redis.Addr, "db", cfg.Redis.DB)

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	logger.Info("redis connection established")
	return rdb, nil
}
