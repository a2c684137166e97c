package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jmisilo/hackyeah-2025-sub000/internal/config"
	"github.com/jmisilo/hackyeah-2025-sub000/internal/handler"
	"github.com/jmisilo/hackyeah-2025-sub000/internal/middleware"
	"github.com/jmisilo/hackyeah-2025-sub000/internal/network"
	"github.com/jmisilo/hackyeah-2025-sub000/internal/planner"
	"github.com/jmisilo/hackyeah-2025-sub000/internal/routing"
	"github.com/jmisilo/hackyeah-2025-sub000/internal/storage"
)

// DBError represents a database-related error.
type DBError struct {
	Op  string
	Err error
}

func (e *DBError) Error() string {
	return fmt.Sprintf("db error during %q: %v", e.Op, e.Err)
}

func (e *DBError) Unwrap() error { return e.Err }

// App holds the application-level dependencies.
type App struct {
	DB     *pgxpool.Pool
	Router *gin.Engine
	cfg    *config.Config
}

// New initializes the application: connects to Postgres, runs migrations,
// loads the static transit network into memory, wires the planner, and
// configures the HTTP engine with routes.
func New(cfg *config.Config) (*App, error) {
	// --- Database pool ---
	poolCfg, err := pgxpool.ParseConfig(cfg.DBDSN)
	if err != nil {
		return nil, &DBError{Op: "parse_dsn", Err: err}
	}

	poolCfg.MaxConns = 20
	poolCfg.MaxConnLifetime = 30 * time.Second
	poolCfg.MaxConnIdleTime = 10 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, &DBError{Op: "connect", Err: err}
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, &DBError{Op: "ping", Err: err}
	}

	log.Println("database connection pool established")

	// --- Migrations ---
	if err := storage.RunMigrations(context.Background(), pool); err != nil {
		return nil, fmt.Errorf("app: run migrations: %w", err)
	}

	log.Println("database schema up to date")

	// --- Static transit network ---
	networkRepo := storage.NewNetworkRepository(pool)
	dataset, err := networkRepo.LoadDataset(context.Background())
	if err != nil {
		return nil, fmt.Errorf("app: load transit network: %w", err)
	}
	index := network.NewIndex(dataset)
	log.Printf("transit network loaded: %d stops, %d lines", len(dataset.Stops), len(dataset.Lines))

	// --- Planner tunables ---
	tunables, err := config.LoadTunables(cfg.TunablesPath)
	if err != nil {
		return nil, fmt.Errorf("app: load planner tunables: %w", err)
	}

	// --- Routing ---
	var cacheStore routing.CacheStore
	switch cfg.RouteCacheBackend {
	case "postgres":
		cacheStore = routing.NewPgCacheStore(pool)
	default:
		cacheStore = routing.NewMemoryStore(routing.CacheTTL)
	}

	googleRouter := routing.NewGoogleRouter(cfg.GoogleAPIKey)
	cachedRouter := routing.NewCachedRouter(
		googleRouter,
		cacheStore,
		routing.WithLogger(log.Printf),
	)

	// --- Planner ---
	rng := planner.NewRand(time.Now().UnixNano())
	generator := planner.NewGenerator(index, cachedRouter, rng, tunables)
	tripPlanner := planner.New(index, generator, tunables)

	// --- HTTP engine ---
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.Timeout(30 * time.Second))

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	h := handler.New(index, tripPlanner)

	api := router.Group("/api/v1")
	{
		api.GET("/stops/nearby", h.ListStopsNear)
		api.POST("/trips/plan", h.PlanTrip)
	}

	return &App{DB: pool, Router: router, cfg: cfg}, nil
}

// Shutdown releases the application's resources.
func (a *App) Shutdown() {
	if a.DB != nil {
		a.DB.Close()
	}
}
