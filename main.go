package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"xandpulse/config"
	"xandpulse/handlers"
	"xandpulse/logger"
	"xandpulse/middleware"
	"xandpulse/services"
	"xandpulse/utils"
)

func main() {
	// 1. Config
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if !logger.SetLevel(cfg.Log.Level) {
		logger.Warn().Str("level", cfg.Log.Level).Msg("unknown log level, keeping info")
	}

	logger.Info().
		Str("server", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)).
		Str("redis", cfg.Redis.Address).
		Bool("redis_enabled", cfg.Redis.Enabled).
		Str("seeds", strings.Join(cfg.Server.SeedNodes, ",")).
		Str("current_version", cfg.Scoring.CurrentVersion).
		Msg("configuration loaded")

	// 2. Pipeline
	dataset, err := loadDataset(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load location dataset")
	}

	geo, err := utils.NewGeoResolver(dataset, cfg.GeoIP.DBPath)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.GeoIP.DBPath).Msg("GeoIP database unavailable, using dataset and heuristics")
	}
	defer geo.Close()

	scorer := utils.NewHealthScorer(utils.DefaultScoringConfig().WithCurrentVersion(cfg.Scoring.CurrentVersion))
	transformer := utils.NewTransformer(geo, scorer)
	if cfg.Scoring.CurrentVersion != "" {
		transformer.Versions.CurrentStable = cfg.Scoring.CurrentVersion
	}
	if cfg.Scoring.StableIdentities {
		transformer.Suffix = utils.StableIdentitySuffix
	}

	// 3. Services
	prpc := services.NewPRPCClient(cfg)
	collector := services.NewCollector(prpc, cfg.Server.SeedNodes, cfg.PRPC.Concurrency)
	aggregator := services.NewDataAggregator(collector, transformer)
	cache := services.NewCacheService(cfg, aggregator)

	// 4. Web Server Setup
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.LoggerMiddleware())
	e.Use(middleware.CORSMiddleware(cfg.Server.AllowedOrigins))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			defer func() {
				if r := recover(); r != nil {
					logger.Error().Interface("panic", r).Str("path", c.Request().URL.Path).Msg("recovered from panic")
					c.Error(echo.NewHTTPError(http.StatusInternalServerError, "internal server error"))
				}
			}()
			return next(c)
		}
	})

	h := handlers.NewHandler(cfg, cache, transformer)
	cacheHandlers := handlers.NewCacheHandlers(cache)

	// 5. Routes
	e.GET("/health", h.GetHealth)
	e.GET("/cache/status", cacheHandlers.GetCacheStatus)
	e.POST("/cache/clear", cacheHandlers.ClearCache)

	api := e.Group("/api")
	api.GET("/status", h.GetStatus)
	api.GET("/nodes", h.GetNodes)
	api.GET("/nodes/:id", h.GetNode)
	api.GET("/stats", h.GetStats)
	api.POST("/transform", h.Transform)

	// 6. Start HTTP Server
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		logger.Info().Str("addr", serverAddr).Msg("server listening")
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("shutting down the server")
		}
	}()

	// 7. Polling rounds
	ctx, stopPolling := context.WithCancel(context.Background())
	defer stopPolling()

	if len(cfg.Server.SeedNodes) == 0 {
		logger.Warn().Msg("no seed nodes configured, only /api/transform will produce data")
	} else {
		go func() {
			cache.StartCacheWarmer(ctx)
			logger.Info().Str("mode", string(cache.GetCacheMode())).Msg("cache warmer started")
		}()
	}

	// 8. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("graceful shutdown initiated")

	stopPolling()
	cache.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server exited cleanly")
}

func loadDataset(cfg *config.Config) (utils.LocationDataset, error) {
	if cfg.GeoIP.LocationsPath == "" {
		return utils.DefaultLocationDataset()
	}
	return utils.LoadLocationDataset(cfg.GeoIP.LocationsPath)
}
