package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kaitori-compare/backend/config"
	httpDelivery "github.com/kaitori-compare/backend/internal/delivery/http"
	"github.com/kaitori-compare/backend/internal/infrastructure/anthropic"
	"github.com/kaitori-compare/backend/internal/infrastructure/cache"
	"github.com/kaitori-compare/backend/internal/usecase"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if cfg.Server.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().
		Str("environment", cfg.Server.Environment).
		Str("port", cfg.Server.Port).
		Str("model", cfg.Anthropic.Model).
		Msg("starting kaitori-compare backend")

	// Initialize infrastructure dependencies
	memoryCache := cache.NewMemoryCache()

	visionClient := anthropic.NewClient(anthropic.ClientOpts{
		APIKey:    cfg.Anthropic.APIKey,
		BaseURL:   cfg.Anthropic.BaseURL,
		Model:     cfg.Anthropic.Model,
		MaxTokens: cfg.Anthropic.MaxTokens,
		Version:   cfg.Anthropic.Version,
	})

	// Initialize usecase layer
	extractor := usecase.NewExtractor(visionClient, memoryCache, usecase.ExtractorConfig{
		CacheTTL: cfg.Cache.TTL,
	})

	batchService := usecase.NewBatchService(extractor, usecase.BatchServiceConfig{
		MaxFileBytes: cfg.Batch.MaxFileBytes,
		PaceInterval: cfg.Batch.PaceInterval,
		MaxDimension: cfg.Batch.MaxDimension,
		JPEGQuality:  cfg.Batch.JPEGQuality,
	})

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(extractor, batchService)

	// Setup router
	router := httpDelivery.SetupRouter(cfg, handler)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Info().Str("addr", addr).Msg("server listening")

	if err := router.Run(addr); err != nil {
		log.Fatal().Err(err).Msg("failed to start server")
	}
}
