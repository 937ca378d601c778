package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/desertthunder/tapedeck/internal/player"
	"github.com/desertthunder/tapedeck/internal/services"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

const configPath = "config.toml"

func main() {
	logger := shared.NewLogger(nil)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to load .env", "error", err)
	}

	config := shared.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		if loadedConfig, err := shared.LoadConfig(configPath); err == nil {
			config = loadedConfig
		} else {
			logger.Warn("failed to load config, using defaults", "path", configPath, "error", err)
		}
	}
	if err := config.ApplyEnv(); err != nil {
		logger.Warn("failed to apply environment overrides", "error", err)
	}
	if err := config.Validate(); err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}
	shared.SetLogLevel(logger, shared.ParseLogLevel(config.Log.Level))

	httpClient := services.NewHTTPClient(config.Backend.Token, config.Backend.RequestTimeout)

	// The catalogue is a third party; it must not see the backend token.
	var previews services.PreviewSearcher
	if config.Search.DeezerURL != "" {
		catalogClient := &http.Client{Timeout: config.Backend.RequestTimeout}
		previews = services.NewPreviewService(config.Search, config.Backend.UserAgent, catalogClient)
	}

	runner := NewRunner(RunnerOpts{
		Config:     config,
		Source:     services.NewAudioService(config.Backend, httpClient),
		Searcher:   services.NewSearchService(config.Search.BaseURL, config.Backend.UserAgent, httpClient),
		Previews:   previews,
		API:        services.NewAPIService(config.Backend.BaseURL, httpClient),
		Player:     player.NewProcessEngine(config.Player, logger),
		HTTPClient: httpClient,
		Logger:     logger,
	})
	defer runner.Close()

	app := &cli.Command{
		Name:     "tapedeck",
		Usage:    "Search, convert and play music through a conversion backend",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			runner.Close()
			os.Exit(0)
		}
		runner.Close()
		logger.Fatalf("application error: %v", err)
	}
}
