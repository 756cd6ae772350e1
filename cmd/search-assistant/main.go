package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/kitbuilder587/search-assistant/internal/config"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	Name    = "search-assistant"
	Version string

	flagconf string

	id, _ = os.Hostname()
)

func init() {
	flag.StringVar(&flagconf, "conf", "", "yaml file with default settings, same as CONFIG_FILE")
}

func main() {
	flag.Parse()
	if flagconf != "" && os.Getenv("CONFIG_FILE") == "" {
		os.Setenv("CONFIG_FILE", flagconf)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	app, cleanup, err := initApp(cfg, logger)
	if err != nil {
		logger.Fatal("failed to init app", zap.Error(err))
	}
	defer cleanup()

	logger.Info("starting search assistant",
		zap.String("addr", cfg.HTTP.Addr),
		zap.String("search", cfg.Search.Provider),
		zap.String("extract", cfg.Extract.Provider),
		zap.String("llm", cfg.LLM.Provider),
		zap.String("cache", cfg.Cache.Type),
		zap.Bool("history", cfg.Database.URL != ""),
		zap.Bool("telegram", cfg.Telegram.Token != ""),
	)

	if err := app.Run(); err != nil {
		logger.Error("app stopped with error", zap.Error(err))
	}
}
