package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"chatcore/internal/app"
	"chatcore/pkg/config"
	"chatcore/pkg/logger"
)

// build metadata - set via ldflags during build/release
var version = "dev"

func main() {
	_ = godotenv.Load(".env")
	flags := config.ParseCommandFlags()

	cfgPath := config.ResolveConfigPath(flags.Config, flags.Set["config"])
	cfg, _, err := config.LoadEffective(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Flags win over config/env when provided explicitly.
	addr := cfg.Addr()
	if flags.Set["addr"] {
		addr = flags.Addr
	}
	dbPath := flags.DB
	if !flags.Set["db"] && cfg.Storage.DBPath != "" {
		dbPath = cfg.Storage.DBPath
	}

	logger.InitWithLevel(cfg.Logging.Level)

	a, err := app.New(cfg, addr, dbPath, version)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		log.Fatalf("server exit: %v", err)
	}
}
