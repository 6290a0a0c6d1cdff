package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"partshop/internal/config"
	"partshop/internal/database"

	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|reset|redo|up-to|down-to")
	version := flag.String("version", "", "target version for up-to and down-to")
	flag.Parse()

	dbCfg, logCfg, err := config.LoadDatabase()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := config.NewLogger(logCfg).With().Str("cmd", *cmd).Logger()

	var args []string
	switch *cmd {
	case "up", "down", "status", "version", "reset", "redo":
	case "up-to", "down-to":
		if *version == "" {
			return fmt.Errorf("missing -version for %s", *cmd)
		}
		args = append(args, *version)
	default:
		return fmt.Errorf("unknown -cmd value: %s", *cmd)
	}

	ctx := context.Background()

	pool, err := database.NewPool(ctx, dbCfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, *cmd, logger, args...); err != nil {
		return err
	}

	logger.Info().Msg("migration command completed")
	return nil
}
