package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"camclip/internal/infra"
)

func main() {
	_ = godotenv.Load()

	var timeout time.Duration
	flag.DurationVar(&timeout, "timeout", 2*time.Minute, "Maximum time to wait for the migration to finish")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: migrate [-timeout 2m] up|down|status\n")
	}
	flag.Parse()

	command := infra.MigrateUp
	if arg := strings.TrimSpace(flag.Arg(0)); arg != "" {
		command = infra.MigrationCommand(strings.ToLower(arg))
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	logger := infra.NewLogger(os.Getenv("APP_ENV")).With().Str("cmd", "migrate").Logger()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := infra.Migrate(ctx, dbURL, command, logger); err != nil {
		logger.Error().Err(err).Msg("migration failed")
		os.Exit(1)
	}
}
