package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"camclip/internal/infra"
	"camclip/internal/infra/credentials"
)

var envKeys = map[string]string{
	credentials.ProviderFreepik: "FREEPIK_API_KEY",
	credentials.ProviderOpenAI:  "OPENAI_API_KEY",
	credentials.ProviderStripe:  "STRIPE_SECRET_KEY",
}

func main() {
	_ = godotenv.Load()

	var (
		keyFlag      string
		providerFlag string
		revoke       bool
	)
	flag.StringVar(&keyFlag, "key", "", "API key for the selected provider (fallbacks to environment)")
	flag.StringVar(&providerFlag, "provider", credentials.ProviderFreepik, "Provider to configure ("+strings.Join(credentials.Providers, ", ")+")")
	flag.BoolVar(&revoke, "revoke", false, "Revoke the stored key instead of setting one")
	flag.Parse()

	provider := strings.TrimSpace(strings.ToLower(providerFlag))
	if !credentials.IsKnownProvider(provider) {
		fmt.Fprintf(os.Stderr, "unsupported provider %q\n", providerFlag)
		os.Exit(1)
	}

	key := strings.TrimSpace(keyFlag)
	if key == "" && !revoke {
		key = strings.TrimSpace(os.Getenv(envKeys[provider]))
	}
	if key == "" && !revoke {
		fmt.Fprintf(os.Stderr, "%s API key is required via -key or %s\n", strings.ToUpper(provider), envKeys[provider])
		os.Exit(1)
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "providerkey").Str("provider", provider).Logger()
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))

	if revoke {
		if err := store.Revoke(ctx, provider); err != nil {
			fmt.Fprintf(os.Stderr, "failed to revoke %s api key: %v\n", provider, err)
			os.Exit(1)
		}
		fmt.Printf("%s API key revoked\n", strings.ToUpper(provider))
		return
	}

	if err := store.SetToken(ctx, provider, key); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist %s api key: %v\n", provider, err)
		os.Exit(1)
	}

	fmt.Printf("%s API key stored successfully\n", strings.ToUpper(provider))
}
