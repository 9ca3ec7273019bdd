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

	"calmiverse/internal/infra"
	"calmiverse/internal/infra/credentials"
)

func main() {
	var (
		keyFlag      string
		providerFlag string
	)
	flag.StringVar(&keyFlag, "key", "", "secret for the selected provider (falls back to environment)")
	flag.StringVar(&providerFlag, "provider", credentials.ProviderElevenLabs, "provider to configure (elevenlabs or n8n)")
	flag.Parse()

	_ = godotenv.Load()

	provider := strings.TrimSpace(strings.ToLower(providerFlag))
	switch provider {
	case credentials.ProviderElevenLabs, credentials.ProviderN8N:
	case "":
		provider = credentials.ProviderElevenLabs
	default:
		fmt.Fprintf(os.Stderr, "unsupported provider %q\n", providerFlag)
		os.Exit(1)
	}

	key := strings.TrimSpace(keyFlag)
	if key == "" {
		switch provider {
		case credentials.ProviderN8N:
			key = strings.TrimSpace(os.Getenv("N8N_SIGNING_SECRET"))
		default:
			key = strings.TrimSpace(os.Getenv("ELEVENLABS_API_KEY"))
		}
	}
	if key == "" {
		fmt.Fprintf(os.Stderr, "%s secret is required via -key or environment\n", provider)
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

	logger := infra.NewLogger("cli", "apikey").With().Str("provider", provider).Logger()
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))

	execCtx, cancelExec := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelExec()
	var persistErr error
	switch provider {
	case credentials.ProviderN8N:
		persistErr = store.SetN8NSigningSecret(execCtx, key)
	default:
		persistErr = store.SetElevenLabsAPIKey(execCtx, key)
	}
	if persistErr != nil {
		fmt.Fprintf(os.Stderr, "failed to persist %s secret: %v\n", provider, persistErr)
		os.Exit(1)
	}

	fmt.Printf("%s secret stored successfully\n", provider)
}
