package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"camclip/internal/adapter/memstore"
	"camclip/internal/adapter/repo"
	"camclip/internal/domain"
	"camclip/internal/http/handlers"
	httpapi "camclip/internal/http/httpapi"
	"camclip/internal/infra"
	"camclip/internal/infra/credentials"
	"camclip/internal/infra/geoip"
	"camclip/internal/notify"
	"camclip/internal/payment"
	"camclip/internal/pricing"
	"camclip/internal/promptgen"
	"camclip/internal/providers/video"
	"camclip/internal/scene"
	"camclip/internal/storage"
	"camclip/internal/workflow"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)
	ctx := context.Background()

	var (
		orders   domain.OrderRepository
		analyses domain.AnalysisRepository
		creds    *credentials.Store
		ping     func(context.Context) error
	)
	switch cfg.StoreDriver {
	case "memory":
		mem := memstore.New()
		orders, analyses = mem.Orders(), mem.Analyses()
		logger.Warn().Msg("using in-memory store, data is lost on restart")
	default:
		if cfg.AutoMigrate {
			if err := infra.Migrate(ctx, cfg.DatabaseURL, infra.MigrateUp, logger); err != nil {
				logger.Fatal().Err(err).Msg("failed to apply migrations")
			}
		}
		dbpool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer dbpool.Close()
		runner := infra.NewSQLRunner(dbpool, logger)
		orders = repo.NewOrderRepository(runner)
		analyses = repo.NewAnalysisRepository(runner)
		creds = credentials.NewStore(runner)
		ping = dbpool.Ping
	}

	objects, files := mustObjectStore(ctx, cfg, logger)

	freepikKey, err := creds.Resolve(ctx, credentials.ProviderFreepik, cfg.FreepikAPIKey)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to load freepik api key from store")
	}
	generator, err := video.NewClient(video.Options{
		APIKey:     freepikKey,
		BaseURL:    cfg.FreepikBaseURL,
		Model:      cfg.FreepikModel,
		HTTPClient: video.NewHTTPClient(video.SubmitTimeout),
		Logger:     &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure video client")
	}

	var analyzer scene.Analyzer = scene.StaticAnalyzer{}
	openAIKey, err := creds.Resolve(ctx, credentials.ProviderOpenAI, cfg.OpenAIAPIKey)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to load openai api key from store")
	}
	if openAIKey != "" {
		sceneLog := logger.With().Str("component", "scene").Logger()
		vision, err := scene.NewOpenAIAnalyzer(scene.OpenAIOptions{
			APIKey:  openAIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
			OnFallback: func(reason string, err error) {
				sceneLog.Warn().Err(err).Str("reason", reason).Msg("scene analysis fell back")
			},
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure scene analyzer")
		}
		analyzer = vision
	} else {
		logger.Warn().Msg("openai api key missing, scene analysis uses the static fallback")
	}

	engine, err := promptgen.NewEngine(promptgen.Options{})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load prompt templates")
	}

	var payments payment.Gateway
	stripeKey, err := creds.Resolve(ctx, credentials.ProviderStripe, cfg.StripeSecretKey)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to load stripe key from store")
	}
	if gw, err := payment.NewStripeGateway(stripeKey, cfg.StripeWebhookSecret); err == nil {
		payments = gw
	} else {
		logger.Warn().Err(err).Msg("stripe is not configured, only test-mode orders can be created")
	}

	notifier := notify.NewDispatcher(notify.Options{
		Orders:        orders,
		Mailer:        notify.LogMailer{Logger: logger},
		From:          cfg.MailFrom,
		PublicBaseURL: cfg.PublicBaseURL,
		Logger:        &logger,
	})

	orch := workflow.New(workflow.Options{
		Orders:        orders,
		Analyses:      analyses,
		Generator:     generator,
		Store:         objects,
		Notifier:      notifier,
		Analyzer:      analyzer,
		Engine:        engine,
		Payments:      payments,
		Pricing:       pricing.Table{USD: cfg.PriceUSD, EUR: cfg.PriceEUR, GBP: cfg.PriceGBP},
		PublicBaseURL: cfg.PublicBaseURL,
		AllowTestMode: cfg.AllowTestMode,
		SourceURLTTL:  cfg.SignedURLTTL,
		Logger:        &logger,
	})

	geo, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip database unavailable, pricing falls back to headers")
	}
	defer geo.Close()

	app := handlers.NewApp(handlers.Options{
		Workflow: orch,
		Payments: payments,
		Files:    files,
		Ping:     ping,
		Logger:   &logger,
	})
	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:          logger,
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		OperatorSecret:  cfg.OperatorJWTSecret,
		CountryLookup:   geo.Lookup(),
	})
	if cfg.OperatorJWTSecret == "" {
		logger.Warn().Msg("OPERATOR_JWT_SECRET is empty, queue endpoints are unauthenticated")
	}

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("store", cfg.StoreDriver).Str("storage", cfg.StorageDriver).Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPWriteTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

// mustObjectStore builds the configured object store. The filesystem store is
// also returned on its own so the router can serve its signed links.
func mustObjectStore(ctx context.Context, cfg *infra.Config, logger infra.Logger) (storage.ObjectStore, *storage.FileStore) {
	if cfg.StorageDriver == "s3" {
		s3Store, err := storage.NewS3Store(ctx, storage.S3Options{
			Bucket:   cfg.S3Bucket,
			Region:   cfg.AWSRegion,
			Endpoint: cfg.AWSEndpointURL,
			TTL:      cfg.SignedURLTTL,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure s3 storage")
		}
		return s3Store, nil
	}

	storagePath := cfg.StoragePath
	if !filepath.IsAbs(storagePath) {
		if abs, err := filepath.Abs(storagePath); err == nil {
			storagePath = abs
		}
	}
	fileStore, err := storage.NewFileStore(storage.FileStoreOptions{
		BasePath: storagePath,
		BaseURL:  cfg.StorageBaseURL,
		Secret:   cfg.StorageSigningSecret,
		TTL:      7 * 24 * time.Hour,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure storage")
	}
	return fileStore, fileStore
}
