package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	goopenai "github.com/sashabaranov/go-openai"

	"github.com/bryanwahyu/leakwatch/internal/application"
	appai "github.com/bryanwahyu/leakwatch/internal/application/ai"
	"github.com/bryanwahyu/leakwatch/internal/application/bot"
	"github.com/bryanwahyu/leakwatch/internal/application/discovery"
	"github.com/bryanwahyu/leakwatch/internal/config"
	"github.com/bryanwahyu/leakwatch/internal/domain/assets"
	"github.com/bryanwahyu/leakwatch/internal/domain/commands"
	"github.com/bryanwahyu/leakwatch/internal/domain/scanerrors"
	"github.com/bryanwahyu/leakwatch/internal/domain/uploads"
	"github.com/bryanwahyu/leakwatch/internal/infra/ai/openai"
	"github.com/bryanwahyu/leakwatch/internal/infra/bus"
	"github.com/bryanwahyu/leakwatch/internal/infra/db/migrations"
	mysqlp "github.com/bryanwahyu/leakwatch/internal/infra/db/mysql"
	pgp "github.com/bryanwahyu/leakwatch/internal/infra/db/postgres"
	sqlitep "github.com/bryanwahyu/leakwatch/internal/infra/db/sqlite"
	"github.com/bryanwahyu/leakwatch/internal/infra/fingerprint"
	"github.com/bryanwahyu/leakwatch/internal/infra/httpserver"
	"github.com/bryanwahyu/leakwatch/internal/infra/notify"
	"github.com/bryanwahyu/leakwatch/internal/infra/roblox"
	"github.com/bryanwahyu/leakwatch/internal/infra/storage"
	"github.com/bryanwahyu/leakwatch/internal/infra/telemetry"
	"github.com/bryanwahyu/leakwatch/internal/middleware"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}
	cfg, err := config.Load(ctx, path)
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("config load error")
	}
	setupLogger(cfg)

	shutdownTracing, err := telemetry.Init(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("telemetry init error")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Error().Err(err).Msg("telemetry shutdown")
		}
	}()

	db, repo, errRepo, err := openDatabase(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("database init error")
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := middleware.NewMetrics(reg)

	// fingerprint store, warmed from the database
	store := fingerprint.New(repo)
	n, err := store.Warm(ctx, repo)
	if err != nil {
		log.Fatal().Err(err).Msg("fingerprint warm error")
	}
	log.Info().Int("fingerprints", n).Msg("fingerprint store warmed")

	rc := roblox.New(roblox.Config{
		CatalogURL:        cfg.Roblox.CatalogURL,
		GamesURL:          cfg.Roblox.GamesURL,
		BadgesURL:         cfg.Roblox.BadgesURL,
		RequestsPerSecond: cfg.Roblox.RequestsPerSecond,
		Burst:             cfg.Roblox.Burst,
		Timeout:           cfg.Roblox.Timeout,
		MaxPages:          cfg.Roblox.MaxPages,
		UserAgent:         cfg.Roblox.UserAgent,
	}, log.With().Str("component", "roblox").Logger())
	rc.OnRequest = metrics.ObserveUpstream

	targets := discovery.NewTargets(cfg.Targets, cfg.Developers)
	engine := &discovery.Engine{
		Scanner:     rc,
		Store:       store,
		Allowlist:   targets,
		Clock:       application.SystemClock{},
		Log:         log.With().Str("component", "engine").Logger(),
		Concurrency: cfg.Scan.Concurrency,
	}

	notifiers := notify.Multi{
		notify.Log{Log: log.With().Str("component", "notify").Logger()},
		metrics,
		notify.ErrorRecorder{Repo: errRepo, Log: log.Logger},
	}
	health := map[string]middleware.HealthChecker{
		"database": &middleware.DatabaseHealthChecker{DB: db},
	}

	// NATS is optional; without it /leak has nowhere to announce
	var announcer bot.Announcer
	if cfg.NATS.URL != "" {
		b, err := bus.New(cfg.NATS.URL, cfg.NATS.Stream, []string{cfg.NATS.SubjectPrefix + ".>"},
			nats.Name("leakwatch-api"), nats.MaxReconnects(-1))
		if err != nil {
			log.Fatal().Err(err).Str("url", cfg.NATS.URL).Msg("nats connect error")
		}
		defer b.Close()
		bn := notify.NewBusNotifier(b, cfg.NATS.SubjectPrefix, log.With().Str("component", "bus").Logger())
		notifiers = append(notifiers, bn)
		announcer = bn
		health["nats"] = middleware.CheckerFunc(b.Check)
	}

	scheduler := &discovery.Scheduler{
		Engine:       engine,
		Targets:      targets,
		Notifier:     notifiers,
		Clock:        application.SystemClock{},
		Interval:     cfg.Scan.Interval,
		InitialDelay: cfg.Scan.InitialDelay,
		RunOnStart:   cfg.Scan.RunOnStart,
		Log:          log.With().Str("component", "scheduler").Logger(),
		OnFailure:    func(error) { metrics.ScanFailed() },
	}

	sink, err := uploadSink(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("minio init error")
	}

	var analyst bot.Analyst
	if cfg.OpenAI.APIKey != "" {
		oc := goopenai.DefaultConfig(cfg.OpenAI.APIKey)
		if cfg.OpenAI.BaseURL != "" {
			oc.BaseURL = cfg.OpenAI.BaseURL
		}
		analyst = appai.NewService(openai.NewClientWithConfig(oc, cfg.OpenAI.Model))
	}

	router := bot.NewRouter(bot.Deps{
		Prefix:     cfg.Bot.Prefix,
		Scheduler:  scheduler,
		Catalog:    repo,
		Store:      store,
		Targets:    targets,
		Announcer:  announcer,
		Analyst:    analyst,
		Sink:       sink,
		Validator:  uploads.NewValidator(cfg.Uploads.MaxBytes, cfg.Uploads.AllowedExtensions),
		SessionTTL: cfg.Uploads.SessionTTL,
		Clock:      application.SystemClock{},
		Log:        log.With().Str("component", "bot").Logger(),
		OnRoute: func(command string, kind commands.ResponseKind) {
			metrics.ObserveCommand(command, string(kind))
		},
		OnUpload: metrics.ObserveUpload,
	})

	go func() {
		if err := scheduler.Run(ctx); err != nil {
			log.Error().Err(err).Msg("scheduler stopped")
		}
	}()

	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: httpserver.NewRouter(httpserver.Options{
			Scans:             scheduler,
			Bot:               router,
			Catalog:           repo,
			ScanErrors:        errRepo,
			Metrics:           metrics,
			Health:            health,
			Log:               log.With().Str("component", "http").Logger(),
			AllowedOrigins:    cfg.Server.AllowedOrigins,
			RequestsPerMinute: cfg.Server.RequestsPerMinute,
			MaxUploadBytes:    cfg.Uploads.MaxBytes,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		// POST /v1/scans waits for the scan
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Int("targets", len(targets.List())).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	log.Info().Msg("server stopped")
}

func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Log.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// openDatabase connects with the configured driver and runs migrations.
func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, assets.Repository, scanerrors.Repository, error) {
	var (
		db  *sql.DB
		err error
	)
	switch cfg.Database.Driver {
	case "mysql":
		db, err = mysqlp.Connect(ctx, cfg.MySQLDSN())
	case "postgres":
		db, err = pgp.Connect(ctx, cfg.PostgresDSN())
	case "sqlite":
		db, err = sqlitep.Open(ctx, cfg.Database.Path)
	default:
		return nil, nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	if err != nil {
		return nil, nil, nil, err
	}

	if err := migrations.Up(ctx, db, cfg.Database.Driver, log.With().Str("component", "migrate").Logger()); err != nil {
		_ = db.Close()
		return nil, nil, nil, fmt.Errorf("migrate: %w", err)
	}

	switch cfg.Database.Driver {
	case "mysql":
		return db, mysqlp.NewAssetRepository(db), mysqlp.NewScanErrorRepository(db), nil
	case "postgres":
		return db, pgp.NewAssetRepository(db), pgp.NewScanErrorRepository(db), nil
	default:
		return db, sqlitep.NewAssetRepository(db), sqlitep.NewScanErrorRepository(db), nil
	}
}

// uploadSink uses MinIO when an endpoint is configured, memory otherwise.
func uploadSink(ctx context.Context, cfg *config.Config) (uploads.Sink, error) {
	if cfg.Minio.Endpoint == "" {
		log.Warn().Msg("minio not configured, uploads are kept in memory")
		return storage.NewMemory(""), nil
	}
	return storage.New(ctx,
		cfg.Minio.Endpoint,
		cfg.Minio.Region,
		cfg.Minio.BucketName,
		cfg.Minio.AccessKey,
		cfg.Minio.SecretKey,
		cfg.Minio.UseSSL,
	)
}
