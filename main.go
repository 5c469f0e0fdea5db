// Command replyt is the main entrypoint for the auto-reply service.
// It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Postgres and runs idempotent migrations.
//   - Starts the background reply cycle and the OAuth token refresher.
//   - Exposes an HTTP server with /healthz, /readyz, /status, /metrics,
//     and the /admin/cycle manual trigger.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/joho/godotenv"
	"github.com/onnwee/replyt/bot"
	"github.com/onnwee/replyt/config"
	"github.com/onnwee/replyt/db"
	"github.com/onnwee/replyt/oauth"
	"github.com/onnwee/replyt/openaiapi"
	"github.com/onnwee/replyt/server"
	"github.com/onnwee/replyt/telemetry"
	"github.com/onnwee/replyt/youtubeapi"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("config invalid", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("replyt", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// DB
	database, err := db.Connect(cfg.DBDsn)
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("failed to close database", slog.Any("err", err))
		}
	}()

	// Run database migrations using dual-system approach:
	// 1. Primary: versioned migrations (golang-migrate) from db/migrations/
	// 2. Fallback: embedded SQL (db.Migrate) for backward compatibility
	slog.Info("running database migrations", slog.String("component", "db_migrate"))
	if err := db.RunMigrations(database); err != nil {
		slog.Warn("versioned migrations failed, attempting fallback to embedded SQL",
			slog.Any("err", err),
			slog.String("component", "db_migrate"))
		if err := db.Migrate(context.Background(), database); err != nil {
			slog.Error("failed to migrate db (both versioned and embedded SQL failed)", slog.Any("err", err))
			os.Exit(1)
		}
		slog.Info("embedded SQL migration completed", slog.String("component", "db_migrate"))
	} else {
		slog.Info("versioned migrations completed", slog.String("component", "db_migrate"))
	}

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// YouTube adapter: read path via API key, write path via stored OAuth token.
	tokens := &db.TokenStoreAdapter{DB: database}
	source, err := youtubeapi.New(ctx, cfg, tokens)
	if err != nil {
		slog.Error("youtube client init failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := source.SeedToken(ctx); err != nil {
		slog.Warn("seeding oauth token failed", slog.Any("err", err))
	}

	gen := &openaiapi.Client{APIKey: cfg.OpenAIAPIKey, Model: cfg.OpenAIModel, ReplyStyle: cfg.ReplyStyle}

	svc := bot.New(cfg, db.NewStore(database), source, gen)
	if err := svc.Initialize(ctx); err != nil {
		slog.Error("bot initialization failed", slog.Any("err", err))
		os.Exit(1)
	}

	bot.StartAutoReplyJob(ctx, svc, cfg.CheckInterval)

	// Centralized OAuth token refresher keeps the stored YouTube token fresh
	// between cycles.
	oauth.StartRefresher(ctx, database, "youtube", 10*time.Minute, 20*time.Minute, func(rctx context.Context, refreshToken string) (string, string, time.Time, string, error) {
		if cfg.YTClientID == "" {
			return "", "", time.Time{}, "", context.Canceled
		}
		oc := &oauth2.Config{ClientID: cfg.YTClientID, ClientSecret: cfg.YTClientSecret, Endpoint: google.Endpoint, RedirectURL: cfg.YTRedirectURI}
		newTok, err := oc.TokenSource(rctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
		if err != nil {
			return "", "", time.Time{}, "", err
		}
		return newTok.AccessToken, newTok.RefreshToken, newTok.Expiry, "", nil
	})

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1)
	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	// HTTP server (health/status/metrics/admin)
	go func() {
		if err := server.Start(ctx, database, cfg, svc); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")
}
