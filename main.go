// Command crafty-bridge runs the Discord bot that bridges a Crafty
// Controller instance. It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Discord and registers the slash commands.
//   - Starts the background reconciler that mirrors server run state into
//     channel names.
//   - Exposes a minimal HTTP server with /healthz, /readyz, /status,
//     /metrics, and an authenticated /admin/reload.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/felhagen/crafty-bridge/config"
	"github.com/felhagen/crafty-bridge/craftyapi"
	"github.com/felhagen/crafty-bridge/discord"
	"github.com/felhagen/crafty-bridge/reconcile"
	"github.com/felhagen/crafty-bridge/server"
	"github.com/felhagen/crafty-bridge/servermap"
	"github.com/felhagen/crafty-bridge/telemetry"
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
	var handler slog.Handler
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))

	// Config
	cfgStore, err := config.NewStore(config.Path())
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	cfg := cfgStore.Current()

	token := cfg.ResolveDiscordToken()
	if token == "" {
		slog.Error("no discord token found; set DISCORD_TOKEN or discord_token in config")
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdownTracing, err := telemetry.InitTracing("crafty-bridge", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdownTracing()

	crafty := &craftyapi.Client{
		BaseURL:     cfg.Crafty.BaseURL,
		Username:    cfg.Crafty.Username,
		Password:    cfg.Crafty.Password,
		BearerToken: cfg.Crafty.BearerToken,
		VerifySSL:   *cfg.Crafty.VerifySSL,
	}
	defer crafty.Close()

	servers := servermap.New()

	bot, err := discord.New(token, cfgStore, crafty, servers)
	if err != nil {
		slog.Error("failed to create discord bot", slog.Any("err", err))
		os.Exit(1)
	}

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := bot.Start(); err != nil {
		slog.Error("failed to connect to discord", slog.Any("err", err))
		os.Exit(1)
	}
	defer bot.Stop()

	rec := reconcile.New(cfgStore, crafty, servers, bot, bot.Bindings())
	go rec.Run(ctx)

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	handlers := &server.Handlers{
		Servers:           servers.Snapshot,
		ConfiguredServers: func() int { return len(cfgStore.Current().Servers) },
		Guilds:            func() int { return len(bot.Bindings().Guilds()) },
		BotReady:          bot.Ready,
		LastCycle:         rec.LastCycle,
		Reload:            bot.ReloadAll,
	}
	go func() {
		if err := server.Start(ctx, handlers, addr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")
}
