package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bot-chitieu/internal/cache"
	"bot-chitieu/internal/config"
	"bot-chitieu/internal/convo"
	"bot-chitieu/internal/metrics"
	"bot-chitieu/internal/parser"
	"bot-chitieu/internal/repo"
	"bot-chitieu/internal/wa"
	"bot-chitieu/internal/wizard"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed loading config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repository, err := repo.Connect(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("failed connecting database", "error", err)
		os.Exit(1)
	}
	defer repository.Close()

	redisCache, err := cache.New(ctx, cache.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TLS:      cfg.RedisTLS,
	})
	if err != nil {
		logger.Error("failed connecting redis", "error", err)
		os.Exit(1)
	}
	defer redisCache.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(cfg.MetricsNamespace, registry)

	providers := []parser.Provider{
		parser.NewGemini(parser.GeminiConfig{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			Timeout: cfg.GeminiTimeout,
		}),
		parser.NewOpenAI(parser.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			Timeout: cfg.OpenAITimeout,
		}),
		parser.NewFallback(),
	}
	router := parser.NewRouter(providers, parser.RouterConfig{
		FailureThreshold: cfg.AIFailureLimit,
		Cooldown:         cfg.AICooldown,
	}, m, logger)

	wiz := wizard.New(router, wizard.Config{
		CashbackRecipient: cfg.CashbackRecipient,
		CashbackPercent:   cfg.CashbackPercent,
	}, logger)

	sessions := cache.NewSessionStore(redisCache, cfg.SessionTTL)

	waClient, err := wa.New(ctx, wa.Options{
		StorePath: cfg.WhatsAppStorePath,
		LogLevel:  cfg.WhatsAppLogLevel,
	}, logger)
	if err != nil {
		logger.Error("failed creating whatsapp client", "error", err)
		os.Exit(1)
	}

	engine := convo.New(repository, wiz, sessions, waClient, redisCache, m, logger)
	waClient.SetMessageHandler(engine.ProcessMessage)

	if err := waClient.Connect(ctx); err != nil {
		logger.Error("failed connecting whatsapp", "error", err)
		os.Exit(1)
	}
	defer waClient.Disconnect()

	srv := newHTTPServer(cfg.HTTPListenAddr, registry, router)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			stop()
		}
	}()

	logger.Info("bot started", "env", cfg.AppEnv)
	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", "error", err)
	}
}

func newHTTPServer(addr string, registry *prometheus.Registry, router *parser.Router) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/providers", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(router.Status())
	})
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
