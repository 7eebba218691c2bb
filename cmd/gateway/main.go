package main

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Warehouser-dev/wryft-chat/internal/api"
	"github.com/Warehouser-dev/wryft-chat/internal/config"
	"github.com/Warehouser-dev/wryft-chat/internal/ephemeral"
	"github.com/Warehouser-dev/wryft-chat/internal/hub"
	"github.com/Warehouser-dev/wryft-chat/internal/presence"
	"github.com/Warehouser-dev/wryft-chat/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load gateway config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		if _, writeErr := io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n"); writeErr != nil {
			slog.Debug("logger setup stderr write failed", "error", writeErr)
		}
		os.Exit(1)
	}

	slog.Info("gateway config loaded",
		"bind_addr", cfg.BindAddr,
		"redis_enabled", cfg.RedisURL != "",
		"max_conns_per_user", cfg.MaxConnsPerUser,
		"topic_buffer", cfg.TopicBuffer,
		"reap_interval_seconds", cfg.ReapIntervalSeconds,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
	)

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Debug("database close failed", "error", err)
		}
	}()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = db.PingContext(pingCtx)
	pingCancel()
	if err != nil {
		slog.Error("database unreachable", "error", err)
		os.Exit(1)
	}

	cache := connectCache(cfg.RedisURL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	h := hub.New(hub.Options{
		TopicBuffer:  cfg.TopicBuffer,
		MaxPerUser:   cfg.MaxConnsPerUser,
		ReapInterval: time.Duration(cfg.ReapIntervalSeconds) * time.Second,
	})
	go h.Run(ctx)

	engine := presence.NewEngine(presence.NewSQLStore(db), cache, h)
	voice := ephemeral.NewVoiceSessions(db)

	handler := api.NewServer(api.Deps{
		Presence:      engine,
		ChannelTyping: ephemeral.NewChannelTyping(db),
		DMTyping:      ephemeral.NewDMTyping(db),
		Voice:         voice,
		Bus:           h,
		WS:            ws.NewHandler(h, voice),
	})

	srv := &http.Server{Addr: cfg.BindAddr, Handler: handler}

	go func() {
		slog.Info("gateway listening", "addr", cfg.BindAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("gateway server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("gateway shutdown failed", "error", err)
	}
}

// connectCache builds the optional presence cache. An empty URL disables it;
// an unreachable server degrades to running without a cache rather than
// failing startup.
func connectCache(redisURL string) presence.Cache {
	if redisURL == "" {
		return nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		slog.Warn("invalid REDIS_URL, presence cache disabled", "error", err)
		return nil
	}
	rdb := redis.NewClient(opts)
	cache := presence.NewRedisCache(rdb)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := cache.Ping(ctx); err != nil {
		slog.Warn("redis unreachable, presence cache disabled", "error", err)
		return nil
	}
	slog.Info("presence cache connected")
	return cache
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
