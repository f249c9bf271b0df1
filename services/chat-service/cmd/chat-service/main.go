package main

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/juanfcarrillo/pet-vet/libs/config"
	"github.com/juanfcarrillo/pet-vet/libs/db"
	"github.com/juanfcarrillo/pet-vet/libs/httpx"
	otelx "github.com/juanfcarrillo/pet-vet/libs/otel"
	"github.com/juanfcarrillo/pet-vet/libs/runtime"
	"github.com/juanfcarrillo/pet-vet/services/chat-service/internal/handlers"
	"github.com/juanfcarrillo/pet-vet/services/chat-service/internal/relay"
	"github.com/juanfcarrillo/pet-vet/services/chat-service/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "chat-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	var rdb *redis.Client
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		redisDB := 0
		if v, err := strconv.Atoi(config.String("REDIS_DB", "0")); err == nil && v >= 0 {
			redisDB = v
		}
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       redisDB,
		})
		defer func() { _ = rdb.Close() }()
		logger.Info("relay fan-out enabled (redis)", "redis_addr", addr)
	} else {
		logger.Info("relay fan-out local only (no redis configured)")
	}

	repo := storage.NewMessageRepository(pool)
	hub := relay.NewHub(logger)
	bridge := relay.NewBridge(hub, rdb, logger)
	go bridge.Run(ctx)

	chatHandler := handlers.NewChatHandler(repo, bridge, logger)
	wsHandler := relay.NewWSHandler(hub, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
	)
	mux.HandleFunc("POST /api/v1/chat/messages", chatHandler.Send)
	mux.HandleFunc("GET /api/v1/chat/messages/search", chatHandler.Search)
	mux.HandleFunc("PATCH /api/v1/chat/messages/{id}", chatHandler.Edit)
	mux.HandleFunc("DELETE /api/v1/chat/messages/{id}", chatHandler.Delete)
	mux.HandleFunc("POST /api/v1/chat/messages/{id}/status", chatHandler.UpdateStatus)
	mux.HandleFunc("GET /api/v1/chat/conversations", chatHandler.ListConversations)
	mux.HandleFunc("GET /api/v1/chat/conversations/{conversationId}/messages", chatHandler.ListMessages)
	mux.HandleFunc("POST /api/v1/chat/conversations/{conversationId}/read", chatHandler.MarkConversationRead)
	mux.HandleFunc("GET /api/v1/chat/unread-count", chatHandler.UnreadCount)
	mux.Handle("GET /ws/chat", wsHandler)

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "chat")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
