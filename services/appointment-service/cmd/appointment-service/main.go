package main

import (
	"context"
	"net/http"
	"time"

	"github.com/juanfcarrillo/pet-vet/libs/config"
	"github.com/juanfcarrillo/pet-vet/libs/db"
	"github.com/juanfcarrillo/pet-vet/libs/httpx"
	otelx "github.com/juanfcarrillo/pet-vet/libs/otel"
	"github.com/juanfcarrillo/pet-vet/libs/runtime"
	"github.com/juanfcarrillo/pet-vet/services/appointment-service/internal/availability"
	"github.com/juanfcarrillo/pet-vet/services/appointment-service/internal/handlers"
	"github.com/juanfcarrillo/pet-vet/services/appointment-service/internal/outbox"
	"github.com/juanfcarrillo/pet-vet/services/appointment-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "appointment-service")
	port, err := config.Port("PORT", "8082")
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

	repo := storage.NewAppointmentRepository(pool)
	guard := availability.NewGuard(repo)
	outboxRepo := outbox.NewRepository(pool)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	appointmentHandler := handlers.NewAppointmentHandler(repo, guard, outboxRepo, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
	)
	mux.HandleFunc("POST /api/v1/appointments", appointmentHandler.Create)
	mux.HandleFunc("GET /api/v1/appointments", appointmentHandler.List)
	mux.HandleFunc("GET /api/v1/appointments/available-slots/{veterinarianId}/{date}", appointmentHandler.AvailableSlots)
	mux.HandleFunc("GET /api/v1/appointments/{id}", appointmentHandler.Get)
	mux.HandleFunc("PATCH /api/v1/appointments/{id}", appointmentHandler.Update)
	mux.HandleFunc("DELETE /api/v1/appointments/{id}", appointmentHandler.Delete)
	mux.HandleFunc("POST /api/v1/appointments/{id}/confirm", appointmentHandler.Confirm)
	mux.HandleFunc("POST /api/v1/appointments/{id}/status", appointmentHandler.ChangeStatus)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "appointment")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
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
