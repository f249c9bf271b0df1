package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/juanfcarrillo/pet-vet/libs/config"
	"github.com/juanfcarrillo/pet-vet/libs/db"
	"github.com/juanfcarrillo/pet-vet/libs/httpx"
	"github.com/juanfcarrillo/pet-vet/libs/kafkax"
	otelx "github.com/juanfcarrillo/pet-vet/libs/otel"
	"github.com/juanfcarrillo/pet-vet/libs/runtime"
	"github.com/juanfcarrillo/pet-vet/services/reminder-service/internal/consumer"
	"github.com/juanfcarrillo/pet-vet/services/reminder-service/internal/inbox"
	"github.com/juanfcarrillo/pet-vet/services/reminder-service/internal/jobs"
	"github.com/juanfcarrillo/pet-vet/services/reminder-service/internal/outbox"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	topicScheduled = "appointments.appointment.scheduled.v1"
	topicCancelled = "appointments.appointment.cancelled.v1"
	topicDeleted   = "appointments.appointment.deleted.v1"
)

func main() {
	service := config.String("SERVICE_NAME", "reminder-service")
	port, err := config.Port("PORT", "8087")
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

	inboxRepo := inbox.NewRepository(pool)
	jobRepo := jobs.NewRepository()
	outboxRepo := outbox.NewRepository(pool)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	backoffSeconds := config.Int("REMINDER_BACKOFF_SECONDS", 60)
	if backoffSeconds <= 0 {
		backoffSeconds = 60
	}
	jobWorker := jobs.NewWorker(pool, jobRepo, outboxRepo, logger, jobs.WorkerConfig{
		Interval:  2 * time.Second,
		BatchSize: 50,
		Backoff:   time.Duration(backoffSeconds) * time.Second,
	})
	go jobWorker.Run(ctx)

	leadHours := config.Int("REMINDER_LEAD_HOURS", 24)
	if leadHours <= 0 {
		leadHours = 24
	}
	lead := time.Duration(leadHours) * time.Hour

	consumerCfg := consumer.Config{
		Brokers: config.String("KAFKA_BROKERS", ""),
		GroupID: config.String("KAFKA_GROUP_ID", "reminder-service"),
		Topics:  []string{topicScheduled, topicCancelled, topicDeleted},
	}

	type appointmentEvent struct {
		AppointmentID   string `json:"appointment_id"`
		ClientID        string `json:"client_id"`
		ClientEmail     string `json:"client_email"`
		AppointmentDate string `json:"appointment_date"`
	}

	eventConsumer := consumer.New(logger, inboxRepo, consumerCfg, func(ctx context.Context, msg kafka.Message) error {
		var evt appointmentEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Error("invalid appointment event", "err", err)
			return nil
		}
		if evt.AppointmentID == "" {
			logger.Error("missing appointment_id", "topic", msg.Topic)
			return nil
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		switch msg.Topic {
		case topicScheduled:
			if evt.ClientEmail == "" || evt.AppointmentDate == "" {
				logger.Error("missing reminder fields", "appointment_id", evt.AppointmentID)
				return nil
			}
			apptAt, err := time.Parse(time.RFC3339, evt.AppointmentDate)
			if err != nil {
				logger.Error("invalid appointment_date", "err", err)
				return nil
			}
			remindAt := apptAt.Add(-lead)
			if !remindAt.After(time.Now()) {
				// Appointment is closer than the lead time, skip the reminder.
				logger.Info("reminder window already passed", "appointment_id", evt.AppointmentID)
				return nil
			}

			var templateData map[string]any
			if err := json.Unmarshal(msg.Value, &templateData); err != nil {
				logger.Error("invalid appointment payload", "err", err)
				return nil
			}

			idempotencyKey := evt.AppointmentID + "|" + remindAt.UTC().Format(time.RFC3339)
			if err := jobRepo.Insert(ctx, tx, jobs.Job{
				IdempotencyKey: idempotencyKey,
				AppointmentID:  evt.AppointmentID,
				ClientID:       evt.ClientID,
				Recipient:      evt.ClientEmail,
				RemindAt:       remindAt,
				TemplateData:   templateData,
			}); err != nil {
				return err
			}
			logger.Info("reminder scheduled", "appointment_id", evt.AppointmentID, "remind_at", remindAt.UTC().Format(time.RFC3339))

		case topicCancelled, topicDeleted:
			cancelled, err := jobRepo.CancelByAppointment(ctx, tx, evt.AppointmentID)
			if err != nil {
				return err
			}
			if cancelled > 0 {
				logger.Info("pending reminders cancelled", "appointment_id", evt.AppointmentID, "count", cancelled)
			}
		}

		return tx.Commit(ctx)
	})
	go eventConsumer.Run(ctx)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "reminder")
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
